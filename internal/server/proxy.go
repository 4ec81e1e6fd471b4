package server

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
)

// Proxy forwards the utility HTTP surface (and any future HTTP-exposed MCP
// endpoint under /mcp) to a peer CodeCompass instance detected on the
// configured port. It is optional infrastructure: bindOrCoordinate exits
// cleanly on a detected peer by default, and a caller wanting the
// forwarding behavior described by the component design instead starts a
// Proxy pointed at that peer.
type Proxy struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
}

// NewProxy builds a Proxy forwarding to the peer listening on peerPort.
func NewProxy(peerPort int) (*Proxy, error) {
	target, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", peerPort))
	if err != nil {
		return nil, err
	}
	return &Proxy{target: target, proxy: httputil.NewSingleHostReverseProxy(target)}, nil
}

// ListenAndServe binds a free higher port (port 0, OS-assigned) and
// forwards every request to the peer until the listener is closed.
// It returns the bound address so the caller can report where the proxy
// is listening.
func (p *Proxy) ListenAndServe() (string, error) {
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return "", fmt.Errorf("proxy: binding a free port: %w", err)
	}
	addr := listener.Addr().String()

	srv := &http.Server{Handler: p.proxy}
	go func() {
		_ = srv.Serve(listener)
	}()
	return addr, nil
}
