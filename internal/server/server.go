// Package server implements the ServerHost: it binds the MCP stdio
// transport, a utility HTTP server, and the single-instance coordination
// that keeps two CodeCompass processes from fighting over one repository.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codecompass/codecompass-go/internal/session"
	"github.com/codecompass/codecompass-go/internal/status"
	"github.com/codecompass/codecompass-go/internal/tools"
	"github.com/codecompass/codecompass-go/pkg/config"
)

// Host owns the MCP server instance, the utility HTTP server, and the
// shared collaborators both surfaces dispatch into.
type Host struct {
	cfg       *config.Config
	registry  *tools.Registry
	sessions  *session.Store
	tracker   *status.Tracker
	repoPath  string
	metricsReg *prometheus.Registry

	mcpServer  *server.MCPServer
	httpServer *http.Server
	startedAt  time.Time
}

// New builds a Host. The registry must already have its AgentLoop wired
// via Registry.SetAgentLoop before Run is called, so agent_query works.
// metricsReg backs the /metrics route; pass nil to fall back to the
// global Prometheus registry (for callers that never built their own,
// e.g. quick one-off tests of unrelated routes).
func New(cfg *config.Config, registry *tools.Registry, sessions *session.Store, tracker *status.Tracker, repoPath string, metricsReg *prometheus.Registry) *Host {
	h := &Host{
		cfg:        cfg,
		registry:   registry,
		sessions:   sessions,
		tracker:    tracker,
		repoPath:   repoPath,
		metricsReg: metricsReg,
	}
	h.mcpServer = server.NewMCPServer(cfg.Server.Name, cfg.Server.Version)
	h.registerTools()
	h.registerResources()
	h.registerPrompts()
	h.httpServer = &http.Server{Handler: h.newRouter()}
	return h
}

// Run binds the utility HTTP listener (applying single-instance
// coordination on a fixed, already-occupied port), then runs the stdio
// MCP loop and the HTTP server concurrently until ctx is canceled or the
// stdio loop exits. A SIGINT/SIGTERM handler cancels ctx so both surfaces
// wind down together.
func (h *Host) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := h.bindOrCoordinate(ctx)
	if err != nil {
		return err
	}
	if listener == nil {
		// A peer instance was detected and its status already surfaced;
		// exit cleanly without starting either transport.
		return nil
	}

	h.startedAt = time.Now().UTC()

	errCh := make(chan error, 2)

	go func() {
		slog.Info("server: utility HTTP listening", "addr", listener.Addr().String())
		if err := h.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("utility HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	go func() {
		slog.Info("server: MCP stdio transport starting")
		if err := server.ServeStdio(h.mcpServer); err != nil {
			errCh <- fmt.Errorf("mcp stdio transport: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("server: shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// bindOrCoordinate binds the configured HTTP port. If the port is fixed
// (non-zero) and already in use, it probes the occupant via GET /api/ping:
// a peer CodeCompass instance causes this process to surface that peer's
// indexing status and return (nil, nil) so Run exits cleanly; anything
// else is a genuine conflict and is returned as an error.
func (h *Host) bindOrCoordinate(ctx context.Context) (net.Listener, error) {
	addr := fmt.Sprintf(":%d", h.cfg.Server.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, nil
	}
	if h.cfg.Server.HTTPPort == 0 || !isAddrInUse(err) {
		return nil, fmt.Errorf("server: bind %s: %w", addr, err)
	}

	peer, probeErr := probePeer(ctx, h.cfg.Server.HTTPPort, h.cfg.Agent.PeerPingTimeout)
	if probeErr != nil || peer == nil || peer.Service != h.cfg.Server.Name {
		slog.Error("server: port in use by a non-CodeCompass process", "port", h.cfg.Server.HTTPPort, "probe_error", probeErr)
		return nil, fmt.Errorf("server: port %d is held by another process", h.cfg.Server.HTTPPort)
	}

	slog.Info("server: detected an existing CodeCompass instance on this port; deferring to it",
		"peer_version", peer.Version, "port", h.cfg.Server.HTTPPort)

	if snap, statusErr := fetchPeerStatus(ctx, h.cfg.Server.HTTPPort, h.cfg.Agent.PeerPingTimeout); statusErr == nil {
		slog.Info("server: peer indexing status", "phase", snap.Phase, "files_indexed", snap.FilesIndexed, "files_total", snap.FilesTotal)
	}
	return nil, nil
}

func isAddrInUse(err error) bool {
	var sysErr *os.SyscallError
	for unwrapped := err; unwrapped != nil; {
		if se, ok := unwrapped.(*os.SyscallError); ok {
			sysErr = se
			break
		}
		u, ok := unwrapped.(interface{ Unwrap() error })
		if !ok {
			break
		}
		unwrapped = u.Unwrap()
	}
	return sysErr != nil && sysErr.Err == syscall.EADDRINUSE
}

// registerTools exposes every tools.Registry entry as an MCP tool,
// translating CallToolRequest/CallToolResult at the edge while the
// dispatch logic itself lives entirely in internal/tools.
func (h *Host) registerTools() {
	for _, def := range toolDefinitions() {
		def := def
		h.mcpServer.AddTool(def.tool, h.toolHandler(def.tool.Name))
	}
}

func (h *Host) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := request.GetArguments()
		if params == nil {
			params = map[string]any{}
		}

		sessionID, _ := params["sessionId"].(string)
		sess, err := h.sessions.GetOrCreate(sessionID, h.repoPath)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := h.registry.Dispatch(ctx, sess, name, params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}
