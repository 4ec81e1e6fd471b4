package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/codecompass/codecompass-go/internal/status"
)

// probePeer issues GET /api/ping against the given port and decodes the
// response, used to distinguish a peer CodeCompass instance from an
// unrelated process that happens to hold the same port.
func probePeer(ctx context.Context, port int, timeout time.Duration) (*pingResponse, error) {
	client := &http.Client{Timeout: timeout}
	url := fmt.Sprintf("http://127.0.0.1:%d/api/ping", port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer ping returned status %d", resp.StatusCode)
	}
	var out pingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding peer ping response: %w", err)
	}
	return &out, nil
}

// fetchPeerStatus issues GET /api/indexing-status against a detected peer.
func fetchPeerStatus(ctx context.Context, port int, timeout time.Duration) (*status.Snapshot, error) {
	client := &http.Client{Timeout: timeout}
	url := fmt.Sprintf("http://127.0.0.1:%d/api/indexing-status", port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("peer indexing-status returned status %d", resp.StatusCode)
	}
	var out status.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding peer indexing-status response: %w", err)
	}
	return &out, nil
}
