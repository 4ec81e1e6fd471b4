package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/codecompass/codecompass-go/internal/gitinspect"
)

const filesResourcePrefix = "repo://files/"

// registerResources wires the four MCP resources the component design
// requires: a directory listing of the repository root, a path-templated
// raw-file-content resource, a health check, and the server version.
func (h *Host) registerResources() {
	structureResource := mcp.NewResource(
		"repo://structure",
		"Repository structure",
		mcp.WithResourceDescription("Top-level directory listing of the indexed repository."),
		mcp.WithMIMEType("text/plain"),
	)
	h.mcpServer.AddResource(structureResource, h.handleStructure)

	healthResource := mcp.NewResource(
		"repo://health",
		"Server health",
		mcp.WithResourceDescription("Whether the server is reachable and how long it has been running."),
		mcp.WithMIMEType("application/json"),
	)
	h.mcpServer.AddResource(healthResource, h.handleHealth)

	versionResource := mcp.NewResource(
		"repo://version",
		"Server version",
		mcp.WithResourceDescription("The server's name and version string."),
		mcp.WithMIMEType("application/json"),
	)
	h.mcpServer.AddResource(versionResource, h.handleVersion)

	filesTemplate := mcp.NewResourceTemplate(
		filesResourcePrefix+"{filepath}",
		"File content",
		mcp.WithTemplateDescription("Raw content of a file in the indexed repository, addressed by its repository-relative path."),
		mcp.WithTemplateMIMEType("text/plain"),
	)
	h.mcpServer.AddResourceTemplate(filesTemplate, h.handleFileContent)
}

func (h *Host) handleStructure(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := h.structureText(ctx)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI: "repo://structure", MIMEType: "text/plain", Text: text,
	}}, nil
}

// structureText is the pure logic behind repo://structure, kept separate
// from the MCP request/response shape so it can be unit tested directly.
func (h *Host) structureText(ctx context.Context) (string, error) {
	return h.registry.Dispatch(ctx, nil, "request_additional_context", map[string]any{
		"context_type":  "DIRECTORY_LISTING",
		"query_or_path": ".",
	})
}

func (h *Host) handleFileContent(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	relPath, ok := relPathFromFileURI(uri)
	if !ok {
		return nil, fmt.Errorf("invalid file resource URI: %s", uri)
	}

	text, err := h.fileContentText(ctx, relPath)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI: uri, MIMEType: "text/plain", Text: text,
	}}, nil
}

// relPathFromFileURI extracts the repository-relative path from a
// repo://files/{filepath} resource URI.
func relPathFromFileURI(uri string) (string, bool) {
	relPath := strings.TrimPrefix(uri, filesResourcePrefix)
	if relPath == uri || relPath == "" {
		return "", false
	}
	return relPath, true
}

// fileContentText is the pure logic behind repo://files/{filepath}.
func (h *Host) fileContentText(ctx context.Context, relPath string) (string, error) {
	return h.registry.Dispatch(ctx, nil, "request_additional_context", map[string]any{
		"context_type":  "FULL_FILE_CONTENT",
		"query_or_path": relPath,
	})
}

func (h *Host) handleHealth(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	body, _ := json.Marshal(h.healthPayload())
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI: "repo://health", MIMEType: "application/json", Text: string(body),
	}}, nil
}

// healthPayload is the pure logic behind repo://health.
func (h *Host) healthPayload() map[string]any {
	uptime := time.Duration(0)
	if !h.startedAt.IsZero() {
		uptime = time.Since(h.startedAt)
	}
	return map[string]any{
		"status":           "ok",
		"repository_valid": gitinspect.ValidateRepository(h.repoPath),
		"uptime_seconds":   uptime.Seconds(),
	}
}

func (h *Host) handleVersion(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	body, _ := json.Marshal(h.versionPayload())
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI: "repo://version", MIMEType: "application/json", Text: string(body),
	}}, nil
}

// versionPayload is the pure logic behind repo://version.
func (h *Host) versionPayload() map[string]any {
	return map[string]any{"service": h.cfg.Server.Name, "version": h.cfg.Server.Version}
}
