package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerPrompts wires the three named prompts, each parameterized by a
// single "query" argument, that point an MCP client at the tool best
// suited to that kind of request.
func (h *Host) registerPrompts() {
	h.mcpServer.AddPrompt(
		mcp.NewPrompt("repository-context",
			mcp.WithPromptDescription("Gather search results, the latest diff, and recent-query history for a question about this repository."),
			mcp.WithArgument("query", mcp.ArgumentDescription("What you want context about.")),
		),
		h.promptHandler("get_repository_context", "Gather repository context for: %s"),
	)

	h.mcpServer.AddPrompt(
		mcp.NewPrompt("code-suggestion",
			mcp.WithPromptDescription("Generate a retrieval-augmented code suggestion."),
			mcp.WithArgument("query", mcp.ArgumentDescription("What you want suggested.")),
		),
		h.promptHandler("generate_suggestion", "Generate a code suggestion for: %s"),
	)

	h.mcpServer.AddPrompt(
		mcp.NewPrompt("code-analysis",
			mcp.WithPromptDescription("Analyze a described problem and propose an implementation plan."),
			mcp.WithArgument("query", mcp.ArgumentDescription("The problem to analyze.")),
		),
		h.promptHandler("analyze_code_problem", "Analyze this problem: %s"),
	)
}

// promptHandler returns a GetPromptResult pointing the client at toolName
// with the caller's query, rather than invoking the tool itself — prompts
// are templates for the client's own model, not a server-side shortcut.
func (h *Host) promptHandler(toolName, instructionFormat string) func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		text := promptText(toolName, instructionFormat, request.Params.Arguments["query"])
		return &mcp.GetPromptResult{
			Description: "Use " + toolName + " to answer the query.",
			Messages: []mcp.PromptMessage{{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: text},
			}},
		}, nil
	}
}

// promptText is the pure logic behind every prompt handler, kept separate
// from the MCP request/response shape so it can be unit tested directly.
func promptText(toolName, instructionFormat, query string) string {
	return fmt.Sprintf(instructionFormat, query) + fmt.Sprintf("\n\nCall the %q tool with this query to fulfill the request.", toolName)
}
