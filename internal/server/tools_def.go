package server

import "github.com/mark3labs/mcp-go/mcp"

// toolDefinition pairs an MCP-facing schema with the tool name dispatched
// through tools.Registry. The registry remains the single source of truth
// for what a tool does; this is purely the wire-shape MCP clients see.
type toolDefinition struct {
	tool mcp.Tool
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func enumProp(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}

func toolDefinitions() []toolDefinition {
	return []toolDefinition{
		{mcp.Tool{
			Name:        "search_code",
			Description: "Refined vector search over indexed code and commits, returning summarized snippets.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query":     stringProp("Natural language description of the code to find."),
					"sessionId": stringProp("Existing session id to continue, or empty to start a new one."),
				},
				Required: []string{"query"},
			},
		}},
		{mcp.Tool{
			Name:        "get_repository_context",
			Description: "Search plus the latest repository diff plus a summary of recent queries.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query":     stringProp("Natural language description of the context to gather."),
					"sessionId": stringProp("Existing session id to continue, or empty to start a new one."),
				},
				Required: []string{"query"},
			},
		}},
		{mcp.Tool{
			Name:        "generate_suggestion",
			Description: "Retrieval-augmented generation of a code suggestion. Requires a configured suggestion model.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query":     stringProp("What to generate a suggestion for."),
					"sessionId": stringProp("Existing session id to continue, or empty to start a new one."),
				},
				Required: []string{"query"},
			},
		}},
		{mcp.Tool{
			Name:        "get_changelog",
			Description: "Returns the contents of CHANGELOG.md at the repository root, if present.",
			InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
		}},
		{mcp.Tool{
			Name:        "analyze_code_problem",
			Description: "Two-pass analysis (diagnosis, then implementation plan) of a described problem. Requires a configured suggestion model.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query":     stringProp("Description of the problem to analyze."),
					"sessionId": stringProp("Existing session id to continue, or empty to start a new one."),
				},
				Required: []string{"query"},
			},
		}},
		{mcp.Tool{
			Name:        "agent_query",
			Description: "Invokes the multi-step agent loop for a complex query that may need several rounds of tool use.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"query":     stringProp("The complex question for the agent to work through."),
					"sessionId": stringProp("Existing session id to continue, or empty to start a new one."),
				},
				Required: []string{"query"},
			},
		}},
		{mcp.Tool{
			Name:        "request_additional_context",
			Description: "Fetches more search results, a full file, a directory listing, or adjacent file chunks.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"context_type": enumProp("Which kind of additional context to fetch.",
						"MORE_SEARCH_RESULTS", "FULL_FILE_CONTENT", "DIRECTORY_LISTING", "ADJACENT_FILE_CHUNKS"),
					"query_or_path": stringProp("A search query, or a repository-relative path, depending on context_type."),
					"chunk_index":   numberProp("The chunk index to find neighbors of, for ADJACENT_FILE_CHUNKS."),
					"reasoning":     stringProp("Why this additional context is needed."),
					"sessionId":     stringProp("Existing session id to continue, or empty to start a new one."),
				},
				Required: []string{"context_type", "query_or_path"},
			},
		}},
		{mcp.Tool{
			Name:        "request_more_processing_steps",
			Description: "Acknowledges a request to raise the agent loop's step budget to its absolute maximum.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]interface{}{"reasoning": stringProp("Why more steps are needed.")},
				Required:   []string{"reasoning"},
			},
		}},
		{mcp.Tool{
			Name:        "switch_suggestion_model",
			Description: "Switches the active suggestion provider/model and clears provider caches.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]interface{}{
					"model":    stringProp("The model name to switch to."),
					"provider": stringProp("The provider name to switch to, or empty to keep the current provider."),
				},
				Required: []string{"model"},
			},
		}},
		{mcp.Tool{
			Name:        "get_indexing_status",
			Description: "Returns a snapshot of the current indexing run's progress.",
			InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
		}},
		{mcp.Tool{
			Name:        "trigger_repository_update",
			Description: "Starts a re-index run in the background; rejected if one is already active.",
			InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
		}},
	}
}
