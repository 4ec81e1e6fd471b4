// Package agent implements the multi-step reasoning loop: repeatedly ask
// an LLMProvider for a reasoning step, parse any tool calls out of its
// output, dispatch them, and accumulate results until the model produces
// a plain final answer or a step budget is exhausted.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codecompass/codecompass-go/internal/llm"
	"github.com/codecompass/codecompass-go/internal/metrics"
	"github.com/codecompass/codecompass-go/internal/session"
)

// Dispatcher is the surface AgentLoop needs from a tool registry. It is
// declared here, not imported from internal/tools, so that package can in
// turn depend on agent (to implement the agent_query tool) without an
// import cycle.
type Dispatcher interface {
	// Dispatch executes tool by name with the given parameters and
	// returns a string suitable for appending to the model's context.
	Dispatch(ctx context.Context, sess *session.Session, name string, params map[string]any) (string, error)
	// SystemPromptCatalog renders the tool descriptions to include in the
	// system prompt, filtered by whether a suggestion model is available.
	SystemPromptCatalog(modelAvailable bool) string
}

// Timeouts bounds the three kinds of LLM/tool calls an AgentLoop makes.
type Timeouts struct {
	Reasoning     time.Duration
	Tool          time.Duration
	FinalResponse time.Duration
}

// StepBounds bounds how many reasoning/tool steps a single invocation may
// take before it is forced to conclude.
type StepBounds struct {
	DefaultMaxSteps  int
	AbsoluteMaxSteps int
}

// Step is one completed iteration of the loop.
type Step struct {
	Tool   string
	Input  map[string]any
	Output string
}

// Loop runs the agent execution described by the component design.
type Loop struct {
	provider   llm.Provider
	sessions   *session.Store
	dispatcher Dispatcher
	timeouts   Timeouts
	bounds     StepBounds
	metrics    *metrics.Collector
}

// New builds a Loop.
func New(provider llm.Provider, sessions *session.Store, dispatcher Dispatcher, timeouts Timeouts, bounds StepBounds) *Loop {
	return &Loop{provider: provider, sessions: sessions, dispatcher: dispatcher, timeouts: timeouts, bounds: bounds}
}

// WithMetrics attaches a Collector that observes every Run's termination
// reason and step count. Passing a nil Collector disables observation.
func (l *Loop) WithMetrics(c *metrics.Collector) *Loop {
	l.metrics = c
	return l
}

// Request is the input to a single agent invocation.
type Request struct {
	Query                    string
	SessionID                string
	RepoPath                 string
	SuggestionModelAvailable bool
}

const fallbackExtensionNote = "[Note: The agent utilized the maximum allowed processing steps.]"

// Run executes the full loop and returns the formatted final response,
// including the session id, per the component design's final step.
func (l *Loop) Run(ctx context.Context, req Request) (string, error) {
	if l.provider.CheckConnection(ctx) {
		if _, err := l.provider.GenerateText(ctx, "ping"); err != nil {
			slog.Warn("agent: provider warm-up generation failed", "error", err)
		}
	} else {
		slog.Warn("agent: provider connection check failed")
	}

	sess, err := l.sessions.GetOrCreate(req.SessionID, req.RepoPath)
	if err != nil {
		return "", err
	}

	systemPrompt := l.dispatcher.SystemPromptCatalog(req.SuggestionModelAvailable)

	var steps []Step
	currentMaxSteps := l.bounds.DefaultMaxSteps
	terminatedDueToAbsoluteMax := false
	var finalResponse string
	isComplete := false

	for i := 0; i < currentMaxSteps; i++ {
		if i >= l.bounds.AbsoluteMaxSteps {
			terminatedDueToAbsoluteMax = true
			break
		}

		prompt := buildPrompt(systemPrompt, req.Query, steps)

		output, err := l.reason(ctx, prompt)
		if err != nil {
			slog.Warn("agent: reasoning call failed, substituting fallback tool call", "error", err)
			calls := []toolCall{{Tool: "search_code", Parameters: map[string]any{
				"query":     req.Query,
				"sessionId": sess.ID,
			}}}
			steps, finalResponse, isComplete = l.executeStep(ctx, sess, steps, calls, &currentMaxSteps)
			if isComplete {
				break
			}
			continue
		}

		calls := parseToolCalls(output)
		if len(calls) == 0 {
			finalResponse = output
			isComplete = true
			break
		}

		steps, finalResponse, isComplete = l.executeStep(ctx, sess, steps, calls, &currentMaxSteps)
		if isComplete {
			break
		}
		// Recomputed after executeStep, using the post-call currentMaxSteps:
		// a request_more_processing_steps call in this same iteration raises
		// currentMaxSteps before this check runs, so an extension granted on
		// what was the last step of the prior budget correctly un-latches
		// lastStep instead of forcing an immediate summarize-and-terminate.
		lastStep := i == currentMaxSteps-1 || i == l.bounds.AbsoluteMaxSteps-1
		if lastStep {
			terminatedDueToAbsoluteMax = true
			finalResponse = l.summarize(ctx, req.Query, steps)
			isComplete = true
			break
		}
	}

	if !isComplete {
		terminatedDueToAbsoluteMax = true
		finalResponse = l.summarize(ctx, req.Query, steps)
	}

	if terminatedDueToAbsoluteMax {
		finalResponse = strings.TrimSpace(finalResponse + "\n\n" + fallbackExtensionNote)
	}

	l.sessions.AddSuggestion(sess, req.Query, finalResponse)

	if l.metrics != nil {
		termination := "completed"
		if terminatedDueToAbsoluteMax {
			termination = "max_steps"
		}
		l.metrics.ObserveAgentRun(termination, len(steps))
	}

	return fmt.Sprintf("[session:%s] %s", sess.ID, finalResponse), nil
}

// executeStep dispatches every call in calls, handling
// request_more_processing_steps specially (it may raise currentMaxSteps
// rather than producing ordinary tool output), and returns the updated
// step list, a final response, and whether the loop should terminate
// immediately. It always returns an empty final response and false.
func (l *Loop) executeStep(ctx context.Context, sess *session.Session, steps []Step, calls []toolCall, currentMaxSteps *int) ([]Step, string, bool) {
	for _, c := range calls {
		if c.Tool == "request_more_processing_steps" {
			if *currentMaxSteps < l.bounds.AbsoluteMaxSteps {
				*currentMaxSteps = l.bounds.AbsoluteMaxSteps
			}
		}

		output, err := l.dispatchWithTimeout(ctx, sess, c.Tool, c.Parameters)
		if err != nil {
			output = fmt.Sprintf("error: %v", err)
		}

		steps = append(steps, Step{Tool: c.Tool, Input: c.Parameters, Output: output})
	}
	return steps, "", false
}

func (l *Loop) reason(ctx context.Context, prompt string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, l.timeouts.Reasoning)
	defer cancel()
	return l.provider.GenerateText(rctx, prompt)
}

func (l *Loop) dispatchWithTimeout(ctx context.Context, sess *session.Session, tool string, params map[string]any) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, l.timeouts.Tool)
	defer cancel()
	return l.dispatcher.Dispatch(tctx, sess, tool, params)
}

// summarize requests a final response with a timeout, falling back to a
// synthesized concatenation of short step previews on timeout or error.
func (l *Loop) summarize(ctx context.Context, query string, steps []Step) string {
	fctx, cancel := context.WithTimeout(ctx, l.timeouts.FinalResponse)
	defer cancel()

	prompt := "Summarize the findings below to answer: " + query + "\n\n" + renderSteps(steps)
	resp, err := l.provider.GenerateText(fctx, prompt)
	if err == nil {
		return resp
	}

	slog.Warn("agent: final response generation failed, synthesizing fallback", "error", err)
	var b strings.Builder
	b.WriteString("Here is what was found:\n")
	for _, s := range steps {
		preview := s.Output
		if len(preview) > 160 {
			preview = preview[:160] + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", s.Tool, preview)
	}
	return b.String()
}

func buildPrompt(systemPrompt, query string, steps []Step) string {
	return systemPrompt + "\n\nUser query: " + query + "\n\n" + renderSteps(steps)
}

func renderSteps(steps []Step) string {
	if len(steps) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous steps:\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s(%v) -> %s\n", i+1, s.Tool, s.Input, s.Output)
	}
	return b.String()
}

type toolCall struct {
	Tool       string
	Parameters map[string]any
}

const toolCallPrefix = "TOOL_CALL:"

// parseToolCalls scans lines beginning with "TOOL_CALL:" and parses the
// remainder as JSON, accepting entries with a string "tool" field and an
// object "parameters" field.
func parseToolCalls(output string) []toolCall {
	var calls []toolCall
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, toolCallPrefix) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, toolCallPrefix))

		var decoded struct {
			Tool       string         `json:"tool"`
			Parameters map[string]any `json:"parameters"`
		}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			continue
		}
		if decoded.Tool == "" || decoded.Parameters == nil {
			continue
		}
		calls = append(calls, toolCall{Tool: decoded.Tool, Parameters: decoded.Parameters})
	}
	return calls
}

// renderToolCall is the inverse of parseToolCalls, used by tests to
// verify the round-trip invariant: parsing a rendered call always yields
// an equivalent call.
func renderToolCall(tc toolCall) string {
	payload, _ := json.Marshal(map[string]any{"tool": tc.Tool, "parameters": tc.Parameters})
	return toolCallPrefix + string(payload)
}
