// Package apperr defines the error kinds shared across CodeCompass's
// components, so callers can branch on failure class with errors.Is/As
// instead of string-matching messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of the categories the server's callers
// (tool handlers, HTTP handlers, the agent loop) need to treat differently.
type Kind string

const (
	// KindConfiguration covers invalid ports, missing API keys, and
	// mismatched vector collection dimensions. Fatal at startup.
	KindConfiguration Kind = "configuration"
	// KindTransport covers LLM/vector-store network failures and timeouts
	// that have already exhausted retry.
	KindTransport Kind = "transport"
	// KindValidation covers malformed tool parameters, unknown tool names,
	// and path-traversal attempts. Never terminal.
	KindValidation Kind = "validation"
	// KindBusy covers a re-index request arriving while one is active.
	KindBusy Kind = "busy"
	// KindPeerConflict covers another CodeCompass instance already holding
	// the utility port.
	KindPeerConflict Kind = "peer_conflict"
	// KindTimeout covers a reasoning, tool, or final-response call that
	// exceeded its budget.
	KindTimeout Kind = "timeout"
)

// Error is a typed, wrapped error carrying a Kind for classification.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "VectorStore.Search"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, &apperr.Error{Kind: apperr.KindBusy})-style checks.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error for the given kind, operation, and cause.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of returns the Kind carried by err, or "" if err is not (or does not wrap)
// an *Error.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return Of(err) == kind
}
