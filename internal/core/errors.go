package core

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	RoutingAmbiguous
	InferenceFailure
	ToolUnknown
	ToolArgumentMissing
	ToolExecutionFailed
	PersistenceFailure
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case RoutingAmbiguous:
		return "routing ambiguous"
	case InferenceFailure:
		return "inference failure"
	case ToolUnknown:
		return "unknown tool"
	case ToolArgumentMissing:
		return "missing tool argument"
	case ToolExecutionFailed:
		return "tool execution failed"
	case PersistenceFailure:
		return "persistence failure"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown error"
	}
}

// Error carries a kind so callers can branch on the failure class with errors.Is.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when target is one of the bare sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// ErrNotFound is returned when a looked up record does not exist.
var ErrNotFound = errors.New("not found")

var (
	ErrRoutingAmbiguous    = &Error{Kind: RoutingAmbiguous}
	ErrInferenceFailure    = &Error{Kind: InferenceFailure}
	ErrToolUnknown         = &Error{Kind: ToolUnknown}
	ErrToolArgumentMissing = &Error{Kind: ToolArgumentMissing}
	ErrToolExecutionFailed = &Error{Kind: ToolExecutionFailed}
	ErrPersistenceFailure  = &Error{Kind: PersistenceFailure}
	ErrCancelled           = &Error{Kind: Cancelled}
)

func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of err. Context cancellation and deadline errors
// count as Cancelled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return KindUnknown
}
