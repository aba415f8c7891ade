// Package xdgerr defines the error taxonomy surfaced by the deployment
// engine: a small typed Kind enum wrapped in an Error that composes with
// errors.Is/errors.As, so callers can branch on AlreadyDeployed or
// AlreadyUndeployed without string matching.
package xdgerr

import "fmt"

// Kind classifies an Error.
type Kind int

const (
	Unknown Kind = iota
	// AlreadyDeployed is returned when a deploy target path already exists.
	AlreadyDeployed
	// AlreadyUndeployed is returned when an undeploy target path is absent.
	AlreadyUndeployed
	// Validation covers export-name-prefix and D-Bus service name mismatches.
	Validation
	// IO wraps a failing filesystem call, annotated with the path.
	IO
	// Store wraps a failing repository-handle operation.
	Store
	// Cancelled marks a cooperative cancellation observed mid-operation.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case AlreadyDeployed:
		return "AlreadyDeployed"
	case AlreadyUndeployed:
		return "AlreadyUndeployed"
	case Validation:
		return "Validation"
	case IO:
		return "IO"
	case Store:
		return "Store"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by the engine. Op names the
// failing step, Path is the filesystem path involved (if any), and Err is
// the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so errors.Is(err,
// xdgerr.ErrAlreadyDeployed) works regardless of Op/Path/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an Error for a failing step with no specific path.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewPath builds an Error for a failing step against a specific path.
func NewPath(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Sentinel values for errors.Is comparisons; only Kind is consulted.
var (
	ErrAlreadyDeployed   = &Error{Kind: AlreadyDeployed}
	ErrAlreadyUndeployed = &Error{Kind: AlreadyUndeployed}
)
