// Package errkind defines the runtime's error taxonomy: Transient, CBOpen,
// Contract, Ceiling, Cancelled, and Fatal. Every layer wraps errors in one of
// these kinds so callers can branch on errors.Is / errors.As instead of
// string matching, grounded on the teacher's retry.PermanentError wrapper
// pattern (internal/retry/retry.go) generalized to a full enum.
package errkind

import "fmt"

// Kind is one of the six error classes the runtime distinguishes.
type Kind string

const (
	Transient Kind = "transient"
	CBOpen    Kind = "cb_open"
	Contract  Kind = "contract"
	Ceiling   Kind = "ceiling"
	Cancelled Kind = "cancelled"
	Fatal     Kind = "fatal"
)

// Error wraps an underlying error with its taxonomy kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind and an operation label. Returns nil if err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a new Error from a format string.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if k, ok := err.(*Error); ok {
			e = k
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// KindOf returns the Kind carried by err, or "" if err is not a tagged Error.
func KindOf(err error) Kind {
	var e *Error
	cur := err
	for cur != nil {
		if k, ok := cur.(*Error); ok {
			e = k
			break
		}
		u, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = u.Unwrap()
	}
	if e == nil {
		return ""
	}
	return e.Kind
}

// Reason maps a Kind to the stable chat-engine error reason string surfaced
// to callers ("cb_open", "cap_exceeded", "cancelled", "llm_unavailable",
// "tool_error", "internal").
func Reason(kind Kind) string {
	switch kind {
	case CBOpen:
		return "cb_open"
	case Ceiling:
		return "cap_exceeded"
	case Cancelled:
		return "cancelled"
	case Transient:
		return "llm_unavailable"
	case Contract:
		return "tool_error"
	default:
		return "internal"
	}
}
