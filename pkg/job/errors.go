package job

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds surfaced by the core, per spec.md §7.
type Kind int

const (
	// KindBadAttrValue covers a malformed range, unknown attribute, or type
	// mismatch.
	KindBadAttrValue Kind = iota
	// KindMaxArraySize means the submitted count exceeds the tunable.
	KindMaxArraySize
	// KindModifyWhileRunning means an ALTER landed on a parent past Queued.
	KindModifyWhileRunning
	// KindIvalreq covers a malformed id, missing field, or refused enqueue.
	KindIvalreq
	// KindSystem is an allocation-class failure: always recoverable by the
	// caller, never aborts the process.
	KindSystem
	// KindInternal is an invariant violation; logged at error severity,
	// the callback returns without mutating state.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadAttrValue:
		return "BadAttrValue"
	case KindMaxArraySize:
		return "MaxArraySize"
	case KindModifyWhileRunning:
		return "ModifyWhileRunning"
	case KindIvalreq:
		return "Ivalreq"
	case KindSystem:
		return "System"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the error type every array-job operation returns. Kind lets
// callers branch on the policy in spec.md §7 (recover locally vs. surface
// a numeric status to an RPC client) without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("job: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("job: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &Error{Kind: KindSystem}) match any *Error of the
// same Kind, regardless of message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// Newf constructs an *Error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Recoverable reports whether the policy in spec.md §7 treats err as
// locally recoverable (System/Internal): callbacks return without
// mutating state rather than propagating to an RPC client.
func Recoverable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindSystem || e.Kind == KindInternal
}
