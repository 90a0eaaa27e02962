// Package vexerrors defines the error taxonomy shared by every storage
// engine component: callers switch on Kind rather than parsing messages.
package vexerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the families every component
// agrees to report through.
type Kind int

const (
	// Structural errors indicate the on-disk bytes themselves are wrong.
	KindInvalidMagic Kind = iota
	KindUnsupportedVersion
	KindChecksumMismatch
	KindInvalidData
	KindInvalidArgument

	// State errors indicate the filesystem is not in a state that
	// permits the requested operation.
	KindNotMounted
	KindNeedsFsck

	// Resource errors indicate exhaustion of a bounded resource.
	KindNoSpace
	KindQueueFull

	// Concurrency errors are raised by lock/cache/scheduling contention.
	KindLockConflict
	KindCacheDirty
	KindCacheLocked
	KindInvalidOperation
	KindTimeout

	// Lookup errors report absence, not malfunction.
	KindEntryNotFound

	// Integrity errors flag invariant violations that should be
	// unreachable in a correct implementation.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidMagic:
		return "InvalidMagic"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindInvalidData:
		return "InvalidData"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotMounted:
		return "NotMounted"
	case KindNeedsFsck:
		return "NeedsFsck"
	case KindNoSpace:
		return "NoSpace"
	case KindQueueFull:
		return "QueueFull"
	case KindLockConflict:
		return "LockConflict"
	case KindCacheDirty:
		return "CacheDirty"
	case KindCacheLocked:
		return "CacheLocked"
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindTimeout:
		return "Timeout"
	case KindEntryNotFound:
		return "EntryNotFound"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by every storage engine
// package. It wraps an optional cause so errors.Is/errors.As keep
// working across package boundaries.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, allowing
// callers to write errors.Is(err, vexerrors.New(KindNoSpace, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an *Error with no underlying cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an *Error that chains an underlying cause.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// Of reports the Kind of err, or false if err is not (or does not wrap)
// a *Error.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
