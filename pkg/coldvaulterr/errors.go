// Package coldvaulterr provides the typed error taxonomy shared by every
// coldvault package: the cache, repository, backup pipeline, scanner, GC and
// restore all classify failures into one of a small set of codes rather than
// returning bare errors, so callers can decide whether to retry, abort, or
// surface a user-facing message.
package coldvaulterr

import (
	"errors"
	"fmt"
)

// Code classifies the kind of failure a coldvault operation encountered.
type Code int

const (
	// CodeTransientIO indicates a storage-adapter failure that is expected to
	// clear on retry: a dropped connection, a 5xx response, a timeout.
	CodeTransientIO Code = iota + 1

	// CodeFilesystemTransient indicates a local filesystem error encountered
	// while scanning or backing up that is not fatal to the run: a file
	// vanishing between lstat and open, a permission-denied directory.
	CodeFilesystemTransient

	// CodeCorruption indicates downloaded or decoded data failed an integrity
	// check: an HMAC/hash mismatch, a malformed TLV payload, a truncated
	// compressed stream.
	CodeCorruption

	// CodeContractViolation indicates an invariant the codebase itself should
	// never violate: a missing object the cache believes is reachable, a
	// dependency-ordering bug in the backup pipeline.
	CodeContractViolation

	// CodeConfiguration indicates a problem with user-supplied configuration:
	// a missing required field, an unreachable storage backend, a malformed
	// key file.
	CodeConfiguration

	// CodeNotFound indicates the requested object, root, or snapshot does not
	// exist.
	CodeNotFound
)

// String returns a human-readable name for the code.
func (c Code) String() string {
	switch c {
	case CodeTransientIO:
		return "TransientIO"
	case CodeFilesystemTransient:
		return "FilesystemTransient"
	case CodeCorruption:
		return "Corruption"
	case CodeContractViolation:
		return "ContractViolation"
	case CodeConfiguration:
		return "Configuration"
	case CodeNotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is a coldvault error carrying a Code alongside the wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an *Error that wraps err, preserving it for errors.Is/As.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the Code carried by err, or 0 if err is not (or does not
// wrap) a coldvaulterr *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsTransient reports whether err should be retried: transient I/O or a
// transient filesystem condition encountered mid-scan.
func IsTransient(err error) bool {
	code := CodeOf(err)
	return code == CodeTransientIO || code == CodeFilesystemTransient
}

// IsCorruption reports whether err indicates the repository returned data
// that failed integrity verification.
func IsCorruption(err error) bool {
	return CodeOf(err) == CodeCorruption
}

// IsNotFound reports whether err indicates a missing object, root, or
// snapshot.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// ErrCorruptedRepository is returned by the repository facade when a
// downloaded object's re-computed address does not match the address it was
// requested under — the Python original's CorruptedRepository exception.
var ErrCorruptedRepository = New(CodeCorruption, "object content does not match its address")
