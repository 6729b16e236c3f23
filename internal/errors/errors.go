// Package errors holds the error kinds shared by every wandering-echo component.
//
// Kinds are constant errors; an error carries a kind when errors.Is(err, kind)
// holds. Use Mark to attach a kind to an existing cause and Newf to create a
// fresh error of a kind.
package errors

import (
	"fmt"

	"github.com/juju/errors"
)

const (
	// NotConfigured is raised when an operation needs the registry before it
	// has been loaded or bootstrapped.
	NotConfigured = errors.ConstError("not configured")

	// IOFailure is raised for filesystem and external process failures.
	IOFailure = errors.ConstError("i/o failure")

	// Timeout is raised when an external primitive exceeds its time budget
	// and had to be killed.
	Timeout = errors.ConstError("timed out")

	// NotFound is raised when a sidecar record, document or parent that was
	// expected to exist is missing.
	NotFound = errors.ConstError("not found")

	// DataInconsistent is raised for malformed records and for snapshot
	// histories with duplicate timestamps.
	DataInconsistent = errors.ConstError("data inconsistent")
)

type kindError struct {
	kind  errors.ConstError
	cause error
}

func (e *kindError) Error() string {
	return e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

// Mark returns err so that errors.Is(result, kind) holds while the original
// cause stays reachable. A nil err stays nil.
func Mark(err error, kind errors.ConstError) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &kindError{kind: kind, cause: err}
}

// Newf formats a new error of the given kind.
func Newf(kind errors.ConstError, format string, args ...any) error {
	return &kindError{kind: kind, cause: errors.New(fmt.Sprintf(format, args...))}
}
