package query

import (
	"errors"
	"fmt"
)

// Those errors are useful for comparing errors returned by the engine.
// e.g. errors.Is(err, query.ErrParse) tells you the raw query was malformed.
var (
	ErrParse           = errors.New("failed to parse the query")
	ErrInvalidArgument = errors.New("invalid query argument")
	ErrStorage         = errors.New("storage failure")
	ErrAssertion       = errors.New("internal assertion failed")
)

// Status codes reported to callers. They follow POSIX errno values.
const (
	StatusOK              = 0
	StatusIO              = 5
	StatusInvalidArgument = 22
	StatusBadMessage      = 74
	StatusNotRecoverable  = 131
)

// ParseError is returned when a query clause is malformed or a required key is missing.
type ParseError struct {
	clause string
	msg    string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.clause, e.msg)
}

// Is allows to use errors.Is(err, ErrParse) on this error.
func (e ParseError) Is(target error) bool {
	return target == ErrParse
}

func newParseError(clause, format string, args ...any) ParseError {
	return ParseError{clause: clause, msg: fmt.Sprintf(format, args...)}
}

// InvalidArgumentError is returned for well-formed queries that reference
// fields or tables the schema does not allow.
type InvalidArgumentError struct {
	clause string
	msg    string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument in %s: %s", e.clause, e.msg)
}

// Is allows to use errors.Is(err, ErrInvalidArgument) on this error.
func (e InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func newInvalidArgumentError(clause, format string, args ...any) InvalidArgumentError {
	return InvalidArgumentError{clause: clause, msg: fmt.Sprintf(format, args...)}
}

type storageError struct {
	error
}

func newStorageError(err error) storageError {
	return storageError{error: err}
}

func (e storageError) Error() string { return "storage error: " + e.error.Error() }

func (e storageError) Unwrap() error { return e.error }

// Is allows to use errors.Is(err, ErrStorage) on this error.
func (e storageError) Is(target error) bool {
	return target == ErrStorage
}

type assertionError struct {
	error
}

func newAssertionError(err error) assertionError {
	return assertionError{error: err}
}

func (e assertionError) Error() string { return "assertion failed: " + e.error.Error() }

func (e assertionError) Unwrap() error { return e.error }

// Is allows to use errors.Is(err, ErrAssertion) on this error.
func (e assertionError) Is(target error) bool {
	return target == ErrAssertion
}

// StatusCode maps an engine error to its status code. Unknown errors are
// reported as I/O failures.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrParse):
		return StatusBadMessage
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrAssertion):
		return StatusNotRecoverable
	}
	return StatusIO
}
