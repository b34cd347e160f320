// Copyright 2024 The Anvil Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package diag defines the error taxonomy shared across the IR,
// optimizer, and backend packages.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code classifies a failure reported by the core pipeline.
type Code int

const (
	// OK indicates no error occurred.
	OK Code = iota

	// InvalidArgument indicates null or malformed caller input.
	InvalidArgument

	// OutOfMemory indicates an allocation failure.
	OutOfMemory

	// IO indicates a file write failure.
	IO

	// NoBackend indicates codegen was requested without an
	// architecture bound.
	NoBackend

	// Unsupported indicates an opcode or feature not yet lowered
	// on the current backend.
	Unsupported

	// Internal indicates an invariant violation, such as an
	// instruction inserted with no active block.
	Internal
)

var codeNames = [...]string{
	OK:              "ok",
	InvalidArgument: "invalid argument",
	OutOfMemory:     "out of memory",
	IO:              "io error",
	NoBackend:       "no backend",
	Unsupported:     "unsupported",
	Internal:        "internal error",
}

func (c Code) String() string {
	if int(c) < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("Code(%d)", int(c))
	}

	return codeNames[c]
}

// Error is the error type returned across the public API. It
// carries a Code for programmatic handling, a human-readable
// message, and an optional wrapped cause (with a stack trace
// attached by pkg/errors, retrievable via "%+v").
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the cause.
func (e *Error) Unwrap() error { return e.cause }

// Format implements fmt.Formatter so that "%+v" includes the
// stack trace captured when the error was created.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", e.Error())
			if st, ok := e.cause.(interface{ StackTrace() errors.StackTrace }); ok {
				fmt.Fprintf(s, "%+v", st.StackTrace())
			}
			return
		}
		fallthrough
	default:
		fmt.Fprintf(s, "%s", e.Error())
	}
}

// New creates an Error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.New(fmt.Sprintf(format, args...)),
	}
}

// Wrap creates an Error that records cause as its underlying
// reason, with a stack trace captured at the wrap site.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	if cause == nil {
		return New(code, format, args...)
	}

	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   errors.WithStack(cause),
	}
}

// Is reports whether err is a *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Code == code
}
