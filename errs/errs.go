// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package errs provides the typed error system used throughout this
// module, following the pattern used by pktd's btcutil/er package: errors
// are identified by an ErrorType/ErrorCode pair rather than by sentinel
// values, so a caller can ask "is this a store error" without string
// matching.
package errs

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// R is the error interface returned by every public operation in this
// module in place of the stdlib error.
type R interface {
	error
	Code() *ErrorCode
	Message() string
	Stack() []string
	Unwrap() error
}

// ErrorType groups a family of related ErrorCodes, e.g. all of the codes
// raised by the txindex package.
type ErrorType struct {
	Name string
}

// NewErrorType creates a new error type identified by name, e.g.
//
//	var Err = errs.NewErrorType("txindex.Err")
func NewErrorType(ident string) ErrorType {
	return ErrorType{Name: ident}
}

// ErrorCode identifies one specific fault within an ErrorType.
type ErrorCode struct {
	typ  *ErrorType
	name string
}

// Code registers a new ErrorCode under this ErrorType.
func (t *ErrorType) Code(name string) *ErrorCode {
	return &ErrorCode{typ: t, name: name}
}

// Is reports whether err was constructed from this ErrorCode.
func (c *ErrorCode) Is(err error) bool {
	te, ok := err.(*typedErr)
	return ok && te.code == c
}

// New constructs an R from this code, optionally wrapping an underlying
// error and attaching a human-readable detail string.
func (c *ErrorCode) New(detail string, wrapped error) R {
	return &typedErr{
		code:    c,
		detail:  detail,
		wrapped: wrapped,
		stack:   debug.Stack(),
	}
}

type typedErr struct {
	code    *ErrorCode
	detail  string
	wrapped error
	stack   []byte
}

func (e *typedErr) Code() *ErrorCode { return e.code }

func (e *typedErr) Message() string {
	parts := make([]string, 0, 2)
	parts = append(parts, fmt.Sprintf("%s.%s", e.code.typ.Name, e.code.name))
	if e.detail != "" {
		parts = append(parts, e.detail)
	}
	if e.wrapped != nil {
		parts = append(parts, e.wrapped.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *typedErr) Error() string { return e.Message() }

func (e *typedErr) Unwrap() error { return e.wrapped }

func (e *typedErr) Stack() []string {
	return strings.Split(string(e.stack), "\n")
}

// New builds an ad hoc R from a detail string under GenericErrorType's
// ErrGeneric code. It wraps no underlying error, so Unwrap() returns nil.
func New(detail string) R {
	return GenericErrorType.Code("ErrGeneric").New(detail, nil)
}

// E wraps a foreign error (e.g. returned by a third-party store driver)
// into an R, tagging it as a store error. Use this at the boundary where
// a non-R error enters the module.
func E(err error) R {
	if err == nil {
		return nil
	}
	if r, ok := err.(R); ok {
		return r
	}
	return ErrStore.New("", err)
}

// GenericErrorType is for ad hoc errors that don't warrant their own
// ErrorType.
var GenericErrorType = NewErrorType("errs.Generic")

// Err is the ErrorType for all errors raised directly by this module
// (as opposed to module-specific types like txindex.Err).
var Err = NewErrorType("errs.Err")

var (
	// ErrStore indicates an I/O, serialization, or corruption fault from
	// the backing key-value store.
	ErrStore = Err.Code("ErrStore")
)
