// Package hosterr defines the error taxonomy used across fiberhost. Every
// error that can cross a compiler stage or a program boundary is one of the
// Kinds below, wrapped in an Error that carries an optional source Range and
// an optional chain of causes.
//
// Error is compatible with errors.Is/errors.As: errors.Is(err, hosterr.Internal)
// reports whether any error in the chain has that Kind, and a *Error can be
// recovered with errors.As to inspect its Range.
package hosterr

import (
	"errors"
	"fmt"

	"github.com/dekarrin/fiberhost/internal/reader"
)

// Kind classifies the compile-time stage an Error arose in.
type Kind int

const (
	// Syntactic covers tokenization, indentation, duplicate-key, and
	// unreadable-character errors.
	Syntactic Kind = iota

	// Schematic covers missing required attributes, unexpected attributes,
	// and type mismatches.
	Schematic

	// Semantic covers missing-process, max-recursion-exceeded, and
	// unknown-shorthand compile errors.
	Semantic

	// Expression covers expression syntax and evaluation errors (name,
	// type, dimensionality).
	Expression

	// Runtime covers missing-node, invalid-node-kind, invalid-dtype,
	// claim-preempted, and external I/O failures observed while a program
	// runs.
	Runtime

	// Internal covers assertion failures: illegal state-machine
	// transitions, missing parents. These are fatal and are never expected
	// to be recovered from mid-run.
	Internal
)

// String names the Kind for log and diagnostic output.
func (k Kind) String() string {
	switch k {
	case Syntactic:
		return "syntactic"
	case Schematic:
		return "schematic"
	case Semantic:
		return "semantic"
	case Expression:
		return "expression"
	case Runtime:
		return "runtime"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the error type returned by every fiberhost compiler and runtime
// stage. It pairs a human-facing diagnostic message with the Kind of failure,
// an optional Range pinpointing the offending source, and zero or more causes.
//
// Error should not be constructed directly; use New, Wrap, or one of the
// Kind-named helpers (Syntax, Schema, ...).
type Error struct {
	kind  Kind
	msg   string
	rng   reader.Range
	hasRg bool
	cause []error
}

// New returns an Error of the given Kind with the given message, attached to
// no particular range.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// At returns an Error of the given Kind attached to rng.
func At(kind Kind, rng reader.Range, msg string) *Error {
	return &Error{kind: kind, msg: msg, rng: rng, hasRg: true}
}

// Atf is like At but accepts a format string.
func Atf(kind Kind, rng reader.Range, format string, a ...interface{}) *Error {
	return At(kind, rng, fmt.Sprintf(format, a...))
}

// Wrap returns a new Error of the given Kind that wraps cause. If msg
// is empty, Error() delegates entirely to cause's message, following
// server/serr's convention.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: []error{cause}}
}

// Error implements error. If the Error has no message of its own but has a
// cause, the cause's message is returned; otherwise the message is
// concatenated with the first cause's message, if any.
func (e *Error) Error() string {
	if e.msg == "" && len(e.cause) > 0 {
		return e.cause[0].Error()
	}
	if len(e.cause) > 0 {
		return e.msg + ": " + e.cause[0].Error()
	}
	return e.msg
}

// Unwrap exposes the causes for use with errors.Is/errors.As.
func (e *Error) Unwrap() []error {
	if len(e.cause) == 0 {
		return nil
	}
	return e.cause
}

// Kind returns the error's Kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// Range returns the source range attached to the error and whether one was
// set at all.
func (e *Error) Range() (reader.Range, bool) {
	return e.rng, e.hasRg
}

// Is reports whether target is the same Kind as e. This lets callers write
// errors.Is(err, hosterr.New(hosterr.Internal, "")) style kind checks, though
// the KindIs helper below is the more ergonomic form.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.kind == e.kind && other.msg == "" && len(other.cause) == 0
}

// sentinel is a bare Kind marker usable with errors.Is.
type sentinel Kind

func (s sentinel) Error() string { return Kind(s).String() }

// Sentinel markers for use with errors.Is(err, hosterr.KindSyntactic), etc.
var (
	KindSyntactic = sentinel(Syntactic)
	KindSchematic = sentinel(Schematic)
	KindSemantic  = sentinel(Semantic)
	KindExpr      = sentinel(Expression)
	KindRuntime   = sentinel(Runtime)
	KindInternal  = sentinel(Internal)
)

// Is implements matching against the sentinel Kind markers above.
func (s sentinel) Is(target error) bool {
	if e, ok := target.(*Error); ok {
		return e.kind == Kind(s)
	}
	return false
}

// KindOf returns the Kind of err if err is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}

// Internalf builds an Internal-kind error for an illegal state transition or
// other assertion failure. These are fatal: callers are expected to halt the
// owning program rather than continue past one.
func Internalf(format string, a ...interface{}) *Error {
	return New(Internal, fmt.Sprintf(format, a...))
}
