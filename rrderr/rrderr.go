// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package rrderr defines the single tagged error category surfaced by every
// package in this module.
package rrderr

import (
	"errors"
	"fmt"
)

// Kind tags the class of failure. Callers match on Kind via Is or KindOf (or
// errors.Is against an *Error of the same Kind), never on the formatted
// message.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidDefinition
	KindInvalidFormat
	KindInvalidTimestamp
	KindUnknownDataSource
	KindUnknownArchive
	KindNoMatchingArchive
	KindBadRpn
	KindInvalidArgument
	KindIo
	KindAlreadyOpen
	KindPoolFull
	KindInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindInvalidDefinition:
		return "InvalidDefinition"
	case KindInvalidFormat:
		return "InvalidFormat"
	case KindInvalidTimestamp:
		return "InvalidTimestamp"
	case KindUnknownDataSource:
		return "UnknownDataSource"
	case KindUnknownArchive:
		return "UnknownArchive"
	case KindNoMatchingArchive:
		return "NoMatchingArchive"
	case KindBadRpn:
		return "BadRpn"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindIo:
		return "Io"
	case KindAlreadyOpen:
		return "AlreadyOpen"
	case KindPoolFull:
		return "PoolFull"
	case KindInterrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// Error is the single error type this module ever returns across package
// boundaries. Op names the failing operation (e.g. "rrd.Create"); Err, when
// non-nil, is the wrapped root cause and is reachable via errors.Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Kind, letting callers
// write errors.Is(err, rrderr.New(rrderr.KindNoMatchingArchive, "", nil)) or,
// more conveniently, use the Kind-sentinel helpers below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error. Err may be nil for pure validation failures.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf constructs an *Error whose cause is a formatted error, mirroring the
// teacher's fmt.Errorf("...: %w", err) convention at the call site.
func Wrapf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is an *Error of the given kind, anywhere in its
// chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or KindUnknown if err is not (or does not
// wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
