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

// Package backend implements the fixed-length, random-access byte storage
// contract that every primitive view is built on top of (spec §4.2).
package backend

import "rrdb/rrderr"

// Backend is fixed-length random-access storage. SetLength is invoked
// exactly once, at creation, before any Read/Write call. Byte order for all
// multi-byte fields written through a Backend is big-endian; the Backend
// itself is opaque to that convention and simply moves bytes.
type Backend interface {
	// Read fills buf from offset. Short reads return a KindIo *rrderr.Error
	// wrapping io.ErrUnexpectedEOF. offset+len(buf) > Length() is a
	// programming error and may panic.
	Read(offset int64, buf []byte) error

	// Write stores buf at offset. offset+len(buf) > Length() is a
	// programming error and may panic.
	Write(offset int64, buf []byte) error

	// Length returns the fixed backend length set by SetLength.
	Length() int64

	// SetLength fixes the backend length. Must be called exactly once, at
	// creation, before any Read/Write.
	SetLength(n int64) error

	// Close releases any OS resources (file handles, locks, mappings).
	Close() error

	// CachingAllowed advises primitives whether reads of fields declared
	// immutable at construction may be cached without ever re-reading the
	// backend.
	CachingAllowed() bool
}

func ioErr(op string, err error) error {
	return rrderr.New(rrderr.KindIo, op, err)
}
