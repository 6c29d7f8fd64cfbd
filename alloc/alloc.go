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

// Package alloc hands out monotonically increasing byte offsets during the
// one-pass layout of a database's fixed structure.
package alloc

// Allocator is a monotonic byte-offset counter. It is used while laying out
// a database (on Create, and again on Open to re-derive the same layout) to
// compute the offset table that every primitive view is bound to; it is not
// consulted once the layout is built.
type Allocator struct {
	next int64
}

// New returns an Allocator starting at offset 0.
func New() *Allocator {
	return &Allocator{}
}

// Allocate returns the current offset and advances the counter by n bytes.
func (a *Allocator) Allocate(n int64) int64 {
	off := a.next
	a.next += n
	return off
}

// Size reports the total number of bytes allocated so far, i.e. the required
// backend length.
func (a *Allocator) Size() int64 {
	return a.next
}
