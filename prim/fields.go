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

package prim

import "rrdb/backend"

// Int is a bound view over a single 32-bit field.
type Int struct {
	offset  int64
	caching bool
	valid   bool
	cached  int32
}

// NewInt binds an Int view at offset. caching should be true only for
// fields declared immutable at construction.
func NewInt(offset int64, caching bool) *Int { return &Int{offset: offset, caching: caching} }

func (p *Int) Offset() int64 { return p.offset }

func (p *Int) Get(b backend.Backend) (int32, error) {
	if p.valid && p.caching && b.CachingAllowed() {
		return p.cached, nil
	}
	v, err := readInt(b, p.offset)
	if err != nil {
		return 0, err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return v, nil
}

func (p *Int) Set(b backend.Backend, v int32) error {
	if err := writeInt(b, p.offset, v); err != nil {
		return err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return nil
}

// Long is a bound view over a single 64-bit signed field.
type Long struct {
	offset  int64
	caching bool
	valid   bool
	cached  int64
}

func NewLong(offset int64, caching bool) *Long { return &Long{offset: offset, caching: caching} }

func (p *Long) Offset() int64 { return p.offset }

func (p *Long) Get(b backend.Backend) (int64, error) {
	if p.valid && p.caching && b.CachingAllowed() {
		return p.cached, nil
	}
	v, err := readLong(b, p.offset)
	if err != nil {
		return 0, err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return v, nil
}

func (p *Long) Set(b backend.Backend, v int64) error {
	if err := writeLong(b, p.offset, v); err != nil {
		return err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return nil
}

// Double is a bound view over a single IEEE-754 64-bit field. NaN is a
// legitimate, frequently-stored value (spec §9 "nullable numerics") and is
// never special-cased by this view: callers compare with math.IsNaN, not
// ==.
type Double struct {
	offset  int64
	caching bool
	valid   bool
	cached  float64
}

func NewDouble(offset int64, caching bool) *Double {
	return &Double{offset: offset, caching: caching}
}

func (p *Double) Offset() int64 { return p.offset }

func (p *Double) Get(b backend.Backend) (float64, error) {
	if p.valid && p.caching && b.CachingAllowed() {
		return p.cached, nil
	}
	v, err := readDouble(b, p.offset)
	if err != nil {
		return 0, err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return v, nil
}

// Set always performs the write, even when v bit-equals the cached value
// (spec §9 redesign: accumulation write-back must be unconditional for
// determinism).
func (p *Double) Set(b backend.Backend, v float64) error {
	if err := writeDouble(b, p.offset, v); err != nil {
		return err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return nil
}

// String is a bound view over a fixed STRLEN-wide UCS-2 field.
type String struct {
	offset  int64
	caching bool
	valid   bool
	cached  string
}

func NewString(offset int64, caching bool) *String {
	return &String{offset: offset, caching: caching}
}

func (p *String) Offset() int64 { return p.offset }

func (p *String) Get(b backend.Backend) (string, error) {
	if p.valid && p.caching && b.CachingAllowed() {
		return p.cached, nil
	}
	v, err := readString(b, p.offset)
	if err != nil {
		return "", err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return v, nil
}

func (p *String) Set(b backend.Backend, v string) error {
	if err := writeString(b, p.offset, v); err != nil {
		return err
	}
	if p.caching && b.CachingAllowed() {
		p.cached, p.valid = v, true
	}
	return nil
}

// DoubleArray is a bound view over a fixed-length array of doubles (used by
// Robin). It is never cached: Robin slots mutate constantly and a stale
// cache would defeat the point of the structure.
type DoubleArray struct {
	offset int64
	n      int
}

func NewDoubleArray(offset int64, n int) *DoubleArray {
	return &DoubleArray{offset: offset, n: n}
}

func (p *DoubleArray) Offset() int64 { return p.offset }
func (p *DoubleArray) Len() int      { return p.n }

func (p *DoubleArray) GetAll(b backend.Backend) ([]float64, error) {
	return readDoubleArray(b, p.offset, p.n)
}

func (p *DoubleArray) GetAt(b backend.Backend, i int) (float64, error) {
	return readDouble(b, p.offset+int64(i)*SizeDouble)
}

func (p *DoubleArray) SetAt(b backend.Backend, i int, v float64) error {
	return writeDoubleArraySlot(b, p.offset, i, v)
}
