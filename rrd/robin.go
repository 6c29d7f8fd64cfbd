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

package rrd

import (
	"math"

	"rrdb/backend"
	"rrdb/prim"
)

// Robin is a fixed-length circular array of doubles with a rotating write
// pointer, holding one archive's time series for one source (spec §4.6).
// It holds no owning reference to a backend; every method takes the
// backend it should act against (spec §9 design note on back-references).
type Robin struct {
	ptr    *prim.Int
	values *prim.DoubleArray
	rows   int
}

// NewRobin binds a Robin to the pointer and values slots allocated at
// ptrOffset and valuesOffset.
func NewRobin(ptrOffset, valuesOffset int64, rows int) *Robin {
	return &Robin{
		ptr:    prim.NewInt(ptrOffset, false),
		values: prim.NewDoubleArray(valuesOffset, rows),
		rows:   rows,
	}
}

// Rows reports the fixed capacity of this Robin.
func (r *Robin) Rows() int { return r.rows }

func (r *Robin) pointer(b backend.Backend) (int, error) {
	p, err := r.ptr.Get(b)
	return int(p), err
}

// Store writes v at the current pointer and advances it.
func (r *Robin) Store(b backend.Backend, v float64) error {
	p, err := r.pointer(b)
	if err != nil {
		return err
	}
	if err := r.values.SetAt(b, p, v); err != nil {
		return err
	}
	return r.ptr.Set(b, int32((p+1)%r.rows))
}

// BulkStore stores v into the next count positions starting at the current
// pointer, wrapping at most once. count > Rows() collapses to storing v in
// every slot (spec §4.6, §8 boundary property).
func (r *Robin) BulkStore(b backend.Backend, v float64, count int) error {
	if count <= 0 {
		return nil
	}
	if count > r.rows {
		count = r.rows
	}
	p, err := r.pointer(b)
	if err != nil {
		return err
	}
	first := r.rows - p
	if first > count {
		first = count
	}
	for i := 0; i < first; i++ {
		if err := r.values.SetAt(b, p+i, v); err != nil {
			return err
		}
	}
	remaining := count - first
	for i := 0; i < remaining; i++ {
		if err := r.values.SetAt(b, i, v); err != nil {
			return err
		}
	}
	return r.ptr.Set(b, int32((p+count)%r.rows))
}

// GetValue returns the i-th value from the oldest (index 0 is the oldest
// stored value).
func (r *Robin) GetValue(b backend.Backend, i int) (float64, error) {
	p, err := r.pointer(b)
	if err != nil {
		return 0, err
	}
	return r.values.GetAt(b, (p+i)%r.rows)
}

// SetValue writes the i-th value from the oldest.
func (r *Robin) SetValue(b backend.Backend, i int, v float64) error {
	p, err := r.pointer(b)
	if err != nil {
		return err
	}
	return r.values.SetAt(b, (p+i)%r.rows, v)
}

// GetValues returns the logical slice [i, i+count) oldest-to-newest.
func (r *Robin) GetValues(b backend.Backend, i, count int) ([]float64, error) {
	out := make([]float64, count)
	for j := 0; j < count; j++ {
		v, err := r.GetValue(b, i+j)
		if err != nil {
			return nil, err
		}
		out[j] = v
	}
	return out, nil
}

// FilterValues replaces every stored value outside [lo, hi] with NaN,
// leaving already-NaN slots untouched.
func (r *Robin) FilterValues(b backend.Backend, lo, hi float64) error {
	all, err := r.values.GetAll(b)
	if err != nil {
		return err
	}
	for i, v := range all {
		if math.IsNaN(v) {
			continue
		}
		if v < lo || v > hi {
			if err := r.values.SetAt(b, i, math.NaN()); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyStateTo copies this Robin's contents into dst (bound to dstBackend).
// When the two have equal size, the pointer and raw bytes are copied
// verbatim. Otherwise the copy aligns by the newest end, preserving the
// most recent min(Rows(), dst.Rows()) values and padding the older side of
// dst with NaN (spec §4.6, §4.8).
func (r *Robin) CopyStateTo(b backend.Backend, dst *Robin, dstBackend backend.Backend) error {
	if r.rows == dst.rows {
		p, err := r.pointer(b)
		if err != nil {
			return err
		}
		all, err := r.values.GetAll(b)
		if err != nil {
			return err
		}
		for i, v := range all {
			if err := dst.values.SetAt(dstBackend, i, v); err != nil {
				return err
			}
		}
		return dst.ptr.Set(dstBackend, int32(p))
	}

	keep := r.rows
	if dst.rows < keep {
		keep = dst.rows
	}
	recent, err := r.GetValues(b, r.rows-keep, keep)
	if err != nil {
		return err
	}
	pad := dst.rows - keep
	for i := 0; i < pad; i++ {
		if err := dst.values.SetAt(dstBackend, i, math.NaN()); err != nil {
			return err
		}
	}
	for i, v := range recent {
		if err := dst.values.SetAt(dstBackend, pad+i, v); err != nil {
			return err
		}
	}
	return dst.ptr.Set(dstBackend, 0)
}
