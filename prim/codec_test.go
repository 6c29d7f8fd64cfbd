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

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"rrdb/backend"
)

func newBackend(t *testing.T, n int64) backend.Backend {
	b := backend.NewMemory()
	require.NoError(t, b.SetLength(n))
	return b
}

func TestIntRoundTrip(t *testing.T) {
	b := newBackend(t, SizeInt)
	f := NewInt(0, false)
	require.NoError(t, f.Set(b, -42))
	v, err := f.Get(b)
	require.NoError(t, err)
	require.Equal(t, int32(-42), v)
}

func TestDoubleNaNRoundTrip(t *testing.T) {
	b := newBackend(t, SizeDouble)
	f := NewDouble(0, false)
	require.NoError(t, f.Set(b, math.NaN()))
	v, err := f.Get(b)
	require.NoError(t, err)
	require.True(t, math.IsNaN(v))
}

func TestDoubleCachingSkipsReread(t *testing.T) {
	b := newBackend(t, SizeDouble)
	f := NewDouble(0, true)
	require.NoError(t, f.Set(b, 3.5))
	// corrupt the backing bytes directly; a cached read must not see it.
	require.NoError(t, b.Write(0, make([]byte, SizeDouble)))
	v, err := f.Get(b)
	require.NoError(t, err)
	require.Equal(t, 3.5, v)
}

func TestStringFixedWidthTrim(t *testing.T) {
	b := newBackend(t, SizeString)
	f := NewString(0, false)
	require.NoError(t, f.Set(b, "hello"))
	v, err := f.Get(b)
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestStringRejectsOverlong(t *testing.T) {
	b := newBackend(t, SizeString)
	f := NewString(0, false)
	long := make([]byte, StrLen+1)
	for i := range long {
		long[i] = 'x'
	}
	err := f.Set(b, string(long))
	require.Error(t, err)
}

func TestDoubleArrayPerSlot(t *testing.T) {
	b := newBackend(t, SizeDoubleArray(3))
	arr := NewDoubleArray(0, 3)
	require.NoError(t, arr.SetAt(b, 0, 1))
	require.NoError(t, arr.SetAt(b, 1, 2))
	require.NoError(t, arr.SetAt(b, 2, 3))
	all, err := arr.GetAll(b)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, all)
}
