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
	"testing"

	"github.com/stretchr/testify/require"

	"rrdb/backend"
	"rrdb/prim"
)

func newTestRobin(t *testing.T, rows int) (*Robin, backend.Backend) {
	b := backend.NewMemory()
	require.NoError(t, b.SetLength(int64(prim.SizeInt)+prim.SizeDoubleArray(rows)))
	return NewRobin(0, int64(prim.SizeInt), rows), b
}

func TestRobinStoreAdvancesOldestToNewestOrder(t *testing.T) {
	r, b := newTestRobin(t, 3)
	for _, v := range []float64{1, 2, 3, 4} {
		require.NoError(t, r.Store(b, v))
	}
	got, err := r.GetValues(b, 0, 3)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 3, 4}, got)
}

func TestBulkStoreCollapsesWhenCountExceedsRows(t *testing.T) {
	r, b := newTestRobin(t, 5)
	require.NoError(t, r.BulkStore(b, 9, 100))
	got, err := r.GetValues(b, 0, 5)
	require.NoError(t, err)
	require.Equal(t, []float64{9, 9, 9, 9, 9}, got)
}

func TestBulkStoreWrapsAcrossTheEnd(t *testing.T) {
	r, b := newTestRobin(t, 4)
	require.NoError(t, r.Store(b, 1))
	require.NoError(t, r.Store(b, 2))
	require.NoError(t, r.BulkStore(b, 7, 3))
	got, err := r.GetValues(b, 0, 4)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 7, 7, 7}, got)
}

func TestBulkStoreNoopOnNonPositiveCount(t *testing.T) {
	r, b := newTestRobin(t, 3)
	require.NoError(t, r.Store(b, 1))
	require.NoError(t, r.BulkStore(b, 9, 0))
	got, err := r.GetValues(b, 0, 3)
	require.NoError(t, err)
	require.Equal(t, 1.0, got[0])
}

func TestFilterValuesReplacesOutOfRangeWithNaN(t *testing.T) {
	r, b := newTestRobin(t, 3)
	require.NoError(t, r.Store(b, 1))
	require.NoError(t, r.Store(b, 50))
	require.NoError(t, r.Store(b, 3))
	require.NoError(t, r.FilterValues(b, 0, 10))
	got, err := r.GetValues(b, 0, 3)
	require.NoError(t, err)
	require.Equal(t, 1.0, got[0])
	require.True(t, math.IsNaN(got[1]))
	require.Equal(t, 3.0, got[2])
}

func TestCopyStateToEqualSizeCopiesVerbatim(t *testing.T) {
	src, srcB := newTestRobin(t, 3)
	require.NoError(t, src.Store(srcB, 1))
	require.NoError(t, src.Store(srcB, 2))
	require.NoError(t, src.Store(srcB, 3))

	dst, dstB := newTestRobin(t, 3)
	require.NoError(t, src.CopyStateTo(srcB, dst, dstB))

	got, err := dst.GetValues(dstB, 0, 3)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, got)
}

func TestCopyStateToLargerSizePadsOldestWithNaN(t *testing.T) {
	src, srcB := newTestRobin(t, 3)
	require.NoError(t, src.Store(srcB, 1))
	require.NoError(t, src.Store(srcB, 2))
	require.NoError(t, src.Store(srcB, 3))

	dst, dstB := newTestRobin(t, 5)
	require.NoError(t, src.CopyStateTo(srcB, dst, dstB))

	got, err := dst.GetValues(dstB, 0, 5)
	require.NoError(t, err)
	require.True(t, math.IsNaN(got[0]))
	require.True(t, math.IsNaN(got[1]))
	require.Equal(t, []float64{1, 2, 3}, got[2:])
}
