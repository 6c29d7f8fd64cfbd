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

	"rrdb/alloc"
	"rrdb/backend"
	"rrdb/prim"
)

func newTestDataSource(t *testing.T, def DSDef, startTime, step int64) (*DataSource, backend.Backend) {
	a := alloc.New()
	ds := newDataSource(
		a.Allocate(int64(prim.SizeString)),
		a.Allocate(int64(prim.SizeString)),
		a.Allocate(prim.SizeLong),
		a.Allocate(prim.SizeDouble),
		a.Allocate(prim.SizeDouble),
		a.Allocate(prim.SizeDouble),
		a.Allocate(prim.SizeDouble),
		a.Allocate(prim.SizeDouble),
	)
	b := backend.NewMemory()
	require.NoError(t, b.SetLength(a.Size()))
	require.NoError(t, ds.writeInitial(b, def, startTime, step))
	return ds, b
}

func TestProcessCrossesBoundaryAndProducesPDP(t *testing.T) {
	ds, b := newTestDataSource(t, DSDef{Name: "a", Type: Gauge, Heartbeat: 10, Min: math.NaN(), Max: math.NaN()}, 0, 1)
	pdp, err := ds.Process(b, 1, 0, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, pdp)
	require.Equal(t, 10.0, pdp.Value)
	require.Equal(t, int64(1), pdp.NumSteps)
}

func TestProcessWithinStepAccumulatesWithoutPDP(t *testing.T) {
	ds, b := newTestDataSource(t, DSDef{Name: "a", Type: Gauge, Heartbeat: 30, Min: math.NaN(), Max: math.NaN()}, 0, 10)
	pdp, err := ds.Process(b, 10, 0, 5, 3)
	require.NoError(t, err)
	require.Nil(t, pdp)
	acc, err := ds.AccumulatedValue(b)
	require.NoError(t, err)
	require.Equal(t, 15.0, acc)
}

func TestProcessHeartbeatGapMarksUnknown(t *testing.T) {
	ds, b := newTestDataSource(t, DSDef{Name: "a", Type: Gauge, Heartbeat: 5, Min: math.NaN(), Max: math.NaN()}, 0, 20)
	pdp, err := ds.Process(b, 20, 0, 10, 3)
	require.NoError(t, err)
	require.Nil(t, pdp)
	unknown, err := ds.UnknownSeconds(b)
	require.NoError(t, err)
	require.Equal(t, 10.0, unknown)
}

func TestProcessCounterWraparound(t *testing.T) {
	ds, b := newTestDataSource(t, DSDef{Name: "c", Type: Counter, Heartbeat: 60, Min: math.NaN(), Max: math.NaN()}, 0, 1)
	// seed lastValue near the 32-bit boundary
	require.NoError(t, ds.lastValue.Set(b, 4294967290))
	pdp, err := ds.Process(b, 1, 0, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, pdp)
	require.Equal(t, 16.0, pdp.Value)
}

func TestProcessClampsOutOfRangeToUnknown(t *testing.T) {
	ds, b := newTestDataSource(t, DSDef{Name: "a", Type: Gauge, Heartbeat: 10, Min: 0, Max: 100}, 0, 1)
	pdp, err := ds.Process(b, 1, 0, 1, 150)
	require.NoError(t, err)
	require.NotNil(t, pdp)
	require.True(t, math.IsNaN(pdp.Value))
}

func TestProcessBangNameCoercesUnknownToZero(t *testing.T) {
	ds, b := newTestDataSource(t, DSDef{Name: "x!", Type: Gauge, Heartbeat: 1, Min: math.NaN(), Max: math.NaN()}, 0, 10)
	pdp, err := ds.Process(b, 10, 0, 10, 5)
	require.NoError(t, err)
	require.NotNil(t, pdp)
	require.Equal(t, 0.0, pdp.Value)
}

func TestProcessMultiStepGapReportsNumSteps(t *testing.T) {
	ds, b := newTestDataSource(t, DSDef{Name: "a", Type: Gauge, Heartbeat: 100, Min: math.NaN(), Max: math.NaN()}, 0, 10)
	pdp, err := ds.Process(b, 10, 0, 35, 7)
	require.NoError(t, err)
	require.NotNil(t, pdp)
	require.Equal(t, int64(3), pdp.NumSteps)
}
