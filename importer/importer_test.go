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

package importer

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rrdb/backend"
	"rrdb/rrd"
)

func TestSnapshotRoundTripThroughZstd(t *testing.T) {
	src := backend.NewMemory()
	def := rrd.Definition{
		StartTime: 0,
		Step:      1,
		Sources: []rrd.DSDef{
			{Name: "a", Type: rrd.Gauge, Heartbeat: 10, Min: math.NaN(), Max: math.NaN()},
		},
		Archives: []rrd.ArcDef{
			{CF: rrd.Average, XFF: 0.5, Steps: 1, Rows: 5},
		},
	}
	db, err := rrd.Create(src, def, nil)
	require.NoError(t, err)
	require.NoError(t, db.CreateSample(time.Unix(1, 0)).Set("a", 42).Update())

	var buf bytes.Buffer
	require.NoError(t, NewSnapshotWriter(&buf).Export(db))
	require.Greater(t, buf.Len(), 0)

	dst := backend.NewMemory()
	restored, err := NewSnapshotReader(&buf).ImportInto(dst, nil)
	require.NoError(t, err)

	lu, err := restored.LastUpdate()
	require.NoError(t, err)
	require.Equal(t, int64(1), lu.Unix())

	_, v, err := restored.Last("a")
	require.NoError(t, err)
	require.Equal(t, 42.0, v)
}
