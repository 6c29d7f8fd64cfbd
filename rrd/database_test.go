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
	"time"

	"github.com/stretchr/testify/require"

	"rrdb/backend"
	"rrdb/rrderr"
)

func simpleDefinition() Definition {
	return Definition{
		StartTime: 0,
		Step:      1,
		Sources: []DSDef{
			{Name: "a", Type: Gauge, Heartbeat: 10, Min: math.NaN(), Max: math.NaN()},
		},
		Archives: []ArcDef{
			{CF: Average, XFF: 0.5, Steps: 1, Rows: 10},
		},
	}
}

func TestCreateRejectsNonEmptyBackend(t *testing.T) {
	b := backend.NewMemory()
	require.NoError(t, b.SetLength(1))
	_, err := Create(b, simpleDefinition(), nil)
	require.Error(t, err)
	require.Equal(t, rrderr.KindAlreadyOpen, rrderr.KindOf(err))
}

func TestCreateThenOpenReconstructsStructure(t *testing.T) {
	b := backend.NewMemory()
	def := simpleDefinition()
	_, err := Create(b, def, nil)
	require.NoError(t, err)

	db, err := Open(b, nil)
	require.NoError(t, err)

	names, err := db.SourceNames()
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, names)

	step, err := db.Step()
	require.NoError(t, err)
	require.Equal(t, int64(1), step)
}

func TestOpenRejectsBadSignature(t *testing.T) {
	b := backend.NewMemory()
	def := simpleDefinition()
	_, err := Create(b, def, nil)
	require.NoError(t, err)

	// Corrupt the first character of the signature field.
	require.NoError(t, b.Write(0, []byte{0, 'X'}))
	_, err = Open(b, nil)
	require.Error(t, err)
	require.Equal(t, rrderr.KindInvalidFormat, rrderr.KindOf(err))
}

func TestUpdateRejectsNonIncreasingTimestamp(t *testing.T) {
	b := backend.NewMemory()
	db, err := Create(b, simpleDefinition(), nil)
	require.NoError(t, err)
	err = db.Update(time.Unix(0, 0), map[string]float64{"a": 1})
	require.Error(t, err)
	require.Equal(t, rrderr.KindInvalidTimestamp, rrderr.KindOf(err))
}

func TestUpdateRejectsUnknownDataSource(t *testing.T) {
	b := backend.NewMemory()
	db, err := Create(b, simpleDefinition(), nil)
	require.NoError(t, err)
	err = db.Update(time.Unix(1, 0), map[string]float64{"bogus": 1})
	require.Error(t, err)
	require.Equal(t, rrderr.KindUnknownDataSource, rrderr.KindOf(err))
}

func TestUpdateAdvancesLastUpdateAndLastValue(t *testing.T) {
	b := backend.NewMemory()
	db, err := Create(b, simpleDefinition(), nil)
	require.NoError(t, err)
	require.NoError(t, db.CreateSample(time.Unix(1, 0)).Set("a", 5).Update())

	lu, err := db.LastUpdate()
	require.NoError(t, err)
	require.Equal(t, int64(1), lu.Unix())

	_, v, err := db.Last("a")
	require.NoError(t, err)
	require.Equal(t, 5.0, v)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	b := backend.NewMemory()
	db, err := Create(b, simpleDefinition(), nil)
	require.NoError(t, err)
	require.NoError(t, db.CreateSample(time.Unix(1, 0)).Set("a", 99).Update())

	data, err := db.Snapshot()
	require.NoError(t, err)

	dst := backend.NewMemory()
	restored, err := Restore(dst, data, nil)
	require.NoError(t, err)

	_, v, err := restored.Last("a")
	require.NoError(t, err)
	require.Equal(t, 99.0, v)
}

func TestCopyStateToCarriesMatchedStateOnly(t *testing.T) {
	b := backend.NewMemory()
	db, err := Create(b, simpleDefinition(), nil)
	require.NoError(t, err)
	require.NoError(t, db.CreateSample(time.Unix(1, 0)).Set("a", 7).Update())

	dstDef := simpleDefinition()
	dstDef.Sources = append(dstDef.Sources, DSDef{Name: "b", Type: Gauge, Heartbeat: 10, Min: math.NaN(), Max: math.NaN()})
	dstBackend := backend.NewMemory()
	dst, err := Create(dstBackend, dstDef, nil)
	require.NoError(t, err)

	require.NoError(t, db.CopyStateTo(dst))

	_, v, err := dst.Last("a")
	require.NoError(t, err)
	require.Equal(t, 7.0, v)

	lu, err := dst.LastUpdate()
	require.NoError(t, err)
	require.Equal(t, int64(1), lu.Unix())
}

func TestAddDataSourceAndRemoveArchiveViaRestructure(t *testing.T) {
	b := backend.NewMemory()
	db, err := Create(b, simpleDefinition(), nil)
	require.NoError(t, err)

	target := backend.NewMemory()
	grown, err := db.AddDataSource(target, DSDef{Name: "b", Type: Gauge, Heartbeat: 10, Min: math.NaN(), Max: math.NaN()}, nil)
	require.NoError(t, err)
	names, err := grown.SourceNames()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, names)

	_, err = db.RemoveArchive(backend.NewMemory(), Average, 99, nil)
	require.Error(t, err)
	require.Equal(t, rrderr.KindUnknownArchive, rrderr.KindOf(err))
}
