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
)

func validDef() Definition {
	return Definition{
		StartTime: 0,
		Step:      60,
		Sources: []DSDef{
			{Name: "temp", Type: Gauge, Heartbeat: 120, Min: math.NaN(), Max: math.NaN()},
		},
		Archives: []ArcDef{
			{CF: Average, XFF: 0.5, Steps: 1, Rows: 10},
		},
	}
}

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	def := validDef()
	require.NoError(t, def.Validate())
}

func TestValidateRejectsNoSources(t *testing.T) {
	def := validDef()
	def.Sources = nil
	require.Error(t, def.Validate())
}

func TestValidateRejectsNoArchives(t *testing.T) {
	def := validDef()
	def.Archives = nil
	require.Error(t, def.Validate())
}

func TestValidateRejectsNonPositiveHeartbeat(t *testing.T) {
	def := validDef()
	def.Sources[0].Heartbeat = 0
	require.Error(t, def.Validate())
}

func TestValidateRejectsMinNotLessThanMax(t *testing.T) {
	def := validDef()
	def.Sources[0].Min = 10
	def.Sources[0].Max = 5
	require.Error(t, def.Validate())
}

func TestValidateRejectsDuplicateSourceNames(t *testing.T) {
	def := validDef()
	def.Sources = append(def.Sources, def.Sources[0])
	require.Error(t, def.Validate())
}

func TestValidateRejectsXFFOutOfRange(t *testing.T) {
	def := validDef()
	def.Archives[0].XFF = 1
	require.Error(t, def.Validate())
}

func TestValidateRejectsTooFewRows(t *testing.T) {
	def := validDef()
	def.Archives[0].Rows = 1
	require.Error(t, def.Validate())
}

func TestValidateRejectsDuplicateArchiveKey(t *testing.T) {
	def := validDef()
	def.Archives = append(def.Archives, def.Archives[0])
	require.Error(t, def.Validate())
}

func TestParseDSTypeAndConsFunRoundTrip(t *testing.T) {
	typ, err := ParseDSType("counter")
	require.NoError(t, err)
	require.Equal(t, Counter, typ)

	cf, err := ParseConsFun("last")
	require.NoError(t, err)
	require.Equal(t, Last, cf)

	_, err = ParseDSType("bogus")
	require.Error(t, err)
	_, err = ParseConsFun("bogus")
	require.Error(t, err)
}
