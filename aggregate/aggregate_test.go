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

package aggregate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReduceIgnoresNaN(t *testing.T) {
	vals := []float64{1, math.NaN(), 3}
	require.Equal(t, 1.0, Reduce(vals, Minimum))
	require.Equal(t, 3.0, Reduce(vals, Maximum))
	require.Equal(t, 4.0, Reduce(vals, Total))
	require.Equal(t, 2.0, Reduce(vals, Average))
	require.Equal(t, 1.0, Reduce(vals, First))
	require.Equal(t, 3.0, Reduce(vals, Last))
}

func TestReduceAllNaN(t *testing.T) {
	vals := []float64{math.NaN(), math.NaN()}
	require.True(t, math.IsNaN(Reduce(vals, Average)))
	require.Equal(t, 0.0, Reduce(vals, Total))
}

func TestPercentileMonotonic(t *testing.T) {
	vals := []float64{5, 1, 9, 3, 7}
	p50, err := Percentile(vals, 50)
	require.NoError(t, err)
	p90, err := Percentile(vals, 90)
	require.NoError(t, err)
	require.LessOrEqual(t, p50, p90)
}

func TestPercentileNearestRankOfOneToTen(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	p90, err := Percentile(vals, 90)
	require.NoError(t, err)
	require.Equal(t, 9.0, p90)
}

func TestPercentileMajorityValueSurvivesOutlier(t *testing.T) {
	vals := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 100}
	p99, err := Percentile(vals, 99)
	require.NoError(t, err)
	require.Equal(t, 5.0, p99)
}

func TestPercentileSingleValueIsUnknown(t *testing.T) {
	v, err := Percentile([]float64{42}, 50)
	require.NoError(t, err)
	require.True(t, math.IsNaN(v))
}

func TestPercentileRejectsOutOfRange(t *testing.T) {
	_, err := Percentile([]float64{1, 2}, 150)
	require.Error(t, err)
}

func TestPercentileAllUnknown(t *testing.T) {
	v, err := Percentile([]float64{math.NaN(), math.NaN()}, 50)
	require.NoError(t, err)
	require.True(t, math.IsNaN(v))
}
