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

// Package aggregate reduces a fetched time series to a single scalar: the
// SDEF consolidations and percentile reduction of spec §4.11.
package aggregate

import (
	"math"
	"sort"

	"rrdb/rrderr"
)

// Kind is an SDEF scalar consolidation function.
type Kind int

const (
	Minimum Kind = iota
	Maximum
	First
	Last
	Average
	Total
)

// Reduce folds values (NaN entries are ignored) into a single scalar per
// Kind. An all-NaN or empty input yields NaN, except Total which yields 0.
//
// Spec §4.11 states the aggregator in terms of per-bucket overlap with
// [tStart, tEnd]: TOTAL accumulates value·(right-left) and AVERAGE divides
// by the summed overlap. Reduce is the equal-width specialization of that
// formula — every input here has already passed through the Normalizer
// (process.resample), whose output buckets share one fixed width, so a
// plain NaN-skipping sum/count is exactly the weighted form with a common
// factor cancelled. Reduce must not be called on raw, unequal-width bucket
// data without first reintroducing per-bucket weights.
func Reduce(values []float64, kind Kind) float64 {
	switch kind {
	case Minimum:
		return fold(values, math.NaN(), func(acc, v float64) float64 {
			if math.IsNaN(acc) || v < acc {
				return v
			}
			return acc
		})
	case Maximum:
		return fold(values, math.NaN(), func(acc, v float64) float64 {
			if math.IsNaN(acc) || v > acc {
				return v
			}
			return acc
		})
	case First:
		for _, v := range values {
			if !math.IsNaN(v) {
				return v
			}
		}
		return math.NaN()
	case Last:
		for i := len(values) - 1; i >= 0; i-- {
			if !math.IsNaN(values[i]) {
				return values[i]
			}
		}
		return math.NaN()
	case Average:
		sum, n := 0.0, 0
		for _, v := range values {
			if !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		if n == 0 {
			return math.NaN()
		}
		return sum / float64(n)
	case Total:
		sum := 0.0
		for _, v := range values {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		return sum
	default:
		return math.NaN()
	}
}

func fold(values []float64, seed float64, f func(acc, v float64) float64) float64 {
	acc := seed
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		acc = f(acc, v)
	}
	return acc
}

// Percentile returns the p-th percentile (0 <= p <= 100) of values, NaN
// entries excluded, using the nearest-rank index over the ascending sort of
// known values (spec §4.11). NaN is returned if fewer than two values are
// known.
func Percentile(values []float64, p float64) (float64, error) {
	if p < 0 || p > 100 {
		return 0, rrderr.Wrapf(rrderr.KindInvalidArgument, "aggregate.Percentile", "percentile %v out of range [0,100]", p)
	}
	known := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			known = append(known, v)
		}
	}
	if len(known) < 2 {
		return math.NaN(), nil
	}
	sort.Float64s(known)
	n := len(known)
	idx := n - int(math.Ceil(float64(n)*(100-p)/100)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return known[idx], nil
}
