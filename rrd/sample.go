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
	"fmt"
	"time"

	"rrdb/rrderr"
)

// Sample is a one-shot builder for a single Update call: set zero or more
// values by data source name or declaration index, then Update (spec §4.4).
type Sample struct {
	db     *Database
	time   time.Time
	values map[string]float64
}

// CreateSample starts a new Sample for db at time t.
func (db *Database) CreateSample(t time.Time) *Sample {
	return &Sample{db: db, time: t, values: make(map[string]float64)}
}

// Set stores value under the named data source, overwriting any previous
// value set on this Sample for that name.
func (s *Sample) Set(name string, value float64) *Sample {
	s.values[name] = value
	return s
}

// SetAt stores value under the data source at declaration index idx.
func (s *Sample) SetAt(idx int, value float64) (*Sample, error) {
	names, err := s.db.SourceNames()
	if err != nil {
		return s, err
	}
	if idx < 0 || idx >= len(names) {
		return s, rrderr.New(rrderr.KindUnknownDataSource, "rrd.Sample.SetAt", fmt.Errorf("index %d out of range [0,%d)", idx, len(names)))
	}
	s.values[names[idx]] = value
	return s, nil
}

// Update submits the sample to the database (spec §4.4).
func (s *Sample) Update() error {
	return s.db.Update(s.time, s.values)
}
