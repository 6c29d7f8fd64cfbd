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
	"math"
	"sync"
	"time"

	log "github.com/erigontech/erigon-lib/log/v3"

	"rrdb/alloc"
	"rrdb/backend"
	"rrdb/prim"
	"rrdb/rrderr"
)

// Database is the top-level round-robin database object: one Header, D
// DataSources, A Archives (each holding D ArcStates and D Robins), bound to
// a single Backend (spec §3, §5). All public methods serialize through mu;
// no lock is held across a Backend I/O call that can itself block longer
// than spec §5's bounded wait, so the mutex never compounds with backend
// contention.
type Database struct {
	mu       sync.Mutex
	backend  backend.Backend
	header   *Header
	sources  []*DataSource
	archives []*Archive
	names    map[string]int
	logger   log.Logger
}

// layout is the fully computed set of field offsets for a database with
// numSources sources and numArchives archives. Offsets that don't depend on
// per-archive row counts (everything through the ArcState section) are
// always valid; robin offsets are only populated once row counts are known.
type layout struct {
	header      *Header
	sources     []*DataSource
	archiveDefs []*Archive // cf/xff/steps/rows bound, states/robins not yet attached
	states      [][]*ArcState
	alloc       *alloc.Allocator
}

func layoutFixed(numSources, numArchives int32) *layout {
	a := alloc.New()

	h := newHeader(
		a.Allocate(int64(prim.SizeString)),
		a.Allocate(prim.SizeLong),
		a.Allocate(prim.SizeInt),
		a.Allocate(prim.SizeInt),
		a.Allocate(prim.SizeLong),
	)

	sources := make([]*DataSource, numSources)
	for i := range sources {
		sources[i] = newDataSource(
			a.Allocate(int64(prim.SizeString)),
			a.Allocate(int64(prim.SizeString)),
			a.Allocate(prim.SizeLong),
			a.Allocate(prim.SizeDouble),
			a.Allocate(prim.SizeDouble),
			a.Allocate(prim.SizeDouble),
			a.Allocate(prim.SizeDouble),
			a.Allocate(prim.SizeDouble),
		)
	}

	archiveDefs := make([]*Archive, numArchives)
	cfOff := make([]int64, numArchives)
	xffOff := make([]int64, numArchives)
	stepsOff := make([]int64, numArchives)
	rowsOff := make([]int64, numArchives)
	for j := range archiveDefs {
		cfOff[j] = a.Allocate(int64(prim.SizeString))
		xffOff[j] = a.Allocate(prim.SizeDouble)
		stepsOff[j] = a.Allocate(prim.SizeInt)
		rowsOff[j] = a.Allocate(prim.SizeInt)
	}

	states := make([][]*ArcState, numArchives)
	for j := range states {
		states[j] = make([]*ArcState, numSources)
		for i := range states[j] {
			states[j][i] = newArcState(a.Allocate(prim.SizeDouble), a.Allocate(prim.SizeInt))
		}
	}

	for j := range archiveDefs {
		archiveDefs[j] = newArchive(cfOff[j], xffOff[j], stepsOff[j], rowsOff[j], states[j], nil)
	}

	return &layout{header: h, sources: sources, archiveDefs: archiveDefs, states: states, alloc: a}
}

// attachRobins finishes layout by allocating the variable-size robin-value
// region once each archive's row count is known, and binds the resulting
// Robins onto the already-built Archive objects.
func (l *layout) attachRobins(rows []int32) {
	for j, arc := range l.archiveDefs {
		robins := make([]*Robin, len(l.sources))
		for i := range robins {
			ptrOff := l.alloc.Allocate(prim.SizeInt)
			valuesOff := l.alloc.Allocate(prim.SizeDoubleArray(int(rows[j])))
			robins[i] = NewRobin(ptrOff, valuesOff, int(rows[j]))
		}
		arc.robins = robins
	}
}

func newLogger(logger log.Logger) log.Logger {
	if logger != nil {
		return logger
	}
	return log.Root()
}

// Create lays out a brand-new database of the given Definition onto b,
// which must be empty (Length() == 0), and writes its initial state (spec
// §4.1).
func Create(b backend.Backend, def Definition, logger log.Logger) (*Database, error) {
	const op = "rrd.Create"
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if b.Length() != 0 {
		return nil, rrderr.New(rrderr.KindAlreadyOpen, op, fmt.Errorf("backend is not empty"))
	}

	numSources := int32(len(def.Sources))
	numArchives := int32(len(def.Archives))
	l := layoutFixed(numSources, numArchives)
	rows := make([]int32, numArchives)
	for j, a := range def.Archives {
		rows[j] = a.Rows
	}
	l.attachRobins(rows)

	if err := b.SetLength(l.alloc.Size()); err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}

	if err := l.header.writeInitial(b, def.Step, numSources, numArchives, def.StartTime); err != nil {
		return nil, err
	}
	for i, ds := range l.sources {
		if err := ds.writeInitial(b, def.Sources[i], def.StartTime, def.Step); err != nil {
			return nil, err
		}
	}
	for j, arc := range l.archiveDefs {
		if err := arc.writeInitial(b, def.Archives[j]); err != nil {
			return nil, err
		}
	}

	db := &Database{
		backend:  b,
		header:   l.header,
		sources:  l.sources,
		archives: l.archiveDefs,
		names:    indexNames(l.sources, b),
		logger:   newLogger(logger),
	}
	db.logger.Info("rrd database created", "path", def.Path, "sources", numSources, "archives", numArchives, "size", l.alloc.Size())
	return db, nil
}

// Open reconstructs a Database from an existing, already-populated Backend,
// validating the header signature (spec §4.1, §7).
func Open(b backend.Backend, logger log.Logger) (*Database, error) {
	const op = "rrd.Open"
	prelim := layoutFixed(0, 0)
	if err := prelim.header.Validate(b); err != nil {
		return nil, err
	}
	dsCount, err := prelim.header.DSCount(b)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	arcCount, err := prelim.header.ArcCount(b)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}

	l := layoutFixed(dsCount, arcCount)
	rows := make([]int32, arcCount)
	for j, arc := range l.archiveDefs {
		r, err := arc.Rows(b)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		rows[j] = r
	}
	l.attachRobins(rows)

	db := &Database{
		backend:  b,
		header:   l.header,
		sources:  l.sources,
		archives: l.archiveDefs,
		names:    indexNames(l.sources, b),
		logger:   newLogger(logger),
	}
	db.logger.Debug("rrd database opened", "sources", dsCount, "archives", arcCount)
	return db, nil
}

func indexNames(sources []*DataSource, b backend.Backend) map[string]int {
	m := make(map[string]int, len(sources))
	for i, ds := range sources {
		name, err := ds.Name(b)
		if err != nil {
			continue
		}
		m[name] = i
	}
	return m
}

// Close flushes and releases the underlying backend.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.backend.Close(); err != nil {
		return rrderr.New(rrderr.KindIo, "rrd.Database.Close", err)
	}
	return nil
}

// Step returns the database's primary step, in seconds.
func (db *Database) Step() (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.header.Step(db.backend)
}

// LastUpdate returns the timestamp of the most recent Update.
func (db *Database) LastUpdate() (time.Time, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	t, err := db.header.LastUpdate(db.backend)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(t, 0).UTC(), nil
}

// SourceNames returns data source names in declaration order.
func (db *Database) SourceNames() ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, len(db.sources))
	for i, ds := range db.sources {
		n, err := ds.Name(db.backend)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// Update feeds one sample of every named value at time t through the PDP
// processor and, for any source whose PDP closed, the CDP pipeline of every
// archive (spec §4.4, §4.5). Values omitted from the map are treated as
// unknown for this update.
func (db *Database) Update(t time.Time, values map[string]float64) error {
	const op = "rrd.Database.Update"
	db.mu.Lock()
	defer db.mu.Unlock()

	b := db.backend
	step, err := db.header.Step(b)
	if err != nil {
		return rrderr.New(rrderr.KindIo, op, err)
	}
	t0, err := db.header.LastUpdate(b)
	if err != nil {
		return rrderr.New(rrderr.KindIo, op, err)
	}
	t1 := t.Unix()
	if t1 <= t0 {
		return rrderr.New(rrderr.KindInvalidTimestamp, op, fmt.Errorf("update time %d is not after last update %d", t1, t0))
	}

	for name := range values {
		if _, ok := db.names[name]; !ok {
			return rrderr.New(rrderr.KindUnknownDataSource, op, fmt.Errorf("unknown data source %q", name))
		}
	}

	priorBoundary := floorStep(t0, step)

	for idx, ds := range db.sources {
		name, err := ds.Name(b)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		v, ok := values[name]
		if !ok {
			v = math.NaN()
		}
		pdp, err := ds.Process(b, step, t0, t1, v)
		if err != nil {
			return err
		}
		if pdp == nil {
			continue
		}
		for _, arc := range db.archives {
			if err := arc.Update(b, idx, priorBoundary, step, pdp.NumSteps, pdp.Value); err != nil {
				return err
			}
		}
	}

	if err := db.header.setLastUpdate(b, t1); err != nil {
		return rrderr.New(rrderr.KindIo, op, err)
	}
	return nil
}
