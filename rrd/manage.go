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

	log "github.com/erigontech/erigon-lib/log/v3"

	"rrdb/backend"
	"rrdb/rrderr"
)

// ArchiveInfo summarizes one archive for Info.
type ArchiveInfo struct {
	CF    ConsFun
	XFF   float64
	Steps int32
	Rows  int32
}

// SourceInfo summarizes one data source for Info.
type SourceInfo struct {
	Name      string
	Type      DSType
	Heartbeat int64
	Min       float64
	Max       float64
}

// Info is a snapshot of a database's structure (spec §12 supplement).
type Info struct {
	Step       int64
	LastUpdate time.Time
	Sources    []SourceInfo
	Archives   []ArchiveInfo
}

// Info reports the database's current structure and last-update time.
func (db *Database) Info() (*Info, error) {
	const op = "rrd.Database.Info"
	db.mu.Lock()
	defer db.mu.Unlock()

	step, err := db.header.Step(db.backend)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	lastUpdate, err := db.header.LastUpdate(db.backend)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}

	info := &Info{Step: step, LastUpdate: time.Unix(lastUpdate, 0).UTC()}
	for _, ds := range db.sources {
		name, err := ds.Name(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		typ, err := ds.Type(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		hb, err := ds.Heartbeat(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		min, err := ds.Min(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		max, err := ds.Max(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		info.Sources = append(info.Sources, SourceInfo{Name: name, Type: typ, Heartbeat: hb, Min: min, Max: max})
	}
	for _, arc := range db.archives {
		cf, err := arc.CF(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		xff, err := arc.XFF(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		steps, err := arc.Steps(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		rows, err := arc.Rows(db.backend)
		if err != nil {
			return nil, rrderr.New(rrderr.KindIo, op, err)
		}
		info.Archives = append(info.Archives, ArchiveInfo{CF: cf, XFF: xff, Steps: steps, Rows: rows})
	}
	return info, nil
}

// Last returns the most recent stored value and its timestamp for the named
// data source, read directly from its PDP state rather than any archive
// (spec §12 supplement).
func (db *Database) Last(name string) (time.Time, float64, error) {
	const op = "rrd.Database.Last"
	db.mu.Lock()
	defer db.mu.Unlock()

	idx, ok := db.names[name]
	if !ok {
		return time.Time{}, 0, rrderr.New(rrderr.KindUnknownDataSource, op, fmt.Errorf("unknown data source %q", name))
	}
	lastUpdate, err := db.header.LastUpdate(db.backend)
	if err != nil {
		return time.Time{}, 0, rrderr.New(rrderr.KindIo, op, err)
	}
	v, err := db.sources[idx].LastValue(db.backend)
	if err != nil {
		return time.Time{}, 0, rrderr.New(rrderr.KindIo, op, err)
	}
	return time.Unix(lastUpdate, 0).UTC(), v, nil
}

// definitionFromState derives a Definition mirroring the database's current
// structure, for use by the structural-change helpers below.
func (db *Database) definitionFromState() (Definition, error) {
	info, err := db.Info()
	if err != nil {
		return Definition{}, err
	}
	def := Definition{Step: info.Step, StartTime: info.LastUpdate.Unix()}
	for _, s := range info.Sources {
		def.Sources = append(def.Sources, DSDef{Name: s.Name, Type: s.Type, Heartbeat: s.Heartbeat, Min: s.Min, Max: s.Max})
	}
	for _, a := range info.Archives {
		def.Archives = append(def.Archives, ArcDef{CF: a.CF, XFF: a.XFF, Steps: a.Steps, Rows: a.Rows})
	}
	return def, nil
}

// restructure builds a new database with newDef on target, copies db's
// running state into it via CopyStateTo, and returns the new Database. db
// itself is left open and unmodified; closing the old backend and swapping
// any file path is the caller's responsibility (spec §12 supplement: these
// operations are defined in terms of rrd.Database and a caller-supplied
// target backend, not in terms of any one backend's storage policy).
func (db *Database) restructure(target backend.Backend, newDef Definition, logger log.Logger) (*Database, error) {
	if err := newDef.Validate(); err != nil {
		return nil, err
	}
	dst, err := Create(target, newDef, logger)
	if err != nil {
		return nil, err
	}
	if err := db.CopyStateTo(dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// AddDataSource returns a new Database, built on target, identical to db
// plus one additional data source.
func (db *Database) AddDataSource(target backend.Backend, def DSDef, logger log.Logger) (*Database, error) {
	newDef, err := db.definitionFromState()
	if err != nil {
		return nil, err
	}
	newDef.Sources = append(newDef.Sources, def)
	return db.restructure(target, newDef, logger)
}

// RemoveDataSource returns a new Database, built on target, identical to db
// minus the named data source.
func (db *Database) RemoveDataSource(target backend.Backend, name string, logger log.Logger) (*Database, error) {
	const op = "rrd.Database.RemoveDataSource"
	newDef, err := db.definitionFromState()
	if err != nil {
		return nil, err
	}
	kept := newDef.Sources[:0]
	found := false
	for _, s := range newDef.Sources {
		if s.Name == name {
			found = true
			continue
		}
		kept = append(kept, s)
	}
	if !found {
		return nil, rrderr.New(rrderr.KindUnknownDataSource, op, fmt.Errorf("unknown data source %q", name))
	}
	newDef.Sources = kept
	return db.restructure(target, newDef, logger)
}

// AddArchive returns a new Database, built on target, identical to db plus
// one additional archive.
func (db *Database) AddArchive(target backend.Backend, def ArcDef, logger log.Logger) (*Database, error) {
	newDef, err := db.definitionFromState()
	if err != nil {
		return nil, err
	}
	newDef.Archives = append(newDef.Archives, def)
	return db.restructure(target, newDef, logger)
}

// RemoveArchive returns a new Database, built on target, identical to db
// minus the archive matching (cf, steps).
func (db *Database) RemoveArchive(target backend.Backend, cf ConsFun, steps int32, logger log.Logger) (*Database, error) {
	const op = "rrd.Database.RemoveArchive"
	newDef, err := db.definitionFromState()
	if err != nil {
		return nil, err
	}
	kept := newDef.Archives[:0]
	found := false
	for _, a := range newDef.Archives {
		if a.CF == cf && a.Steps == steps {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return nil, rrderr.New(rrderr.KindUnknownArchive, op, fmt.Errorf("no archive (%s, steps=%d)", cf, steps))
	}
	newDef.Archives = kept
	return db.restructure(target, newDef, logger)
}

// ResizeArchive returns a new Database, built on target, identical to db
// except the archive matching (cf, steps) has newRows rows; Robin.CopyStateTo
// aligns the carried-over history by its newest end (spec §4.6, §12).
func (db *Database) ResizeArchive(target backend.Backend, cf ConsFun, steps int32, newRows int32, logger log.Logger) (*Database, error) {
	const op = "rrd.Database.ResizeArchive"
	newDef, err := db.definitionFromState()
	if err != nil {
		return nil, err
	}
	found := false
	for i, a := range newDef.Archives {
		if a.CF == cf && a.Steps == steps {
			newDef.Archives[i].Rows = newRows
			found = true
			break
		}
	}
	if !found {
		return nil, rrderr.New(rrderr.KindUnknownArchive, op, fmt.Errorf("no archive (%s, steps=%d)", cf, steps))
	}
	return db.restructure(target, newDef, logger)
}
