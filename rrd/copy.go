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

import "rrdb/rrderr"

// CopyStateTo transfers db's running state into dst: the last-update
// timestamp, every data source's PDP accumulator (matched by name), and
// every archive's CDP state and Robin contents (matched by (cf, steps) and
// then by data source name) (spec §4.8). dst's own structure (its sources
// and archives not present in db) is left at its freshly created defaults.
// Used by AddDataSource, RemoveDataSource, AddArchive, RemoveArchive and
// ResizeArchive to carry state across a structural change, and directly by
// callers that want to resize or restructure a database themselves.
func (db *Database) CopyStateTo(dst *Database) error {
	const op = "rrd.Database.CopyStateTo"
	db.mu.Lock()
	defer db.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()

	lastUpdate, err := db.header.LastUpdate(db.backend)
	if err != nil {
		return rrderr.New(rrderr.KindIo, op, err)
	}
	if err := dst.header.setLastUpdate(dst.backend, lastUpdate); err != nil {
		return rrderr.New(rrderr.KindIo, op, err)
	}

	srcIdxByName := make(map[string]int, len(db.sources))
	for i, ds := range db.sources {
		name, err := ds.Name(db.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		srcIdxByName[name] = i
	}

	for dstIdx, dstDS := range dst.sources {
		name, err := dstDS.Name(dst.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		srcIdx, ok := srcIdxByName[name]
		if !ok {
			continue
		}
		srcDS := db.sources[srcIdx]
		lastValue, err := srcDS.LastValue(db.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		accumulated, err := srcDS.AccumulatedValue(db.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		unknownSeconds, err := srcDS.UnknownSeconds(db.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		if err := dstDS.lastValue.Set(dst.backend, lastValue); err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		if err := dstDS.accumulated.Set(dst.backend, accumulated); err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		if err := dstDS.unknownSeconds.Set(dst.backend, unknownSeconds); err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
	}

	type archKey struct {
		cf    ConsFun
		steps int32
	}
	srcArchByKey := make(map[archKey]int, len(db.archives))
	for j, arc := range db.archives {
		cf, err := arc.CF(db.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		steps, err := arc.Steps(db.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		srcArchByKey[archKey{cf, steps}] = j
	}

	for dstJ, dstArc := range dst.archives {
		cf, err := dstArc.CF(dst.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		steps, err := dstArc.Steps(dst.backend)
		if err != nil {
			return rrderr.New(rrderr.KindIo, op, err)
		}
		srcJ, ok := srcArchByKey[archKey{cf, steps}]
		if !ok {
			continue
		}
		srcArc := db.archives[srcJ]

		for dstIdx, dstDS := range dst.sources {
			name, err := dstDS.Name(dst.backend)
			if err != nil {
				return rrderr.New(rrderr.KindIo, op, err)
			}
			srcIdx, ok := srcIdxByName[name]
			if !ok {
				continue
			}
			srcState := srcArc.State(srcIdx)
			dstState := dstArc.State(dstIdx)
			acc, err := srcState.Accumulated(db.backend)
			if err != nil {
				return rrderr.New(rrderr.KindIo, op, err)
			}
			nan, err := srcState.NanSteps(db.backend)
			if err != nil {
				return rrderr.New(rrderr.KindIo, op, err)
			}
			if err := dstState.accumulated.Set(dst.backend, acc); err != nil {
				return rrderr.New(rrderr.KindIo, op, err)
			}
			if err := dstState.nanSteps.Set(dst.backend, int32(nan)); err != nil {
				return rrderr.New(rrderr.KindIo, op, err)
			}
			if err := srcArc.Robin(srcIdx).CopyStateTo(db.backend, dstArc.Robin(dstIdx), dst.backend); err != nil {
				return err
			}
		}
	}

	return nil
}
