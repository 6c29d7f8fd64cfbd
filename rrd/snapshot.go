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
	log "github.com/erigontech/erigon-lib/log/v3"

	"rrdb/backend"
	"rrdb/rrderr"
)

// Snapshot returns a copy of the database's entire backing storage,
// verbatim. Because the on-disk layout is self-describing (spec §4.1's
// Header carries the source and archive counts needed to re-derive every
// offset), these bytes are sufficient to fully reconstruct the database via
// Restore without knowing its Definition (spec §12 supplement).
func (db *Database) Snapshot() ([]byte, error) {
	const op = "rrd.Database.Snapshot"
	db.mu.Lock()
	defer db.mu.Unlock()

	n := db.backend.Length()
	buf := make([]byte, n)
	if err := db.backend.Read(0, buf); err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	return buf, nil
}

// Restore writes data onto target and opens it as a Database (spec §12
// supplement). target must be empty.
func Restore(target backend.Backend, data []byte, logger log.Logger) (*Database, error) {
	const op = "rrd.Restore"
	if target.Length() != 0 {
		return nil, rrderr.New(rrderr.KindAlreadyOpen, op, nil)
	}
	if err := target.SetLength(int64(len(data))); err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	if err := target.Write(0, data); err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	return Open(target, logger)
}
