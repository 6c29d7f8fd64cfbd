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

// Package importer moves a Database's entire state across a byte stream:
// the Importer contract of spec §6, realized as a zstd-compressed snapshot
// of the self-describing on-disk layout (spec §12 supplement).
package importer

import (
	"io"

	"github.com/klauspost/compress/zstd"

	log "github.com/erigontech/erigon-lib/log/v3"

	"rrdb/backend"
	"rrdb/rrd"
	"rrdb/rrderr"
)

// Importer populates a freshly allocated, empty backend with a full
// Database, reconstructed from whatever source the implementation wraps
// (spec §6).
type Importer interface {
	ImportInto(target backend.Backend, logger log.Logger) (*rrd.Database, error)
}

// SnapshotWriter writes a zstd-compressed Database.Snapshot to w.
type SnapshotWriter struct {
	w io.Writer
}

// NewSnapshotWriter returns a SnapshotWriter writing to w.
func NewSnapshotWriter(w io.Writer) *SnapshotWriter { return &SnapshotWriter{w: w} }

// Export compresses and writes db's entire current state.
func (s *SnapshotWriter) Export(db *rrd.Database) error {
	const op = "importer.SnapshotWriter.Export"
	raw, err := db.Snapshot()
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(s.w)
	if err != nil {
		return rrderr.New(rrderr.KindIo, op, err)
	}
	if _, err := enc.Write(raw); err != nil {
		_ = enc.Close()
		return rrderr.New(rrderr.KindIo, op, err)
	}
	if err := enc.Close(); err != nil {
		return rrderr.New(rrderr.KindIo, op, err)
	}
	return nil
}

// SnapshotReader is an Importer reading a zstd-compressed Database.Snapshot.
type SnapshotReader struct {
	r io.Reader
}

// NewSnapshotReader returns a SnapshotReader reading from r.
func NewSnapshotReader(r io.Reader) *SnapshotReader { return &SnapshotReader{r: r} }

// ImportInto implements Importer.
func (s *SnapshotReader) ImportInto(target backend.Backend, logger log.Logger) (*rrd.Database, error) {
	const op = "importer.SnapshotReader.ImportInto"
	dec, err := zstd.NewReader(s.r)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	return rrd.Restore(target, data, logger)
}
