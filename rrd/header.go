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
	"strings"

	"rrdb/backend"
	"rrdb/prim"
	"rrdb/rrderr"
)

// SignaturePrefix is the fixed 8-character prefix every valid database's
// signature must begin with (spec §6). The remainder of the STRLEN-wide
// field is an opaque info suffix; this engine writes SignatureInfo there
// but, per the Open Question in spec §9(iv), accepts any suffix on Open
// (see Header.Validate).
const SignaturePrefix = "JRobin, "

// SignatureInfo is the opaque suffix this engine writes after
// SignaturePrefix when creating a database.
const SignatureInfo = "rrdb 1"

// Header is the database's metadata block (spec §3, §6).
type Header struct {
	signature   *prim.String
	step        *prim.Long
	dsCount     *prim.Int
	arcCount    *prim.Int
	lastUpdate  *prim.Long
}

// newHeader binds a Header's fields to their allocated byte offsets.
func newHeader(signatureOff, stepOff, dsCountOff, arcCountOff, lastUpdateOff int64) *Header {
	return &Header{
		signature:  prim.NewString(signatureOff, true),
		step:       prim.NewLong(stepOff, true),
		dsCount:    prim.NewInt(dsCountOff, true),
		arcCount:   prim.NewInt(arcCountOff, true),
		lastUpdate: prim.NewLong(lastUpdateOff, false),
	}
}

func (h *Header) writeInitial(b backend.Backend, step int64, dsCount, arcCount int32, lastUpdate int64) error {
	if err := h.signature.Set(b, SignaturePrefix+SignatureInfo); err != nil {
		return err
	}
	if err := h.step.Set(b, step); err != nil {
		return err
	}
	if err := h.dsCount.Set(b, dsCount); err != nil {
		return err
	}
	if err := h.arcCount.Set(b, arcCount); err != nil {
		return err
	}
	return h.lastUpdate.Set(b, lastUpdate)
}

// Validate checks the signature prefix on Open (spec §4.1, §7).
func (h *Header) Validate(b backend.Backend) error {
	sig, err := h.signature.Get(b)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(sig, SignaturePrefix) {
		return rrderr.New(rrderr.KindInvalidFormat, "rrd.Header.Validate", fmt.Errorf("signature %q does not start with %q", sig, SignaturePrefix))
	}
	return nil
}

func (h *Header) Step(b backend.Backend) (int64, error)       { return h.step.Get(b) }
func (h *Header) DSCount(b backend.Backend) (int32, error)    { return h.dsCount.Get(b) }
func (h *Header) ArcCount(b backend.Backend) (int32, error)   { return h.arcCount.Get(b) }
func (h *Header) LastUpdate(b backend.Backend) (int64, error) { return h.lastUpdate.Get(b) }

func (h *Header) setLastUpdate(b backend.Backend, t int64) error { return h.lastUpdate.Set(b, t) }

func (h *Header) Signature(b backend.Backend) (string, error) { return h.signature.Get(b) }
