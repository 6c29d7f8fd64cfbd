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

// Package prim implements typed, byte-offset-bound views over a
// backend.Backend: Int, Long, Double, String and DoubleArray, each with
// optional read-through caching for fields declared immutable at
// construction (spec §4.3).
package prim

import (
	"encoding/binary"
	"math"
	"strings"

	"rrdb/backend"
	"rrdb/rrderr"
)

// StrLen is the fixed width, in UCS-2 code units, of every string field in
// the on-disk layout (spec §4.2, §6).
const StrLen = 20

// SizeInt, SizeLong, SizeDouble and SizeString are the fixed byte widths of
// the corresponding on-disk fields.
const (
	SizeInt    = 4
	SizeLong   = 8
	SizeDouble = 8
	SizeString = StrLen * 2
)

// SizeDoubleArray returns the byte width of a DoubleArray of n elements.
func SizeDoubleArray(n int) int64 { return int64(n) * SizeDouble }

func readInt(b backend.Backend, offset int64) (int32, error) {
	var buf [SizeInt]byte
	if err := b.Read(offset, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func writeInt(b backend.Backend, offset int64, v int32) error {
	var buf [SizeInt]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return b.Write(offset, buf[:])
}

func readLong(b backend.Backend, offset int64) (int64, error) {
	var buf [SizeLong]byte
	if err := b.Read(offset, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

func writeLong(b backend.Backend, offset int64, v int64) error {
	var buf [SizeLong]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return b.Write(offset, buf[:])
}

func readDouble(b backend.Backend, offset int64) (float64, error) {
	bits, err := readLong(b, offset)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(bits)), nil
}

func writeDouble(b backend.Backend, offset int64, v float64) error {
	return writeLong(b, offset, int64(math.Float64bits(v)))
}

// readString decodes a fixed-width, right-space-padded, big-endian UCS-2
// field, trimming the padding.
func readString(b backend.Backend, offset int64) (string, error) {
	buf := make([]byte, SizeString)
	if err := b.Read(offset, buf); err != nil {
		return "", err
	}
	runes := make([]rune, StrLen)
	for i := 0; i < StrLen; i++ {
		runes[i] = rune(binary.BigEndian.Uint16(buf[i*2:]))
	}
	return strings.TrimRight(string(runes), " "), nil
}

func writeString(b backend.Backend, offset int64, v string) error {
	runes := []rune(v)
	if len(runes) > StrLen {
		return rrderr.Wrapf(rrderr.KindInvalidArgument, "prim.writeString", "string %q exceeds the %d-character field width", v, StrLen)
	}
	buf := make([]byte, SizeString)
	for i := 0; i < StrLen; i++ {
		c := uint16(' ')
		if i < len(runes) {
			c = uint16(runes[i])
		}
		binary.BigEndian.PutUint16(buf[i*2:], c)
	}
	return b.Write(offset, buf)
}

func readDoubleArray(b backend.Backend, offset int64, n int) ([]float64, error) {
	out := make([]float64, n)
	buf := make([]byte, SizeDouble*n)
	if err := b.Read(offset, buf); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		bits := binary.BigEndian.Uint64(buf[i*SizeDouble:])
		out[i] = math.Float64frombits(bits)
	}
	return out, nil
}

func writeDoubleArraySlot(b backend.Backend, offset int64, i int, v float64) error {
	return writeDouble(b, offset+int64(i)*SizeDouble, v)
}
