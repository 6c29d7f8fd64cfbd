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

package backend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.rrd")
	fb, err := NewFile(nil, path, FileOptions{})
	require.NoError(t, err)
	require.NoError(t, fb.SetLength(16))

	require.NoError(t, fb.Write(0, []byte("0123456789abcdef")))
	buf := make([]byte, 16)
	require.NoError(t, fb.Read(0, buf))
	require.Equal(t, "0123456789abcdef", string(buf))
	require.NoError(t, fb.Close())
}

func TestFileSetLengthOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.rrd")
	fb, err := NewFile(nil, path, FileOptions{})
	require.NoError(t, err)
	require.NoError(t, fb.SetLength(8))
	require.Error(t, fb.SetLength(8))
	require.NoError(t, fb.Close())
}

func TestFileExclusiveLockFailsFast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.rrd")
	first, err := NewFile(nil, path, FileOptions{Exclusive: true, LockMode: LockFailFast})
	require.NoError(t, err)
	require.NoError(t, first.SetLength(4))

	_, err = NewFile(nil, path, FileOptions{Exclusive: true, LockMode: LockFailFast})
	require.Error(t, err)
	require.NoError(t, first.Close())
}

func TestFileReadOnlyRejectsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.rrd")
	fb, err := NewFile(nil, path, FileOptions{})
	require.NoError(t, err)
	require.NoError(t, fb.SetLength(4))
	require.NoError(t, fb.Close())

	ro, err := NewFile(nil, path, FileOptions{ReadOnly: true})
	require.NoError(t, err)
	require.Error(t, ro.Write(0, []byte{1, 2, 3, 4}))
	require.NoError(t, ro.Close())
}
