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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/edsrzf/mmap-go"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"rrdb/rrderr"
)

// LockMode selects how File behaves when the sidecar .lck file is already
// held by another process (spec §5).
type LockMode int

const (
	// LockFailFast returns AlreadyOpen immediately if the lock is held.
	LockFailFast LockMode = iota
	// LockRetry polls every 100ms until the lock is acquired or retryBudget
	// elapses.
	LockRetry
)

const lockRetryInterval = 100 * time.Millisecond

// retryBudget bounds LockRetry so a stuck lock holder cannot wedge a caller
// forever; spec §5 only promises 100ms polling, not an unbounded wait.
const retryBudget = 30 * time.Second

// FileOptions configures a File backend.
type FileOptions struct {
	ReadOnly  bool
	Exclusive bool // if true, takes the sidecar .lck file
	LockMode  LockMode
}

// File is a Backend over a single fixed-length file, memory-mapped for
// random access. An afero.Fs is used for directory preparation and
// existence checks so callers can exercise the same code path against
// afero.NewMemMapFs() in tests; the mapped data file itself always goes
// through the OS (mmap needs a real file descriptor).
type File struct {
	fs   afero.Fs
	path string

	f    *os.File
	mm   mmap.MMap
	lock *flock.Flock

	readOnly bool
	size     int64
}

// NewFile opens (or creates, if SetLength has not yet been called on a
// brand-new path) a File backend at path.
func NewFile(fs afero.Fs, path string, opts FileOptions) (*File, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, ioErr("backend.NewFile", err)
	}

	fb := &File{fs: fs, path: path, readOnly: opts.ReadOnly}

	if opts.Exclusive {
		l := flock.New(path + ".lck")
		if opts.LockMode == LockFailFast {
			ok, err := l.TryLock()
			if err != nil {
				return nil, ioErr("backend.NewFile", err)
			}
			if !ok {
				return nil, rrderr.New(rrderr.KindAlreadyOpen, "backend.NewFile", fmt.Errorf("%s is locked by another process", path))
			}
		} else {
			deadline := time.Now().Add(retryBudget)
			for {
				ok, err := l.TryLock()
				if err != nil {
					return nil, ioErr("backend.NewFile", err)
				}
				if ok {
					break
				}
				if time.Now().After(deadline) {
					return nil, rrderr.New(rrderr.KindAlreadyOpen, "backend.NewFile", fmt.Errorf("%s still locked after %s", path, retryBudget))
				}
				time.Sleep(lockRetryInterval)
			}
		}
		fb.lock = l
	}

	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	} else {
		flag |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		fb.unlock()
		return nil, ioErr("backend.NewFile", err)
	}
	fb.f = f

	if fi, err := f.Stat(); err == nil && fi.Size() > 0 {
		if err := fb.mapExisting(fi.Size()); err != nil {
			_ = f.Close()
			fb.unlock()
			return nil, err
		}
	}
	return fb, nil
}

func (fb *File) unlock() {
	if fb.lock != nil {
		_ = fb.lock.Unlock()
	}
}

func (fb *File) mapExisting(size int64) error {
	prot := mmap.RDWR
	if fb.readOnly {
		prot = mmap.RDONLY
	}
	mm, err := mmap.MapRegion(fb.f, int(size), prot, 0, 0)
	if err != nil {
		return ioErr("backend.File.mapExisting", err)
	}
	fb.mm = mm
	fb.size = size
	return nil
}

func (fb *File) SetLength(n int64) error {
	if fb.mm != nil {
		return ioErr("backend.File.SetLength", fmt.Errorf("length already set"))
	}
	if fb.readOnly {
		return ioErr("backend.File.SetLength", fmt.Errorf("backend is read-only"))
	}
	if err := fb.f.Truncate(n); err != nil {
		return ioErr("backend.File.SetLength", err)
	}
	return fb.mapExisting(n)
}

func (fb *File) Length() int64 { return fb.size }

func (fb *File) Read(offset int64, buf []byte) error {
	if offset < 0 || offset+int64(len(buf)) > fb.size {
		panic(fmt.Sprintf("backend.File.Read: out of range offset=%d len=%d size=%d", offset, len(buf), fb.size))
	}
	copy(buf, fb.mm[offset:offset+int64(len(buf))])
	return nil
}

func (fb *File) Write(offset int64, buf []byte) error {
	if fb.readOnly {
		return ioErr("backend.File.Write", fmt.Errorf("backend is read-only"))
	}
	if offset < 0 || offset+int64(len(buf)) > fb.size {
		panic(fmt.Sprintf("backend.File.Write: out of range offset=%d len=%d size=%d", offset, len(buf), fb.size))
	}
	copy(fb.mm[offset:offset+int64(len(buf))], buf)
	return nil
}

// Sync flushes the memory mapping to disk without closing the backend.
func (fb *File) Sync() error {
	if fb.mm == nil {
		return nil
	}
	if err := fb.mm.Flush(); err != nil {
		return ioErr("backend.File.Sync", err)
	}
	return nil
}

func (fb *File) Close() error {
	var firstErr error
	if fb.mm != nil {
		if err := fb.mm.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := fb.mm.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if fb.f != nil {
		if err := fb.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	fb.unlock()
	if firstErr != nil {
		return ioErr("backend.File.Close", firstErr)
	}
	return nil
}

// CachingAllowed is true: File assumes single-process ownership for the
// lifetime of the mapping, matching the Exclusive lock it takes.
func (fb *File) CachingAllowed() bool { return true }
