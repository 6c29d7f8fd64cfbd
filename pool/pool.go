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

// Package pool is a path-keyed, reference-counted cache of open Databases,
// bounded to a fixed admission capacity (spec §4.12).
package pool

import (
	"context"
	"fmt"
	"sync"

	log "github.com/erigontech/erigon-lib/log/v3"
	"golang.org/x/sync/semaphore"

	"rrdb/backend"
	"rrdb/rrd"
	"rrdb/rrderr"
)

// DefaultCapacity is the default number of distinct databases the pool will
// hold open simultaneously (spec §4.12).
const DefaultCapacity = 200

// Opener opens the Database at path on demand when it is not already
// resident in the pool.
type Opener func(path string) (*rrd.Database, backend.Backend, error)

type entry struct {
	db       *rrd.Database
	refcount int
}

// Pool is safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	sem      *semaphore.Weighted
	capacity int64
	entries  map[string]*entry
	open     Opener
	logger   log.Logger
}

// New creates a Pool with the given capacity (<=0 means DefaultCapacity)
// that opens databases on demand via open.
func New(capacity int64, open Opener, logger log.Logger) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Pool{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
		entries:  make(map[string]*entry),
		open:     open,
		logger:   logger,
	}
}

// Acquire returns the Database for path, opening it if necessary, and
// increments its reference count. Callers must call Release exactly once
// per successful Acquire. If the pool is at capacity and path is not
// already resident, Acquire blocks until ctx is done or a slot frees; a
// ctx.Err() of context.DeadlineExceeded/Canceled surfaces as
// rrderr.KindInterrupted. Acquire never returns rrderr.KindPoolFull; only
// TryAcquire does.
func (p *Pool) Acquire(ctx context.Context, path string) (*rrd.Database, error) {
	const op = "pool.Pool.Acquire"

	p.mu.Lock()
	if e, ok := p.entries[path]; ok {
		e.refcount++
		p.mu.Unlock()
		return e.db, nil
	}
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, rrderr.New(rrderr.KindInterrupted, op, err)
	}

	p.mu.Lock()
	if e, ok := p.entries[path]; ok {
		e.refcount++
		p.mu.Unlock()
		p.sem.Release(1)
		return e.db, nil
	}
	p.mu.Unlock()

	db, _, err := p.open(path)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.entries[path] = &entry{db: db, refcount: 1}
	p.mu.Unlock()
	p.logger.Debug("pool: opened database", "path", path)
	return db, nil
}

// TryAcquire is Acquire without blocking: it returns rrderr.KindPoolFull
// immediately if the pool is at capacity and path is not already resident.
func (p *Pool) TryAcquire(path string) (*rrd.Database, error) {
	const op = "pool.Pool.TryAcquire"

	p.mu.Lock()
	if e, ok := p.entries[path]; ok {
		e.refcount++
		p.mu.Unlock()
		return e.db, nil
	}
	p.mu.Unlock()

	if !p.sem.TryAcquire(1) {
		return nil, rrderr.New(rrderr.KindPoolFull, op, fmt.Errorf("pool is at capacity (%d)", p.capacity))
	}

	p.mu.Lock()
	if e, ok := p.entries[path]; ok {
		e.refcount++
		p.mu.Unlock()
		p.sem.Release(1)
		return e.db, nil
	}
	p.mu.Unlock()

	db, _, err := p.open(path)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.entries[path] = &entry{db: db, refcount: 1}
	p.mu.Unlock()
	return db, nil
}

// Release decrements path's reference count, closing and evicting the
// Database once it reaches zero.
func (p *Pool) Release(path string) error {
	const op = "pool.Pool.Release"

	p.mu.Lock()
	e, ok := p.entries[path]
	if !ok {
		p.mu.Unlock()
		return rrderr.New(rrderr.KindInvalidArgument, op, fmt.Errorf("path %q is not held by this pool", path))
	}
	e.refcount--
	if e.refcount > 0 {
		p.mu.Unlock()
		return nil
	}
	delete(p.entries, path)
	p.mu.Unlock()

	p.sem.Release(1)
	p.logger.Debug("pool: closed database", "path", path)
	return e.db.Close()
}

// Len reports how many distinct databases are currently resident.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
