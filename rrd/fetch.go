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
	"time"

	"rrdb/rrderr"
)

// FetchRequest selects one archive and a time window to materialize (spec
// §4.7). Resolution of 0 means "the finest step available for CF"; Sources,
// if non-empty, restricts the result to those data sources.
type FetchRequest struct {
	CF         ConsFun
	Start      time.Time
	End        time.Time
	Resolution time.Duration
	Sources    []string
}

// FetchData is a materialized, time-aligned window of one archive.
type FetchData struct {
	CF      ConsFun
	Step    time.Duration
	Times   []time.Time
	Sources []string
	Values  map[string][]float64
}

type archiveCandidate struct {
	idx      int
	archStep int64
	oldest   int64
	full     bool
}

// selectArchive implements spec §4.7's archive selection: among archives
// sharing req.CF, prefer one whose timespan fully covers [start,end],
// breaking ties by step closest to the requested resolution and then by
// declaration order; falling back to the partial match with the longest
// retention when no archive fully covers the window.
func (db *Database) selectArchive(req FetchRequest) (int, int64, error) {
	const op = "rrd.Database.selectArchive"
	step, err := db.header.Step(db.backend)
	if err != nil {
		return 0, 0, rrderr.New(rrderr.KindIo, op, err)
	}
	lastUpdate, err := db.header.LastUpdate(db.backend)
	if err != nil {
		return 0, 0, rrderr.New(rrderr.KindIo, op, err)
	}

	wantRes := int64(req.Resolution / time.Second)
	startUnix := req.Start.Unix()
	endUnix := req.End.Unix()

	var candidates []archiveCandidate
	for j, arc := range db.archives {
		cf, err := arc.CF(db.backend)
		if err != nil {
			return 0, 0, rrderr.New(rrderr.KindIo, op, err)
		}
		if cf != req.CF {
			continue
		}
		steps, err := arc.Steps(db.backend)
		if err != nil {
			return 0, 0, rrderr.New(rrderr.KindIo, op, err)
		}
		rows, err := arc.Rows(db.backend)
		if err != nil {
			return 0, 0, rrderr.New(rrderr.KindIo, op, err)
		}
		archStep := step * int64(steps)
		lastRowEnd := floorStep(lastUpdate, archStep)
		oldest := lastRowEnd - archStep*int64(rows)
		candidates = append(candidates, archiveCandidate{
			idx:      j,
			archStep: archStep,
			oldest:   oldest,
			full:     oldest <= startUnix && lastRowEnd >= endUnix,
		})
	}
	if len(candidates) == 0 {
		return 0, 0, rrderr.New(rrderr.KindNoMatchingArchive, op, fmt.Errorf("no archive with consolidation function %s", req.CF))
	}

	pick := func(pool []archiveCandidate) archiveCandidate {
		best := pool[0]
		bestDist := absInt64(best.archStep - wantRes)
		for _, c := range pool[1:] {
			d := absInt64(c.archStep - wantRes)
			if d < bestDist {
				best, bestDist = c, d
			}
		}
		return best
	}

	var full, partial []archiveCandidate
	for _, c := range candidates {
		if c.full {
			full = append(full, c)
		} else {
			partial = append(partial, c)
		}
	}
	if wantRes == 0 {
		// "finest step available": lowest archStep wins instead of closeness.
		pickFinest := func(pool []archiveCandidate) archiveCandidate {
			best := pool[0]
			for _, c := range pool[1:] {
				if c.archStep < best.archStep {
					best = c
				}
			}
			return best
		}
		if len(full) > 0 {
			c := pickFinest(full)
			return c.idx, c.archStep, nil
		}
		c := pickBestPartial(partial)
		return c.idx, c.archStep, nil
	}

	if len(full) > 0 {
		c := pick(full)
		return c.idx, c.archStep, nil
	}
	c := pickBestPartial(partial)
	return c.idx, c.archStep, nil
}

func pickBestPartial(pool []archiveCandidate) archiveCandidate {
	best := pool[0]
	for _, c := range pool[1:] {
		if c.oldest < best.oldest {
			best = c
		}
	}
	return best
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Fetch materializes the selected archive over a fixed grid: req.Start and
// req.End are aligned to the archive step (the end rounded up), and every
// grid timestamp gets the stored row ending there, or NaN when the timestamp
// lies outside the archive's covered interval (spec §4.7).
func (db *Database) Fetch(req FetchRequest) (*FetchData, error) {
	const op = "rrd.Database.Fetch"
	db.mu.Lock()
	defer db.mu.Unlock()

	archIdx, archStep, err := db.selectArchive(req)
	if err != nil {
		return nil, err
	}
	arc := db.archives[archIdx]

	lastUpdate, err := db.header.LastUpdate(db.backend)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	rows, err := arc.Rows(db.backend)
	if err != nil {
		return nil, rrderr.New(rrderr.KindIo, op, err)
	}
	lastRowEnd := floorStep(lastUpdate, archStep)

	var wantSources []string
	if len(req.Sources) > 0 {
		wantSources = req.Sources
	} else {
		// db.mu is already held; read names directly rather than through
		// SourceNames, which would lock it again.
		wantSources = make([]string, len(db.sources))
		for i, ds := range db.sources {
			n, err := ds.Name(db.backend)
			if err != nil {
				return nil, err
			}
			wantSources[i] = n
		}
	}
	srcIdx := make([]int, 0, len(wantSources))
	for _, name := range wantSources {
		idx, ok := db.names[name]
		if !ok {
			return nil, rrderr.New(rrderr.KindUnknownDataSource, op, fmt.Errorf("unknown data source %q", name))
		}
		srcIdx = append(srcIdx, idx)
	}

	oldest := lastRowEnd - archStep*int64(rows)

	// Normalize the requested window down to multiples of archStep, rounding
	// the end up if it wasn't already a multiple (spec §4.7).
	gridStart := floorStep(req.Start.Unix(), archStep)
	gridEnd := floorStep(req.End.Unix(), archStep)
	if gridEnd < req.End.Unix() {
		gridEnd += archStep
	}

	out := &FetchData{
		CF:      req.CF,
		Step:    time.Duration(archStep) * time.Second,
		Sources: wantSources,
		Values:  make(map[string][]float64, len(wantSources)),
	}

	for t := gridStart; t <= gridEnd; t += archStep {
		out.Times = append(out.Times, time.Unix(t, 0).UTC())
	}

	for _, name := range wantSources {
		idx := db.names[name]
		robin := arc.Robin(idx)
		vals := make([]float64, 0, len(out.Times))
		for t := gridStart; t <= gridEnd; t += archStep {
			if t <= oldest || t > lastRowEnd {
				vals = append(vals, math.NaN())
				continue
			}
			rowIdx := int(rows) - 1 - int((lastRowEnd-t)/archStep)
			v, err := robin.GetValue(db.backend, rowIdx)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		out.Values[name] = vals
	}

	return out, nil
}
