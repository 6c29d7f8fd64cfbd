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
	"math"

	"rrdb/backend"
	"rrdb/prim"
)

// ArcState is the running CDP accumulator for one (archive, source) pair:
// the not-yet-closed row's partial consolidation plus a count of how many
// of its primary steps were unknown, for the XFF test (spec §4.5, §6).
type ArcState struct {
	accumulated *prim.Double
	nanSteps    *prim.Int
}

func newArcState(accOff, nanStepsOff int64) *ArcState {
	return &ArcState{
		accumulated: prim.NewDouble(accOff, false),
		nanSteps:    prim.NewInt(nanStepsOff, false),
	}
}

func neutralAccumulator(cf ConsFun) float64 {
	if cf == Average {
		return 0
	}
	return math.NaN()
}

func (s *ArcState) reset(b backend.Backend, cf ConsFun) error {
	if err := s.accumulated.Set(b, neutralAccumulator(cf)); err != nil {
		return err
	}
	return s.nanSteps.Set(b, 0)
}

func (s *ArcState) Accumulated(b backend.Backend) (float64, error) { return s.accumulated.Get(b) }
func (s *ArcState) NanSteps(b backend.Backend) (int64, error) {
	n, err := s.nanSteps.Get(b)
	return int64(n), err
}

// combine folds weight identical applications of v (itself possibly NaN)
// into the accumulator according to cf. For AVERAGE the accumulator is a
// running sum so weight matters; MIN/MAX/LAST are idempotent under repeated
// identical application so weight only affects nanSteps bookkeeping.
func (s *ArcState) combine(b backend.Backend, cf ConsFun, v float64, weight int64) error {
	if weight <= 0 {
		return nil
	}
	if math.IsNaN(v) {
		n, err := s.nanSteps.Get(b)
		if err != nil {
			return err
		}
		return s.nanSteps.Set(b, n+int32(weight))
	}
	acc, err := s.accumulated.Get(b)
	if err != nil {
		return err
	}
	switch cf {
	case Average:
		if math.IsNaN(acc) {
			acc = 0
		}
		acc += v * float64(weight)
	case Min:
		acc = nanMin(acc, v)
	case Max:
		acc = nanMax(acc, v)
	case Last:
		acc = v
	}
	return s.accumulated.Set(b, acc)
}

// close finalizes the open row into a CDP value, applying the XFF test.
func (s *ArcState) close(b backend.Backend, cf ConsFun, archSteps int32, xff float64) (float64, error) {
	acc, err := s.accumulated.Get(b)
	if err != nil {
		return 0, err
	}
	nan, err := s.nanSteps.Get(b)
	if err != nil {
		return 0, err
	}
	known := int64(archSteps) - int64(nan)
	if float64(nan)/float64(archSteps) > xff {
		return math.NaN(), nil
	}
	if cf == Average {
		if known <= 0 {
			return math.NaN(), nil
		}
		return acc / float64(known), nil
	}
	return acc, nil
}

// Archive is one consolidation archive's definition (spec §3) together
// with the per-source running state and Robin storage bound to it.
type Archive struct {
	cf    *prim.String
	xff   *prim.Double
	steps *prim.Int
	rows  *prim.Int

	states []*ArcState
	robins []*Robin
}

func newArchive(cfOff, xffOff, stepsOff, rowsOff int64, states []*ArcState, robins []*Robin) *Archive {
	return &Archive{
		cf:     prim.NewString(cfOff, true),
		xff:    prim.NewDouble(xffOff, true),
		steps:  prim.NewInt(stepsOff, true),
		rows:   prim.NewInt(rowsOff, true),
		states: states,
		robins: robins,
	}
}

func (a *Archive) writeInitial(b backend.Backend, def ArcDef) error {
	if err := a.cf.Set(b, def.CF.String()); err != nil {
		return err
	}
	if err := a.xff.Set(b, def.XFF); err != nil {
		return err
	}
	if err := a.steps.Set(b, def.Steps); err != nil {
		return err
	}
	if err := a.rows.Set(b, def.Rows); err != nil {
		return err
	}
	for i, st := range a.states {
		if err := st.reset(b, def.CF); err != nil {
			return err
		}
		if err := a.robins[i].BulkStore(b, math.NaN(), a.robins[i].Rows()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) CF(b backend.Backend) (ConsFun, error) {
	s, err := a.cf.Get(b)
	if err != nil {
		return 0, err
	}
	return ParseConsFun(s)
}
func (a *Archive) XFF(b backend.Backend) (float64, error) { return a.xff.Get(b) }
func (a *Archive) Steps(b backend.Backend) (int32, error) { return a.steps.Get(b) }
func (a *Archive) Rows(b backend.Backend) (int32, error)  { return a.rows.Get(b) }

func (a *Archive) State(sourceIdx int) *ArcState { return a.states[sourceIdx] }
func (a *Archive) Robin(sourceIdx int) *Robin    { return a.robins[sourceIdx] }

// Update runs the CDP pipeline (spec §4.5) for one source's newly completed
// PDP value(s). priorBoundary is the primary-step-aligned time at which the
// source's accumulator stood before this PDP; stepSeconds is the database's
// primary step; numSteps (>=1) is how many consecutive primary steps the
// PDP covers. It performs, in order: finishing the currently open row,
// bulk-filling any whole rows skipped entirely, and folding the remainder
// into the newly opened row.
func (a *Archive) Update(b backend.Backend, sourceIdx int, priorBoundary int64, stepSeconds int64, numSteps int64, pdpValue float64) error {
	cf, err := a.CF(b)
	if err != nil {
		return err
	}
	xff, err := a.XFF(b)
	if err != nil {
		return err
	}
	archSteps, err := a.Steps(b)
	if err != nil {
		return err
	}
	state := a.states[sourceIdx]
	robin := a.robins[sourceIdx]

	posInRow := (priorBoundary / stepSeconds) % int64(archSteps)
	stepsToRowEnd := int64(archSteps) - posInRow

	if stepsToRowEnd > numSteps {
		return state.combine(b, cf, pdpValue, numSteps)
	}

	if err := state.combine(b, cf, pdpValue, stepsToRowEnd); err != nil {
		return err
	}
	cdp, err := state.close(b, cf, archSteps, xff)
	if err != nil {
		return err
	}
	if err := robin.Store(b, cdp); err != nil {
		return err
	}
	if err := state.reset(b, cf); err != nil {
		return err
	}

	remaining := numSteps - stepsToRowEnd
	fullRows := remaining / int64(archSteps)
	remainder := remaining % int64(archSteps)

	if fullRows > 0 {
		bulkValue := pdpValue
		if math.IsNaN(pdpValue) {
			bulkValue = math.NaN()
		}
		if err := robin.BulkStore(b, bulkValue, int(fullRows)); err != nil {
			return err
		}
	}

	if remainder > 0 {
		if err := state.combine(b, cf, pdpValue, remainder); err != nil {
			return err
		}
	}
	return nil
}
