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

// Package process implements the data processor that turns DEF/PDEF/CDEF/
// SDEF/percentile source declarations into normalized, time-aligned series
// and scalars (spec §4.9).
package process

import (
	"fmt"
	"math"
	"time"

	"rrdb/aggregate"
	"rrdb/rpn"
	"rrdb/rrd"
	"rrdb/rrderr"
)

// Def pulls one data source's archive out of an open Database.
type Def struct {
	VarName string
	DB      *rrd.Database
	DSName  string
	CF      rrd.ConsFun
}

// PDef is a directly-supplied series, e.g. recovered from a snapshot import
// rather than a live Database.
type PDef struct {
	VarName string
	Times   []time.Time
	Values  []float64
	Step    time.Duration
}

// CDef is a derived series computed by an RPN expression over already
// available named series, evaluated row by row in declaration order.
type CDef struct {
	VarName string
	Expr    *rpn.Expr
}

// SDef reduces a named series to a single scalar via an aggregate.Kind.
type SDef struct {
	VarName string
	Source  string
	Kind    aggregate.Kind
}

// PercentileDef reduces a named series to a single scalar percentile.
type PercentileDef struct {
	VarName string
	Source  string
	P       float64
}

// DataProcessor accumulates source declarations for one evaluation window
// and produces normalized series plus scalar reductions (spec §4.9).
type DataProcessor struct {
	Start time.Time
	End   time.Time
	Step  time.Duration

	defs        []Def
	pdefs       []PDef
	cdefs       []CDef
	sdefs       []SDef
	percentiles []PercentileDef
}

// New starts a DataProcessor for the window [start, end]. step is the
// output resolution; 0 means "use the finest resolution any DEF's archive
// naturally provides."
func New(start, end time.Time, step time.Duration) *DataProcessor {
	return &DataProcessor{Start: start, End: end, Step: step}
}

func (p *DataProcessor) AddDef(d Def)                   { p.defs = append(p.defs, d) }
func (p *DataProcessor) AddPDef(d PDef)                 { p.pdefs = append(p.pdefs, d) }
func (p *DataProcessor) AddCDef(d CDef)                 { p.cdefs = append(p.cdefs, d) }
func (p *DataProcessor) AddSDef(d SDef)                 { p.sdefs = append(p.sdefs, d) }
func (p *DataProcessor) AddPercentile(d PercentileDef)  { p.percentiles = append(p.percentiles, d) }

// Result is the output of Process: every DEF/PDEF/CDEF series resampled
// onto a common Times grid, plus every SDEF/percentile scalar.
type Result struct {
	Times   []time.Time
	Series  map[string][]float64
	Scalars map[string]float64
}

// Process fetches every DEF (grouping DEFs against the same Database and
// consolidation function into one batched Fetch call), resamples every
// series onto a common grid, evaluates CDEFs in declaration order, and
// reduces SDEFs/percentiles to scalars (spec §4.9).
func (p *DataProcessor) Process() (*Result, error) {
	const op = "process.DataProcessor.Process"

	type groupKey struct {
		db *rrd.Database
		cf rrd.ConsFun
	}
	groups := make(map[groupKey][]Def)
	var order []groupKey
	for _, d := range p.defs {
		k := groupKey{d.DB, d.CF}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d)
	}

	type rawSeries struct {
		times  []time.Time
		values []float64
		step   time.Duration
	}
	raw := make(map[string]rawSeries, len(p.defs)+len(p.pdefs))
	finestStep := time.Duration(0)

	for _, k := range order {
		ds := groups[k]
		names := make([]string, len(ds))
		for i, d := range ds {
			names[i] = d.DSName
		}
		fetched, err := k.db.Fetch(rrd.FetchRequest{CF: k.cf, Start: p.Start, End: p.End, Resolution: p.Step, Sources: names})
		if err != nil {
			return nil, err
		}
		if finestStep == 0 || fetched.Step < finestStep {
			finestStep = fetched.Step
		}
		for _, d := range ds {
			raw[d.VarName] = rawSeries{times: fetched.Times, values: fetched.Values[d.DSName], step: fetched.Step}
		}
	}
	for _, d := range p.pdefs {
		raw[d.VarName] = rawSeries{times: d.Times, values: d.Values, step: d.Step}
		if finestStep == 0 || d.Step < finestStep {
			finestStep = d.Step
		}
	}

	step := p.Step
	if step == 0 {
		step = finestStep
	}
	if step == 0 {
		return nil, rrderr.Wrapf(rrderr.KindInvalidArgument, op, "no resolution could be determined: set Step or add at least one DEF/PDEF")
	}

	var times []time.Time
	for t := p.Start.Add(step); !t.After(p.End); t = t.Add(step) {
		times = append(times, t)
	}

	series := make(map[string][]float64, len(raw)+len(p.cdefs))
	for name, rs := range raw {
		series[name] = resample(rs.times, rs.values, rs.step, times, step)
	}

	for _, c := range p.cdefs {
		out := make([]float64, len(times))
		var prev float64 = math.NaN()
		prevValues := make(map[string]float64, len(series))
		for i, t := range times {
			values := make(map[string]float64, len(series))
			for name, vec := range series {
				values[name] = vec[i]
			}
			v, err := c.Expr.Eval(rpn.Context{
				Values:     values,
				Prev:       prev,
				PrevValues: prevValues,
				Now:        t,
				Step:       step,
			})
			if err != nil {
				return nil, fmt.Errorf("%s: cdef %q: %w", op, c.VarName, err)
			}
			out[i] = v
			prev = v
			for name, vec := range series {
				prevValues[name] = vec[i]
			}
		}
		series[c.VarName] = out
	}

	scalars := make(map[string]float64, len(p.sdefs)+len(p.percentiles))
	for _, s := range p.sdefs {
		vec, ok := series[s.Source]
		if !ok {
			return nil, rrderr.Wrapf(rrderr.KindInvalidArgument, op, "sdef %q references unknown source %q", s.VarName, s.Source)
		}
		scalars[s.VarName] = aggregate.Reduce(vec, s.Kind)
	}
	for _, pc := range p.percentiles {
		vec, ok := series[pc.Source]
		if !ok {
			return nil, rrderr.Wrapf(rrderr.KindInvalidArgument, op, "percentile %q references unknown source %q", pc.VarName, pc.Source)
		}
		v, err := aggregate.Percentile(vec, pc.P)
		if err != nil {
			return nil, err
		}
		scalars[pc.VarName] = v
	}

	return &Result{Times: times, Series: series, Scalars: scalars}, nil
}

// resample time-weight-averages a source series, whose samples each
// represent the half-open bucket (end-step, end], onto dstTimes/dstStep
// buckets of the same shape (spec §4.9's Normalizer contract).
func resample(srcTimes []time.Time, srcValues []float64, srcStep time.Duration, dstTimes []time.Time, dstStep time.Duration) []float64 {
	out := make([]float64, len(dstTimes))
	for i, dEnd := range dstTimes {
		dStart := dEnd.Add(-dstStep)
		var wsum, vsum float64
		for j, sEnd := range srcTimes {
			if j >= len(srcValues) {
				break
			}
			v := srcValues[j]
			if math.IsNaN(v) {
				continue
			}
			sStart := sEnd.Add(-srcStep)
			ovStart := sStart
			if dStart.After(ovStart) {
				ovStart = dStart
			}
			ovEnd := sEnd
			if dEnd.Before(ovEnd) {
				ovEnd = dEnd
			}
			overlap := ovEnd.Sub(ovStart)
			if overlap <= 0 {
				continue
			}
			w := overlap.Seconds()
			wsum += w
			vsum += w * v
		}
		if wsum == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = vsum / dstStep.Seconds()
		}
	}
	return out
}
