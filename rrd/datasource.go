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
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"rrdb/backend"
	"rrdb/prim"
)

// twoPow32 and twoPow64Minus32 are the two COUNTER-wrap corrections of spec
// §4.4, derived through 256-bit integer arithmetic (holiman/uint256, the
// same word type erigon uses for EVM values) rather than float literals, so
// the constants are exact before the single unavoidable float64 conversion.
var (
	twoPow32        = uint256ToFloat(new(uint256.Int).Lsh(uint256.NewInt(1), 32))
	twoPow64Minus32 = uint256ToFloat(new(uint256.Int).Sub(
		new(uint256.Int).Lsh(uint256.NewInt(1), 64),
		new(uint256.Int).Lsh(uint256.NewInt(1), 32),
	))
)

func uint256ToFloat(u *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(u.ToBig()).Float64()
	return f
}

// DataSource is a bound view over one source's immutable definition and
// running PDP-accumulator state (spec §3, §4.4).
type DataSource struct {
	name      *prim.String
	typ       *prim.String
	heartbeat *prim.Long
	min       *prim.Double
	max       *prim.Double

	lastValue      *prim.Double
	accumulated    *prim.Double
	unknownSeconds *prim.Double
}

func newDataSource(nameOff, typeOff, heartbeatOff, minOff, maxOff, lastValueOff, accumulatedOff, unknownSecondsOff int64) *DataSource {
	return &DataSource{
		name:           prim.NewString(nameOff, true),
		typ:            prim.NewString(typeOff, true),
		heartbeat:      prim.NewLong(heartbeatOff, true),
		min:            prim.NewDouble(minOff, true),
		max:            prim.NewDouble(maxOff, true),
		lastValue:      prim.NewDouble(lastValueOff, false),
		accumulated:    prim.NewDouble(accumulatedOff, false),
		unknownSeconds: prim.NewDouble(unknownSecondsOff, false),
	}
}

func (ds *DataSource) writeInitial(b backend.Backend, def DSDef, startTime, step int64) error {
	if err := ds.name.Set(b, def.Name); err != nil {
		return err
	}
	if err := ds.typ.Set(b, def.Type.String()); err != nil {
		return err
	}
	if err := ds.heartbeat.Set(b, def.Heartbeat); err != nil {
		return err
	}
	if err := ds.min.Set(b, def.Min); err != nil {
		return err
	}
	if err := ds.max.Set(b, def.Max); err != nil {
		return err
	}
	if err := ds.lastValue.Set(b, math.NaN()); err != nil {
		return err
	}
	if err := ds.accumulated.Set(b, 0); err != nil {
		return err
	}
	return ds.unknownSeconds.Set(b, float64(startTime%step))
}

func (ds *DataSource) Name(b backend.Backend) (string, error) { return ds.name.Get(b) }

func (ds *DataSource) Type(b backend.Backend) (DSType, error) {
	s, err := ds.typ.Get(b)
	if err != nil {
		return 0, err
	}
	return ParseDSType(s)
}

func (ds *DataSource) Heartbeat(b backend.Backend) (int64, error) { return ds.heartbeat.Get(b) }
func (ds *DataSource) Min(b backend.Backend) (float64, error)     { return ds.min.Get(b) }
func (ds *DataSource) Max(b backend.Backend) (float64, error)     { return ds.max.Get(b) }
func (ds *DataSource) LastValue(b backend.Backend) (float64, error) {
	return ds.lastValue.Get(b)
}
func (ds *DataSource) AccumulatedValue(b backend.Backend) (float64, error) {
	return ds.accumulated.Get(b)
}
func (ds *DataSource) UnknownSeconds(b backend.Backend) (float64, error) {
	return ds.unknownSeconds.Get(b)
}

// PDP is the output of one Process call when a primary step boundary was
// crossed: Value is the consolidated rate for that step (possibly NaN),
// NumSteps (>=1) is how many consecutive primary steps it covers (spec
// §4.4's bulk-fill handoff to the CDP pipeline).
type PDP struct {
	Value    float64
	NumSteps int64
}

func floorStep(t, step int64) int64 { return (t / step) * step }

// rate computes the instantaneous rate for one sample, per spec §4.4 step 1.
func rate(typ DSType, v0, v1 float64, dt int64, heartbeat int64, min, max float64, name string) float64 {
	if dt > heartbeat {
		return math.NaN()
	}
	var r float64
	switch typ {
	case Gauge:
		r = v1
	case Absolute:
		if math.IsNaN(v1) {
			r = math.NaN()
		} else {
			r = v1 / float64(dt)
		}
	case Derive:
		if math.IsNaN(v0) || math.IsNaN(v1) {
			r = math.NaN()
		} else {
			r = (v1 - v0) / float64(dt)
		}
	case Counter:
		if math.IsNaN(v0) || math.IsNaN(v1) {
			r = math.NaN()
		} else {
			diff := v1 - v0
			if diff < 0 {
				diff += twoPow32
				if diff < 0 {
					diff += twoPow64Minus32
					if diff < 0 {
						return math.NaN()
					}
				}
			}
			r = diff / float64(dt)
		}
	default:
		r = math.NaN()
	}
	if !math.IsNaN(r) {
		if !math.IsNaN(min) && r < min {
			r = math.NaN()
		} else if !math.IsNaN(max) && r > max {
			r = math.NaN()
		}
	}
	_ = name
	return r
}

func (ds *DataSource) accumulate(b backend.Backend, a, bnd int64, r float64) error {
	if bnd <= a {
		return nil
	}
	span := float64(bnd - a)
	if math.IsNaN(r) {
		us, err := ds.unknownSeconds.Get(b)
		if err != nil {
			return err
		}
		return ds.unknownSeconds.Set(b, us+span)
	}
	acc, err := ds.accumulated.Get(b)
	if err != nil {
		return err
	}
	return ds.accumulated.Set(b, acc+r*span)
}

// Process runs one sample through the PDP processor (spec §4.4). t0 is the
// previous sample time, t1 the new sample time, v1 the new raw reading.
// step is the database's primary step. It returns a non-nil *PDP exactly
// when t1 crosses at least one primary-step boundary.
func (ds *DataSource) Process(b backend.Backend, step int64, t0, t1 int64, v1 float64) (*PDP, error) {
	typ, err := ds.Type(b)
	if err != nil {
		return nil, err
	}
	heartbeat, err := ds.Heartbeat(b)
	if err != nil {
		return nil, err
	}
	minV, err := ds.Min(b)
	if err != nil {
		return nil, err
	}
	maxV, err := ds.Max(b)
	if err != nil {
		return nil, err
	}
	v0, err := ds.LastValue(b)
	if err != nil {
		return nil, err
	}
	name, err := ds.Name(b)
	if err != nil {
		return nil, err
	}

	dt := t1 - t0
	r := rate(typ, v0, v1, dt, heartbeat, minV, maxV, name)

	if err := ds.lastValue.Set(b, v1); err != nil {
		return nil, err
	}

	stepStart := floorStep(t0, step)
	stepEnd := stepStart + step
	boundary := floorStep(t1, step)

	if t1 < stepEnd {
		return nil, ds.accumulate(b, t0, t1, r)
	}

	if err := ds.accumulate(b, t0, boundary, r); err != nil {
		return nil, err
	}

	acc, err := ds.accumulated.Get(b)
	if err != nil {
		return nil, err
	}
	unknown, err := ds.unknownSeconds.Get(b)
	if err != nil {
		return nil, err
	}

	denom := float64(boundary-stepStart) - unknown
	var pdp float64
	if unknown > float64(heartbeat) || denom <= 0 {
		pdp = math.NaN()
	} else {
		pdp = acc / denom
	}
	if math.IsNaN(pdp) && strings.HasSuffix(name, "!") {
		pdp = 0
	}

	numSteps := (boundary-stepEnd)/step + 1

	if err := ds.accumulated.Set(b, 0); err != nil {
		return nil, err
	}
	if err := ds.unknownSeconds.Set(b, 0); err != nil {
		return nil, err
	}
	if err := ds.accumulate(b, boundary, t1, r); err != nil {
		return nil, err
	}

	return &PDP{Value: pdp, NumSteps: numSteps}, nil
}
