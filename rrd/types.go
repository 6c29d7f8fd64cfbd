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

// Package rrd is the round-robin storage engine: Header, DataSource,
// Archive/ArcState, Robin, Database, Sample and the fetch path (spec §3,
// §4.1, §4.4-§4.8).
package rrd

import (
	"fmt"
	"math"
	"strings"

	"rrdb/prim"
	"rrdb/rrderr"
)

// DSType is a data source's sample kind (spec §3).
type DSType int

const (
	Gauge DSType = iota
	Counter
	Derive
	Absolute
)

func (t DSType) String() string {
	switch t {
	case Gauge:
		return "GAUGE"
	case Counter:
		return "COUNTER"
	case Derive:
		return "DERIVE"
	case Absolute:
		return "ABSOLUTE"
	default:
		return "UNKNOWN"
	}
}

// ParseDSType parses the on-disk/definition string form of a DSType.
func ParseDSType(s string) (DSType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GAUGE":
		return Gauge, nil
	case "COUNTER":
		return Counter, nil
	case "DERIVE":
		return Derive, nil
	case "ABSOLUTE":
		return Absolute, nil
	default:
		return 0, rrderr.Wrapf(rrderr.KindInvalidDefinition, "rrd.ParseDSType", "unknown data source type %q", s)
	}
}

// ConsFun is an archive's consolidation function (spec §3).
type ConsFun int

const (
	Average ConsFun = iota
	Min
	Max
	Last
)

func (f ConsFun) String() string {
	switch f {
	case Average:
		return "AVERAGE"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case Last:
		return "LAST"
	default:
		return "UNKNOWN"
	}
}

// ParseConsFun parses the on-disk/definition string form of a ConsFun.
func ParseConsFun(s string) (ConsFun, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AVERAGE":
		return Average, nil
	case "MIN":
		return Min, nil
	case "MAX":
		return Max, nil
	case "LAST":
		return Last, nil
	default:
		return 0, rrderr.Wrapf(rrderr.KindInvalidDefinition, "rrd.ParseConsFun", "unknown consolidation function %q", s)
	}
}

// DSDef is the immutable definition of one data source (spec §3).
type DSDef struct {
	Name      string
	Type      DSType
	Heartbeat int64
	Min       float64 // NaN means unbounded
	Max       float64 // NaN means unbounded
}

// ArcDef is the immutable definition of one archive (spec §3).
type ArcDef struct {
	CF    ConsFun
	XFF   float64
	Steps int32
	Rows  int32
}

// Definition fully describes a database to be created (spec §4.1).
type Definition struct {
	Path       string
	StartTime  int64
	Step       int64
	Sources    []DSDef
	Archives   []ArcDef
}

func isUnbounded(v float64) bool { return math.IsNaN(v) }

// Validate checks the invariants of spec §3/§7 that must hold before a
// database is ever created from this Definition. Apart from it, only
// ParseDSType and ParseConsFun raise InvalidDefinition.
func (d *Definition) Validate() error {
	const op = "rrd.Definition.Validate"
	if len(d.Sources) == 0 {
		return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("at least one data source is required"))
	}
	if len(d.Archives) == 0 {
		return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("at least one archive is required"))
	}
	if d.Step <= 0 {
		return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("step must be positive"))
	}

	seenNames := make(map[string]struct{}, len(d.Sources))
	for _, ds := range d.Sources {
		if n := len([]rune(ds.Name)); n == 0 || n > prim.StrLen {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("data source name %q must be 1..%d characters", ds.Name, prim.StrLen))
		}
		if _, dup := seenNames[ds.Name]; dup {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("duplicate data source name %q", ds.Name))
		}
		seenNames[ds.Name] = struct{}{}
		if ds.Heartbeat <= 0 {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("data source %q: heartbeat must be positive", ds.Name))
		}
		if !isUnbounded(ds.Min) && !isUnbounded(ds.Max) && ds.Min >= ds.Max {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("data source %q: min must be < max", ds.Name))
		}
	}

	type archKey struct {
		cf    ConsFun
		steps int32
	}
	seenArch := make(map[archKey]struct{}, len(d.Archives))
	for _, a := range d.Archives {
		if a.XFF < 0 || a.XFF >= 1 {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("archive %s/%d: xff must be in [0,1)", a.CF, a.Steps))
		}
		if a.Steps < 1 {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("archive %s/%d: steps must be >= 1", a.CF, a.Steps))
		}
		if a.Rows < 2 {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("archive %s/%d: rows must be >= 2", a.CF, a.Steps))
		}
		k := archKey{a.CF, a.Steps}
		if _, dup := seenArch[k]; dup {
			return rrderr.New(rrderr.KindInvalidDefinition, op, fmt.Errorf("duplicate archive (%s, steps=%d)", a.CF, a.Steps))
		}
		seenArch[k] = struct{}{}
	}
	return nil
}
