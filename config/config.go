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

// Package config loads an rrd.Definition from YAML, the ambient
// configuration format (spec §9).
package config

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"rrdb/rrd"
	"rrdb/rrderr"
)

// dataSourceYAML and archiveYAML mirror rrd.DSDef/rrd.ArcDef with string
// enum fields, since ConsFun/DSType are not yaml-native.
type dataSourceYAML struct {
	Name      string  `yaml:"name"`
	Type      string  `yaml:"type"`
	Heartbeat int64   `yaml:"heartbeat"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
}

type archiveYAML struct {
	CF    string  `yaml:"cf"`
	XFF   float64 `yaml:"xff"`
	Steps int32   `yaml:"steps"`
	Rows  int32   `yaml:"rows"`
}

type definitionYAML struct {
	Path      string            `yaml:"path"`
	StartTime int64             `yaml:"start_time"`
	Step      int64             `yaml:"step"`
	Sources   []dataSourceYAML  `yaml:"sources"`
	Archives  []archiveYAML     `yaml:"archives"`
}

func unbound(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// Load reads and parses a Definition from the YAML document at path.
func Load(path string) (rrd.Definition, error) {
	const op = "config.Load"
	data, err := os.ReadFile(path)
	if err != nil {
		return rrd.Definition{}, rrderr.New(rrderr.KindIo, op, err)
	}
	return Parse(data)
}

// Parse parses a Definition from a YAML document.
func Parse(data []byte) (rrd.Definition, error) {
	const op = "config.Parse"
	var doc definitionYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return rrd.Definition{}, rrderr.New(rrderr.KindInvalidFormat, op, err)
	}

	def := rrd.Definition{Path: doc.Path, StartTime: doc.StartTime, Step: doc.Step}
	for _, s := range doc.Sources {
		typ, err := rrd.ParseDSType(s.Type)
		if err != nil {
			return rrd.Definition{}, err
		}
		def.Sources = append(def.Sources, rrd.DSDef{
			Name:      s.Name,
			Type:      typ,
			Heartbeat: s.Heartbeat,
			Min:       unbound(s.Min),
			Max:       unbound(s.Max),
		})
	}
	for _, a := range doc.Archives {
		cf, err := rrd.ParseConsFun(a.CF)
		if err != nil {
			return rrd.Definition{}, err
		}
		def.Archives = append(def.Archives, rrd.ArcDef{CF: cf, XFF: a.XFF, Steps: a.Steps, Rows: a.Rows})
	}

	if err := def.Validate(); err != nil {
		return rrd.Definition{}, err
	}
	return def, nil
}
