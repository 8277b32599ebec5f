// Package tool describes cutters and the table they are looked up in.
package tool

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownTool  = errors.New("unknown tool")
	ErrZeroDiameter = errors.New("tool has zero diameter")
)

type Type string

const (
	Endmill   Type = "endmill"
	Ballmill  Type = "ballmill"
	Tapermill Type = "tapermill"
	Drill     Type = "drill"
	Laser     Type = "laser"
)

// Tool dimensions are in inches unless Metric is set.
type Tool struct {
	ID            int     `mapstructure:"id" yaml:"id"`
	Number        int     `mapstructure:"number" yaml:"number"`
	Name          string  `mapstructure:"name" yaml:"name"`
	Type          Type    `mapstructure:"type" yaml:"type"`
	Metric        bool    `mapstructure:"metric" yaml:"metric"`
	FluteDiameter float64 `mapstructure:"fluteDiameter" yaml:"fluteDiameter"`
	FluteLength   float64 `mapstructure:"fluteLength" yaml:"fluteLength"`
	ShaftDiameter float64 `mapstructure:"shaftDiameter" yaml:"shaftDiameter"`
	TaperTip      float64 `mapstructure:"taperTip" yaml:"taperTip"`
}

func (t Tool) UnitScale() float64 {
	if t.Metric {
		return 1
	}
	return 25.4
}

// Diameter is the flute diameter in millimeters.
func (t Tool) Diameter() float64 {
	return t.FluteDiameter * t.UnitScale()
}

func (t Tool) Radius() float64 {
	return t.Diameter() / 2
}

func (t Tool) TipDiameter() float64 {
	switch t.Type {
	case Tapermill:
		return t.TaperTip * t.UnitScale()
	case Ballmill:
		return 0
	}
	return t.Diameter()
}

func (t Tool) ShaftDiam() float64 {
	return t.ShaftDiameter * t.UnitScale()
}

// MaxDiameter is the widest part of the tool that can hit material.
func (t Tool) MaxDiameter() float64 {
	if d := t.ShaftDiam(); d > t.Diameter() {
		return d
	}
	return t.Diameter()
}

// MoveThreshold is the XY travel below which a rapid at constant or falling Z
// may be cut instead of retracted over.
func (t Tool) MoveThreshold(tolerance float64) float64 {
	switch t.Type {
	case Endmill, Drill, "":
		return t.Diameter()
	}
	if tolerance > 0 {
		return tolerance * 2
	}
	return t.Diameter()
}

// ArcRadiusCap bounds the radius the arc fitter will accept with this tool.
func (t Tool) ArcRadiusCap() float64 {
	return t.Diameter() * 100
}

func (t Tool) Validate() error {
	if t.FluteDiameter <= 0 {
		return fmt.Errorf("tool %d (%s): %w", t.ID, t.Name, ErrZeroDiameter)
	}
	return nil
}

type Table struct {
	tools map[int]Tool
}

func NewTable(tools []Tool) (*Table, error) {
	t := &Table{tools: make(map[int]Tool, len(tools))}
	for _, tl := range tools {
		if err := tl.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.tools[tl.ID]; dup {
			return nil, fmt.Errorf("duplicate tool id %d", tl.ID)
		}
		t.tools[tl.ID] = tl
	}
	return t, nil
}

func (t *Table) Lookup(id int) (Tool, error) {
	tl, ok := t.tools[id]
	if !ok {
		return Tool{}, fmt.Errorf("tool %d: %w", id, ErrUnknownTool)
	}
	return tl, nil
}

// MaxDiameter is the widest tool in the table. Travel height queries use it
// so one clearance holds for every tool in a job.
func (t *Table) MaxDiameter() float64 {
	var d float64
	for _, tl := range t.tools {
		if md := tl.MaxDiameter(); md > d {
			d = md
		}
	}
	return d
}

func (t *Table) IDs() []int {
	ids := make([]int, 0, len(t.tools))
	for id := range t.tools {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
