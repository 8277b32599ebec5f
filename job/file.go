// Package job reads job files and drives the planner over their widgets.
package job

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/plan"
	"github.com/kennylevinsen/gocam/terrain"
)

var ErrInvalidGeometry = errors.New("invalid geometry")

// Points are [x, y], [x, y, z] or [x, y, z, a]. A missing Z is taken from the
// enclosing slice or terrain entry.
type point []float64

type polygon struct {
	Points []point    `yaml:"points"`
	Open   bool       `yaml:"open"`
	Inner  []*polygon `yaml:"inner"`
}

type slice struct {
	Z     float64    `yaml:"z"`
	Lines []*polygon `yaml:"lines"`
}

type terrainEntry struct {
	Z    float64    `yaml:"z"`
	Tops []*polygon `yaml:"tops"`
}

type op struct {
	Kind    string  `yaml:"kind"`
	Tool    int     `yaml:"tool"`
	Feed    float64 `yaml:"feed"`
	Plunge  float64 `yaml:"plunge"`
	Spindle float64 `yaml:"spindle"`

	Clockwise  bool    `yaml:"clockwise"`
	Contour    bool    `yaml:"contour"`
	Tolerance  float64 `yaml:"tolerance"`
	Step       float64 `yaml:"step"`
	Resolution float64 `yaml:"resolution"`

	Degrees  float64 `yaml:"degrees"`
	Absolute bool    `yaml:"absolute"`

	Axis  string  `yaml:"axis"`
	Down  float64 `yaml:"down"`
	Lift  float64 `yaml:"lift"`
	Dwell float64 `yaml:"dwell"`

	Faces   []slice    `yaml:"faces"`
	Slices  []slice    `yaml:"slices"`
	Pockets [][]slice  `yaml:"pockets"`
	Holes   []*polygon `yaml:"holes"`

	Enable   []string `yaml:"enable"`
	Disable  []string `yaml:"disable"`
	Lines    []string `yaml:"lines"`
	Power    float64  `yaml:"power"`
	Adapt    bool     `yaml:"adapt"`
	Wrap     bool     `yaml:"wrap"`
	MinZ     float64  `yaml:"minZ"`
	MaxZ     float64  `yaml:"maxZ"`
	MinPower float64  `yaml:"minPower"`
	MaxPower float64  `yaml:"maxPower"`
	Flat     bool     `yaml:"flat"`
	FlatZ    float64  `yaml:"flatZ"`
}

type widget struct {
	Name   string `yaml:"name"`
	Offset struct {
		X float64 `yaml:"x"`
		Y float64 `yaml:"y"`
		Z float64 `yaml:"z"`
	} `yaml:"offset"`
	Terrain []terrainEntry `yaml:"terrain"`
	Ops     []op           `yaml:"ops"`
}

type file struct {
	Widgets []widget `yaml:"widgets"`
}

// Load reads a job file.
func Load(path string) ([]*plan.Widget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	widgets, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return widgets, nil
}

// Decode reads a job from r. Unknown keys are errors.
func Decode(r io.Reader) ([]*plan.Widget, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, err
	}

	var out []*plan.Widget
	for i, w := range f.Widgets {
		name := w.Name
		if name == "" {
			name = fmt.Sprintf("widget %d", i+1)
		}
		pw, err := w.convert(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, pw)
	}
	return out, nil
}

func (w *widget) convert(name string) (*plan.Widget, error) {
	pw := &plan.Widget{
		Name:   name,
		Offset: geom.Pt(w.Offset.X, w.Offset.Y, w.Offset.Z),
	}
	for _, e := range w.Terrain {
		tops, err := polygons(e.Tops, e.Z)
		if err != nil {
			return nil, err
		}
		pw.Terrain = append(pw.Terrain, terrain.Entry{Z: e.Z, Tops: tops})
	}
	for i := range w.Ops {
		o, err := w.Ops[i].convert()
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i+1, err)
		}
		pw.Ops = append(pw.Ops, o)
	}
	return pw, nil
}

func (o *op) convert() (plan.Op, error) {
	kind, err := plan.ParseKind(o.Kind)
	if err != nil {
		return nil, err
	}
	c := plan.Cutter{Tool: o.Tool, Feed: o.Feed, Plunge: o.Plunge, Spindle: o.Spindle}

	sl, err := toSlices(o.Slices)
	if err != nil {
		return nil, err
	}

	switch kind {
	case plan.KindRough:
		faces, err := toSlices(o.Faces)
		if err != nil {
			return nil, err
		}
		return &plan.Rough{Cutter: c, Clockwise: o.Clockwise, Faces: faces, Slices: sl}, nil
	case plan.KindPocket:
		p := &plan.Pocket{Cutter: c, Clockwise: o.Clockwise, Contour: o.Contour, Tolerance: o.Tolerance}
		for _, pocket := range o.Pockets {
			ps, err := toSlices(pocket)
			if err != nil {
				return nil, err
			}
			p.Pockets = append(p.Pockets, ps)
		}
		return p, nil
	case plan.KindContour:
		return &plan.Contour{Cutter: c, Tolerance: o.Tolerance, Step: o.Step, Slices: sl}, nil
	case plan.KindTrace:
		return &plan.Trace{Cutter: c, Slices: sl}, nil
	case plan.KindLathe:
		return &plan.Lathe{Cutter: c, Step: o.Step, Resolution: o.Resolution, Slices: sl}, nil
	case plan.KindIndex:
		return &plan.Index{Degrees: o.Degrees, Absolute: o.Absolute}, nil
	case plan.KindDrill:
		holes, err := o.holes()
		if err != nil {
			return nil, err
		}
		return &plan.Drill{Cutter: c, Down: o.Down, Lift: o.Lift, Dwell: o.Dwell, Holes: holes}, nil
	case plan.KindRegister:
		holes, err := o.holes()
		if err != nil {
			return nil, err
		}
		return &plan.Register{Cutter: c, Axis: o.Axis, Down: o.Down, Lift: o.Lift, Dwell: o.Dwell,
			Slices: sl, Holes: holes}, nil
	case plan.KindShadow:
		return &plan.Shadow{}, nil
	case plan.KindLaserOn:
		return &plan.LaserOn{
			Enable:   o.Enable,
			Power:    o.Power,
			Adapt:    o.Adapt,
			Wrap:     o.Wrap,
			MinZ:     o.MinZ,
			MaxZ:     o.MaxZ,
			MinPower: o.MinPower,
			MaxPower: o.MaxPower,
			Flat:     o.Flat,
			FlatZ:    o.FlatZ,
		}, nil
	case plan.KindLaserOff:
		return &plan.LaserOff{Disable: o.Disable}, nil
	case plan.KindGCode:
		return &plan.GCode{Lines: o.Lines}, nil
	}
	return nil, fmt.Errorf("unhandled operation %s", kind)
}

// Holes run from their top to their bottom.
func (o *op) holes() ([]*geom.Polygon, error) {
	holes, err := polygons(o.Holes, 0)
	if err != nil {
		return nil, err
	}
	for _, h := range holes {
		if h.Len() != 2 {
			return nil, fmt.Errorf("%w: hole needs a top and a bottom point, got %d", ErrInvalidGeometry, h.Len())
		}
		h.Open = true
	}
	return holes, nil
}

func toSlices(in []slice) ([]plan.Slice, error) {
	var out []plan.Slice
	for _, s := range in {
		lines, err := polygons(s.Lines, s.Z)
		if err != nil {
			return nil, err
		}
		out = append(out, plan.Slice{Z: s.Z, Lines: lines})
	}
	return out, nil
}

func polygons(in []*polygon, z float64) ([]*geom.Polygon, error) {
	var out []*geom.Polygon
	for _, p := range in {
		gp, err := p.convert(z, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, gp)
	}
	return out, nil
}

func (p *polygon) convert(z float64, depth int) (*geom.Polygon, error) {
	gp := &geom.Polygon{Open: p.Open, Depth: depth}
	for _, pt := range p.Points {
		gpt, err := pt.convert(z)
		if err != nil {
			return nil, err
		}
		gp.Points = append(gp.Points, gpt)
	}
	for _, in := range p.Inner {
		gin, err := in.convert(z, depth+1)
		if err != nil {
			return nil, err
		}
		gp.Inner = append(gp.Inner, gin)
	}
	return gp, nil
}

func (p point) convert(z float64) (geom.Point, error) {
	switch len(p) {
	case 2:
		return geom.Pt(p[0], p[1], z), nil
	case 3:
		return geom.Pt(p[0], p[1], p[2]), nil
	case 4:
		return geom.Pt(p[0], p[1], p[2]).WithA(p[3]), nil
	}
	return geom.Point{}, fmt.Errorf("%w: point with %d coordinates", ErrInvalidGeometry, len(p))
}
