package plan

import (
	"fmt"

	"github.com/kennylevinsen/gocam/geom"
)

// Kind is the closed set of operations the planner knows how to emit.
type Kind int

const (
	KindRough Kind = iota
	KindPocket
	KindContour
	KindTrace
	KindLathe
	KindIndex
	KindDrill
	KindRegister
	KindShadow
	KindLaserOn
	KindLaserOff
	KindGCode
)

var kindNames = [...]string{
	KindRough:    "rough",
	KindPocket:   "pocket",
	KindContour:  "contour",
	KindTrace:    "trace",
	KindLathe:    "lathe",
	KindIndex:    "index",
	KindDrill:    "drill",
	KindRegister: "register",
	KindShadow:   "shadow",
	KindLaserOn:  "laser on",
	KindLaserOff: "laser off",
	KindGCode:    "gcode",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps an operation name, as written in job files, to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	switch s {
	case "laser-on":
		return KindLaserOn, nil
	case "laser-off":
		return KindLaserOff, nil
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// Op is implemented by one struct per Kind. It is sealed: only this package
// provides implementations.
type Op interface {
	Kind() Kind
	op()
}

// Slice is one Z layer of cut geometry for an operation.
type Slice struct {
	Z     float64
	Lines []*geom.Polygon
}

// Cutter carries the tool and rates shared by every cutting operation. Zero
// rates fall back to the previous operation's.
type Cutter struct {
	Tool    int
	Feed    float64
	Plunge  float64
	Spindle float64
}

// Rough clears material level by level. Faces are flat passes over the top of
// the stock, cut before the slices.
type Rough struct {
	Cutter
	Clockwise bool
	Faces     []Slice
	Slices    []Slice
}

// Pocket clears a set of regions, each a stack of slices from the top down.
type Pocket struct {
	Cutter
	Clockwise bool
	Contour   bool
	Tolerance float64
	Pockets   [][]Slice
}

// Contour follows open paths over a surface.
type Contour struct {
	Cutter
	Tolerance float64
	Step      float64 // stepover as a fraction of the tool diameter
	Slices    []Slice
}

type Trace struct {
	Cutter
	Slices []Slice
}

// Lathe cuts open paths around the rotary axis. Points closer than
// Resolution in Z to the last emitted one are held back until Z changes.
type Lathe struct {
	Cutter
	Step       float64
	Resolution float64
	Slices     []Slice
}

// Index turns the rotary axis, absolute or relative to the current angle.
type Index struct {
	Degrees  float64
	Absolute bool
}

// Drill pecks holes. Each hole is an open polygon from its top to its bottom.
type Drill struct {
	Cutter
	Down  float64 // peck depth, 0 for a single plunge
	Lift  float64
	Dwell float64 // seconds
	Holes []*geom.Polygon
}

// Register cuts alignment features: traced slices for axis "-", drilled holes
// otherwise.
type Register struct {
	Cutter
	Axis   string
	Down   float64
	Lift   float64
	Dwell  float64
	Slices []Slice
	Holes  []*geom.Polygon
}

// Shadow computes terrain upstream and emits nothing.
type Shadow struct{}

// LaserOn injects Enable and modulates the power of the cuts that follow.
type LaserOn struct {
	Enable []string
	Power  float64

	// Adapt scales power with Z between MinPower at MinZ and MaxPower at
	// MaxZ. Cuts outside the band are dropped unless Wrap folds them back
	// into it.
	Adapt    bool
	Wrap     bool
	MinZ     float64
	MaxZ     float64
	MinPower float64
	MaxPower float64

	// Flat cuts everything at the stock top plus FlatZ.
	Flat  bool
	FlatZ float64
}

type LaserOff struct {
	Disable []string
}

// GCode injects lines verbatim.
type GCode struct {
	Lines []string
}

func (*Rough) Kind() Kind    { return KindRough }
func (*Pocket) Kind() Kind   { return KindPocket }
func (*Contour) Kind() Kind  { return KindContour }
func (*Trace) Kind() Kind    { return KindTrace }
func (*Lathe) Kind() Kind    { return KindLathe }
func (*Index) Kind() Kind    { return KindIndex }
func (*Drill) Kind() Kind    { return KindDrill }
func (*Register) Kind() Kind { return KindRegister }
func (*Shadow) Kind() Kind   { return KindShadow }
func (*LaserOn) Kind() Kind  { return KindLaserOn }
func (*LaserOff) Kind() Kind { return KindLaserOff }
func (*GCode) Kind() Kind    { return KindGCode }

func (*Rough) op()    {}
func (*Pocket) op()   {}
func (*Contour) op()  {}
func (*Trace) op()    {}
func (*Lathe) op()    {}
func (*Index) op()    {}
func (*Drill) op()    {}
func (*Register) op() {}
func (*Shadow) op()   {}
func (*LaserOn) op()  {}
func (*LaserOff) op() {}
func (*GCode) op()    {}

// cutter returns the op's tool settings, if it cuts with one.
func cutter(op Op) (Cutter, bool) {
	switch o := op.(type) {
	case *Rough:
		return o.Cutter, true
	case *Pocket:
		return o.Cutter, true
	case *Contour:
		return o.Cutter, true
	case *Trace:
		return o.Cutter, true
	case *Lathe:
		return o.Cutter, true
	case *Drill:
		return o.Cutter, true
	case *Register:
		return o.Cutter, true
	}
	return Cutter{}, false
}
