package vm

import "github.com/kennylevinsen/gocam/geom"
import "github.com/kennylevinsen/gocam/vector"
import "fmt"
import "io"
import "math"

// Constants for move modes
const (
	MoveModeNone   = iota
	MoveModeRapid  = iota
	MoveModeLinear = iota
	MoveModeCWArc  = iota
	MoveModeCCWArc = iota
)

// Constants for plane selection
const (
	PlaneXY = iota
	PlaneXZ = iota
	PlaneYZ = iota
)

// Machine state
type State struct {
	Feedrate     float64
	SpindleSpeed float64
	MoveMode     int
	Tool         int
	NextTool     int
}

// Position and state. Coordinates are final machine coordinates. Arcs carry
// their absolute center and a polyline used only for previews.
type Position struct {
	State   State
	X, Y, Z float64
	A       float64
	HasA    bool
	Center  *vector.Vector
	Preview []vector.Vector
}

func (p Position) Vector() vector.Vector {
	return vector.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

func (p Position) Point() geom.Point {
	return geom.Point{X: p.X, Y: p.Y, Z: p.Z, A: p.A, HasA: p.HasA}
}

func (p Position) IsArc() bool {
	return p.State.MoveMode == MoveModeCWArc || p.State.MoveMode == MoveModeCCWArc
}

// PositionAt builds a position at pt with the given state.
func PositionAt(pt geom.Point, s State) Position {
	return Position{State: s, X: pt.X, Y: pt.Y, Z: pt.Z, A: pt.A, HasA: pt.HasA}
}

func samePlace(a, b Position) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.Z-b.Z) < eps &&
		a.HasA == b.HasA && math.Abs(a.A-b.A) < eps
}

// A run of positions sharing one operation. Layers holding only GCode are
// injected verbatim by the exporters.
type Layer struct {
	Op        string
	Spindle   float64
	Positions []Position
	GCode     []string
}

func (l *Layer) Empty() bool {
	return len(l.Positions) == 0 && len(l.GCode) == 0
}

// Machine records positions, either pushed by the planner or produced by
// processing a G-code document.
type Machine struct {
	Layers []*Layer

	State            State
	Imperial         bool
	AbsoluteMove     bool
	AbsoluteArc      bool
	MovePlane        int
	MaxArcDeviation  float64
	MinArcLineLength float64

	pos   Position
	pendT int
}

// Initialize the VM to sane default values
func (vm *Machine) Init(maxArcDeviation, minArcLineLength float64) {
	vm.Layers = nil
	vm.State = State{Tool: -1, NextTool: -1}
	vm.Imperial = false
	vm.AbsoluteMove = true
	vm.AbsoluteArc = false
	vm.MovePlane = PlaneXY
	vm.MaxArcDeviation = maxArcDeviation
	vm.MinArcLineLength = minArcLineLength
	vm.pos = Position{State: vm.State}
	vm.pendT = -1
}

func (vm *Machine) current() *Layer {
	if len(vm.Layers) == 0 {
		vm.Layers = append(vm.Layers, &Layer{})
	}
	return vm.Layers[len(vm.Layers)-1]
}

// Starts a new layer. An empty current layer is reused.
func (vm *Machine) NewLayer(op string, spindle float64) {
	if l := vm.current(); l.Empty() {
		l.Op, l.Spindle = op, spindle
		return
	}
	vm.Layers = append(vm.Layers, &Layer{Op: op, Spindle: spindle})
}

// Appends a position to the current layer. A position repeating the last one
// with the same move mode is dropped; arcs are always kept.
func (vm *Machine) Push(pos Position) bool {
	if last := vm.lastRef(); last != nil && !pos.IsArc() &&
		samePlace(*last, pos) && last.State.MoveMode == pos.State.MoveMode {
		return false
	}
	l := vm.current()
	l.Positions = append(l.Positions, pos)
	return true
}

func (vm *Machine) lastRef() *Position {
	for i := len(vm.Layers) - 1; i >= 0; i-- {
		if p := vm.Layers[i].Positions; len(p) > 0 {
			return &p[len(p)-1]
		}
	}
	return nil
}

// Injects raw G-code as a layer of its own.
func (vm *Machine) AddGCode(op string, lines ...string) {
	vm.NewLayer(op, 0)
	l := vm.current()
	l.GCode = append(l.GCode, lines...)
	vm.Layers = append(vm.Layers, &Layer{})
}

// Retrieves the last recorded position
func (vm *Machine) Last() (Position, bool) {
	last := vm.lastRef()
	if last == nil {
		return Position{}, false
	}
	return *last, true
}

// All positions of all layers, in order.
func (vm *Machine) Positions() []Position {
	var out []Position
	for _, l := range vm.Layers {
		out = append(out, l.Positions...)
	}
	return out
}

// Layers that hold anything.
func (vm *Machine) Output() []*Layer {
	var out []*Layer
	for _, l := range vm.Layers {
		if !l.Empty() {
			out = append(out, l)
		}
	}
	return out
}

// Revisits the final position so the job ends at or above z. A trailing
// rapid is raised in place, anything else gets a rapid appended.
func (vm *Machine) FinalizeAbove(z float64) {
	last := vm.lastRef()
	if last == nil || last.Z >= z {
		return
	}
	if last.State.MoveMode == MoveModeRapid {
		last.Z = z
		return
	}
	up := *last
	up.Z = z
	up.State.MoveMode = MoveModeRapid
	up.State.Feedrate = 0
	up.Center, up.Preview = nil, nil
	vm.Push(up)
}

// Prints the recorded positions, one per line.
func (vm *Machine) Dump(w io.Writer) {
	for _, l := range vm.Layers {
		if l.Empty() {
			continue
		}
		fmt.Fprintf(w, "layer %q (spindle %g)\n", l.Op, l.Spindle)
		for _, line := range l.GCode {
			fmt.Fprintf(w, "  gcode: %s\n", line)
		}
		for _, m := range l.Positions {
			switch m.State.MoveMode {
			case MoveModeRapid:
				fmt.Fprintf(w, "  rapid move, ")
			case MoveModeLinear:
				fmt.Fprintf(w, "  linear move, ")
			case MoveModeCWArc:
				fmt.Fprintf(w, "  clockwise arc, ")
			case MoveModeCCWArc:
				fmt.Fprintf(w, "  counterclockwise arc, ")
			}
			fmt.Fprintf(w, "tool: %d, feedrate: %g, ", m.State.Tool, m.State.Feedrate)
			fmt.Fprintf(w, "X: %f, Y: %f, Z: %f", m.X, m.Y, m.Z)
			if m.HasA {
				fmt.Fprintf(w, ", A: %f", m.A)
			}
			if m.Center != nil {
				fmt.Fprintf(w, ", center: %s", m.Center)
			}
			fmt.Fprintln(w)
		}
	}
}
