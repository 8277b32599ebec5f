package vm

import "github.com/kennylevinsen/gocam/gcode"
import "github.com/kennylevinsen/gocam/vector"
import "errors"
import "fmt"
import "strings"

var ErrInvalidArc = errors.New("invalid arc")

// LayerComment prefixes the comment the exporters write at the start of each
// layer, so that imports recover the layering.
const LayerComment = "layer "

func (vm *Machine) modal(stmt gcode.Block, group string) *gcode.Word {
	w, err := stmt.GetModalGroup(group)
	if err != nil {
		panic(err)
	}
	return w
}

func (vm *Machine) run(stmt gcode.Block) {
	for _, n := range stmt.Nodes {
		if c, ok := n.(*gcode.Comment); ok && strings.HasPrefix(c.Content, LayerComment) {
			vm.NewLayer(strings.TrimPrefix(c.Content, LayerComment), vm.State.SpindleSpeed)
		}
	}

	if w := vm.modal(stmt, gcode.UnitsGroup); w != nil {
		vm.Imperial = w.Command == 20
	}
	if w := vm.modal(stmt, gcode.DistanceGroup); w != nil {
		vm.AbsoluteMove = w.Command == 90
	}
	if w := vm.modal(stmt, gcode.ArcDistanceGroup); w != nil {
		vm.AbsoluteArc = w.Command == 90.1
	}
	if w := vm.modal(stmt, gcode.PlaneGroup); w != nil && w.Command != 17 {
		panic("Only arcs in the XY plane are supported")
	}
	if w := vm.modal(stmt, gcode.CutterCompGroup); w != nil && w.Command != 40 {
		panic("Cutter compensation not supported")
	}
	if w := vm.modal(stmt, gcode.FeedRateModeGroup); w != nil && w.Command != 94 {
		panic("Only units per minute feed mode is supported")
	}
	vm.modal(stmt, gcode.CoordSystemGroup)
	vm.modal(stmt, gcode.StoppingGroup)

	if f, err := stmt.GetWord('F'); err == nil {
		vm.State.Feedrate = vm.scale(f)
	}
	if s, err := stmt.GetWord('S'); err == nil {
		vm.State.SpindleSpeed = s
	}
	if t, err := stmt.GetWord('T'); err == nil {
		vm.pendT = int(t)
	}
	if w := vm.modal(stmt, gcode.ToolChangeGroup); w != nil {
		vm.State.Tool = vm.pendT
		if l := vm.current(); !l.Empty() {
			vm.NewLayer(l.Op, vm.State.SpindleSpeed)
		}
	}
	if w := vm.modal(stmt, gcode.SpindleGroup); w != nil && w.Command == 5 {
		vm.State.SpindleSpeed = 0
	}

	if w := vm.modal(stmt, gcode.MotionGroup); w != nil {
		switch w.Command {
		case 0:
			vm.State.MoveMode = MoveModeRapid
		case 1:
			vm.State.MoveMode = MoveModeLinear
		case 2:
			vm.State.MoveMode = MoveModeCWArc
		case 3:
			vm.State.MoveMode = MoveModeCCWArc
		case 80:
			vm.State.MoveMode = MoveModeNone
		}
	}

	if w := vm.modal(stmt, gcode.NonModalGroup); w != nil {
		switch w.Command {
		case 4:
			// Dwell, no motion
			return
		case 92:
			// Renames the current position. Only the rotary axis is rewound
			// this way by the planner.
			if a, err := stmt.GetWord('A'); err == nil {
				vm.pos.A, vm.pos.HasA = a, true
			}
			return
		}
		panic(fmt.Sprintf("Unsupported non-modal code G%g", w.Command))
	}

	if !stmt.IncludesAddress('X', 'Y', 'Z', 'A') {
		return
	}

	x, y, z, a, i, j, hasA := vm.calcPos(stmt)
	pos := Position{State: vm.State, X: x, Y: y, Z: z, A: a, HasA: hasA}

	switch vm.State.MoveMode {
	case MoveModeRapid:
		pos.State.Feedrate = 0
	case MoveModeLinear:
	case MoveModeCWArc, MoveModeCCWArc:
		start, end := vm.pos.Vector(), pos.Vector()
		center := vector.Vector{X: i, Y: j, Z: start.Z}
		checkArc(start, end, center)
		pos.Center = &center
		pos.Preview = FlattenArc(start, end, center, vm.State.MoveMode == MoveModeCWArc,
			vm.MaxArcDeviation, vm.MinArcLineLength)
	default:
		panic("Move without move mode")
	}

	vm.Push(pos)
	vm.pos = pos
}

// Process runs a document through the VM, recording every move it makes.
func (vm *Machine) Process(doc *gcode.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = errors.New(fmt.Sprintf("%s", r))
			}
		}
	}()

	for _, b := range doc.Blocks {
		if b.BlockDelete {
			continue
		}
		vm.run(b)
	}
	return
}
