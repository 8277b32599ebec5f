// Package export turns recorded machine layers back into G-code.
package export

import (
	"fmt"
	"math"

	"github.com/kennylevinsen/gocam/gcode"
	"github.com/kennylevinsen/gocam/vm"
)

type CodeGenerator interface {
	GetPosition() vm.Position
	SetPosition(vm.Position)
	Layer(string)
	Raw(string) error
	Toolchange(int)
	PrepareTool(int)
	Spindle(float64)
	Move(vm.Position) bool
	Init()
	Flush()
}

// BaseGenerator tracks what the controller was last told and writes the
// words that changed. Concrete generators decide where blocks go.
type BaseGenerator struct {
	Position vm.Position

	put       func(gcode.Block)
	feed      float64
	spindleOn bool
}

func word(address rune, command float64) *gcode.Word {
	return &gcode.Word{Address: address, Command: command}
}

func (s *BaseGenerator) GetPosition() vm.Position {
	return s.Position
}

func (s *BaseGenerator) SetPosition(pos vm.Position) {
	s.Position = pos
}

// Unknown coordinates, so the first move spells out every axis.
func (s *BaseGenerator) Init() {
	nan := math.NaN()
	s.Position = vm.Position{
		State: vm.State{Tool: -1, NextTool: -1},
		X:     nan, Y: nan, Z: nan,
	}
	s.feed = 0
	s.spindleOn = false
}

// Stops the spindle if anything started it.
func (s *BaseGenerator) Flush() {
	if s.spindleOn {
		s.put(gcode.Block{Nodes: []gcode.Node{word('M', 5)}})
		s.spindleOn = false
	}
}

// Marks the start of a layer (layer <op>).
func (s *BaseGenerator) Layer(op string) {
	s.put(gcode.Block{Nodes: []gcode.Node{&gcode.Comment{Content: vm.LayerComment + op}}})
}

// Passes injected G-code through. Spindle and rotary rewinds are tracked so
// later moves are written against what the controller actually has.
func (s *BaseGenerator) Raw(line string) error {
	doc, err := gcode.Parse(line)
	if err != nil {
		return fmt.Errorf("injected g-code %q: %w", line, err)
	}
	for _, b := range doc.Blocks {
		if len(b.Nodes) == 0 {
			continue
		}
		if w, err := b.GetModalGroup(gcode.SpindleGroup); err == nil && w != nil {
			s.spindleOn = w.Command != 5
			if !s.spindleOn {
				s.Position.State.SpindleSpeed = 0
			}
		}
		if w, err := b.GetModalGroup(gcode.MotionGroup); err == nil && w != nil {
			switch w.Command {
			case 0:
				s.Position.State.MoveMode = vm.MoveModeRapid
			case 1:
				s.Position.State.MoveMode = vm.MoveModeLinear
			}
		}
		if a, err := b.GetWord('A'); err == nil {
			s.Position.A, s.Position.HasA = a, true
		}
		s.put(b)
	}
	return nil
}

// Adds a toolchange operation (M6 Tn). The spindle is expected to stop.
func (s *BaseGenerator) Toolchange(t int) {
	s.put(gcode.Block{Nodes: []gcode.Node{word('M', 6), word('T', float64(t))}})
	s.spindleOn = false
	s.Position.State.SpindleSpeed = 0
}

// Preselects the next tool (Tn) so the changer can fetch it early.
func (s *BaseGenerator) PrepareTool(t int) {
	s.put(gcode.Block{Nodes: []gcode.Node{word('T', float64(t))}})
}

// Adds a spindle operation (M3 Sn, or just Sn while it is running).
func (s *BaseGenerator) Spindle(speed float64) {
	var b gcode.Block
	if !s.spindleOn && speed > 0 {
		b.AppendNode(word('M', 3))
		s.spindleOn = true
	}
	b.AppendNode(word('S', speed))
	s.put(b)
}

// Issues a move ([G0/G1/G2/G3] [Xn] [Yn] [Zn] [An] [In Jn] [Fn]). Arc
// centers are written relative to the start point. A move that goes nowhere
// writes nothing and reports false.
func (s *BaseGenerator) Move(pos vm.Position) bool {
	cur := s.Position
	mode := pos.State.MoveMode

	var b gcode.Block
	switch mode {
	case vm.MoveModeNone:
		return false
	case vm.MoveModeRapid:
		if cur.State.MoveMode != mode {
			b.AppendNode(word('G', 0))
		}
	case vm.MoveModeLinear:
		if cur.State.MoveMode != mode {
			b.AppendNode(word('G', 1))
		}
	case vm.MoveModeCWArc:
		b.AppendNode(word('G', 2))
	case vm.MoveModeCCWArc:
		b.AppendNode(word('G', 3))
	default:
		panic("Unknown move mode")
	}
	motion := len(b.Nodes)

	if cur.X != pos.X {
		b.AppendNode(word('X', pos.X))
	}
	if cur.Y != pos.Y {
		b.AppendNode(word('Y', pos.Y))
	}
	if cur.Z != pos.Z {
		b.AppendNode(word('Z', pos.Z))
	}
	if pos.HasA && (!cur.HasA || cur.A != pos.A) {
		b.AppendNode(word('A', pos.A))
	}
	if pos.IsArc() {
		if pos.Center == nil {
			panic("Arc without center")
		}
		b.AppendNode(word('I', pos.Center.X-cur.X))
		b.AppendNode(word('J', pos.Center.Y-cur.Y))
	}
	if len(b.Nodes) == motion {
		return false
	}
	if mode != vm.MoveModeRapid && pos.State.Feedrate != s.feed {
		b.AppendNode(word('F', pos.State.Feedrate))
		s.feed = pos.State.Feedrate
	}
	s.put(b)
	return true
}

func HandlePosition(s CodeGenerator, pos vm.Position) {
	cs := s.GetPosition().State
	ns := pos.State

	if ns.Tool != cs.Tool && ns.Tool >= 0 {
		s.Toolchange(ns.Tool)
		cs = s.GetPosition().State
	}

	if ns.NextTool != cs.NextTool && ns.NextTool >= 0 && ns.NextTool != ns.Tool {
		s.PrepareTool(ns.NextTool)
	}

	if ns.SpindleSpeed != cs.SpindleSpeed {
		s.Spindle(ns.SpindleSpeed)
	}

	if !s.Move(pos) {
		pos.State.MoveMode = cs.MoveMode
	}
	s.SetPosition(pos)
}

// Generate writes every layer of m through s: a layer comment, the layer's
// injected G-code, then its moves.
func Generate(s CodeGenerator, m *vm.Machine) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	s.Init()
	for _, l := range m.Output() {
		s.Layer(l.Op)
		for _, line := range l.GCode {
			if err := s.Raw(line); err != nil {
				return fmt.Errorf("layer %s: %w", l.Op, err)
			}
		}
		for _, pos := range l.Positions {
			HandlePosition(s, pos)
		}
	}
	s.Flush()
	return nil
}

// Export renders m for the named dialect, string or grbl.
func Export(m *vm.Machine, dialect string) (*gcode.Document, error) {
	var doc gcode.Document
	var s CodeGenerator
	switch dialect {
	case "", "string":
		s = &StringCodeGenerator{Document: &doc}
	case "grbl":
		s = &GrblGenerator{Write: doc.AppendBlock}
	default:
		return nil, fmt.Errorf("unknown dialect %q", dialect)
	}
	if err := Generate(s, m); err != nil {
		return nil, err
	}
	return &doc, nil
}
