package export

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennylevinsen/gocam/gcode"
	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/vector"
	"github.com/kennylevinsen/gocam/vm"
)

func at(x, y, z float64, mode int, feed, spindle float64, tool int) vm.Position {
	return vm.PositionAt(geom.Pt(x, y, z), vm.State{
		MoveMode:     mode,
		Feedrate:     feed,
		SpindleSpeed: spindle,
		Tool:         tool,
		NextTool:     -1,
	})
}

func machine() *vm.Machine {
	var m vm.Machine
	m.Init(0.01, 0.01)

	m.NewLayer("trace", 1000)
	m.Push(at(0, 0, 11, vm.MoveModeRapid, 0, 1000, 1))
	m.Push(at(0, 0, 9, vm.MoveModeLinear, 50, 1000, 1))
	m.Push(at(10, 0, 9, vm.MoveModeLinear, 100, 1000, 1))
	arc := at(0, 10, 9, vm.MoveModeCCWArc, 100, 1000, 1)
	arc.Center = &vector.Vector{X: 0, Y: 0, Z: 9}
	m.Push(arc)
	m.Push(at(0, 10, 11, vm.MoveModeRapid, 0, 1000, 1))

	m.AddGCode("gcode", "G4 P0.5")

	m.NewLayer("drill", 2000)
	m.Push(at(5, 5, 11, vm.MoveModeRapid, 0, 2000, 7))
	m.Push(at(5, 5, 8, vm.MoveModeLinear, 40, 2000, 7))
	m.Push(at(5, 5, 11, vm.MoveModeRapid, 0, 2000, 7))
	return &m
}

func TestStringGenerator(t *testing.T) {
	s := &StringCodeGenerator{Precision: 4}
	require.NoError(t, Generate(s, machine()))
	out := s.Retrieve()
	lines := strings.Split(strings.TrimSpace(out), "\n")

	assert.Equal(t, []string{"(Exported by gocam)", "G21G90", "(layer trace)", "M6T1", "M3S1000", "G0X0Y0Z11"}, lines[:6])
	assert.Contains(t, lines, "G1Z9F50")
	assert.Contains(t, lines, "X10F100")
	assert.Contains(t, lines, "G3X0Y10I-10J0")
	assert.Contains(t, lines, "G4P0.5")
	assert.Contains(t, lines, "M6T7")
	assert.Contains(t, lines, "M3S2000")
	assert.Equal(t, "M5", lines[len(lines)-1])
}

func TestRoundTrip(t *testing.T) {
	m := machine()
	doc, err := Export(m, "string")
	require.NoError(t, err)

	parsed, err := gcode.Parse(doc.Export(4))
	require.NoError(t, err)

	var back vm.Machine
	back.Init(0.01, 0.01)
	require.NoError(t, back.Process(parsed))

	opts := cmp.Options{
		cmpopts.EquateApprox(0, 1e-4),
		cmpopts.IgnoreFields(vm.Position{}, "Preview"),
		cmpopts.IgnoreFields(vm.State{}, "NextTool"),
	}
	if diff := cmp.Diff(m.Positions(), back.Positions(), opts); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	var ops []string
	for _, l := range back.Output() {
		ops = append(ops, l.Op)
	}
	assert.Equal(t, []string{"trace", "drill"}, ops)
	assert.NotEmpty(t, back.Positions()[3].Preview)
}

func TestGrblGenerator(t *testing.T) {
	doc, err := Export(machine(), "grbl")
	require.NoError(t, err)

	for _, b := range doc.Blocks {
		assert.False(t, b.IncludesOneOf(&gcode.Word{Address: 'M', Command: 6}), "tool change in %s", b.Export(4))
	}
	assert.Equal(t, "G21G90", doc.Blocks[0].Export(4))
}

func TestExportErrors(t *testing.T) {
	_, err := Export(machine(), "fanuc")
	assert.Error(t, err)

	m := machine()
	m.AddGCode("gcode", "G0 X1.2.3")
	_, err = Export(m, "string")
	assert.Error(t, err)
}

func TestRawTracksRewind(t *testing.T) {
	var m vm.Machine
	m.Init(0.01, 0.01)
	m.NewLayer("lathe", 1000)
	m.Push(vm.PositionAt(geom.Pt(0, 0, 5).WithA(720), vm.State{MoveMode: vm.MoveModeLinear, Feedrate: 100, SpindleSpeed: 1000, Tool: 1, NextTool: -1}))
	m.AddGCode("lathe", "G0 A720", "G92 A0")
	m.NewLayer("trace", 1000)
	m.Push(vm.PositionAt(geom.Pt(0, 0, 5).WithA(0), vm.State{MoveMode: vm.MoveModeRapid, SpindleSpeed: 1000, Tool: 1, NextTool: -1}))
	m.Push(vm.PositionAt(geom.Pt(1, 0, 5).WithA(0), vm.State{MoveMode: vm.MoveModeLinear, Feedrate: 100, SpindleSpeed: 1000, Tool: 1, NextTool: -1}))

	s := &StringCodeGenerator{Precision: 4}
	require.NoError(t, Generate(s, &m))
	out := s.Retrieve()
	assert.Contains(t, out, "G0A720\nG92A0\n(layer trace)\nG1X1\n")
}
