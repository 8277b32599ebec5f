package plan

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kennylevinsen/gocam/config"
	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/terrain"
	"github.com/kennylevinsen/gocam/tool"
	"github.com/kennylevinsen/gocam/vm"
)

func settings() *config.Settings {
	return &config.Settings{
		Device: config.Device{SpindleMax: 24000, Dialect: "string", Precision: 4},
		Process: config.Process{
			ZClearance:       1,
			ArcTolerance:     0.01,
			ArcResolution:    15,
			ArcZTolerance:    0.01,
			EaseAngle:        10,
			FullEngage:       0.8,
			MaxArcDeviation:  0.002,
			MinArcLineLength: 0.01,
		},
		Stock: config.Stock{X: 100, Y: 100, Z: 10},
		Tools: []tool.Tool{
			{ID: 1, Type: tool.Endmill, Metric: true, FluteDiameter: 6},
			{ID: 2, Number: 7, Type: tool.Endmill, Metric: true, FluteDiameter: 3},
		},
	}
}

func indexed() *config.Settings {
	s := settings()
	s.Stock = config.Stock{X: 100, Y: 20, Z: 20, Indexed: true}
	return s
}

func rect(x0, y0, x1, y1 float64) *geom.Polygon {
	return geom.NewPolygon(
		geom.Pt(x0, y0, 0),
		geom.Pt(x1, y0, 0),
		geom.Pt(x1, y1, 0),
		geom.Pt(x0, y1, 0),
	)
}

func square(x, y, size, z float64) *geom.Polygon {
	return geom.NewPolygon(
		geom.Pt(x, y, z),
		geom.Pt(x+size, y, z),
		geom.Pt(x+size, y+size, z),
		geom.Pt(x, y+size, z),
	)
}

func line(x0, y0, x1, y1, z float64) *geom.Polygon {
	return geom.NewOpenPolygon(geom.Pt(x0, y0, z), geom.Pt(x1, y1, z))
}

// stockTop covers everything outside the test area, so it never lifts travel.
var stockTop = terrain.Stack{{Z: 10, Tops: []*geom.Polygon{rect(-500, -500, 500, 500)}}}

var mill = Cutter{Tool: 1, Feed: 100, Plunge: 50}

func newPlanner(t *testing.T, s *config.Settings, w *Widget, st *State) (*Planner, *vm.Machine) {
	t.Helper()
	tools, err := s.ToolTable()
	require.NoError(t, err)
	var m vm.Machine
	m.Init(s.Process.MaxArcDeviation, s.Process.MinArcLineLength)
	if st == nil {
		st = &State{}
	}
	p, err := NewPlanner(s, tools, w, st, &m)
	require.NoError(t, err)
	return p, &m
}

func run(t *testing.T, s *config.Settings, w *Widget, st *State) *vm.Machine {
	t.Helper()
	p, m := newPlanner(t, s, w, st)
	require.NoError(t, p.Plan())
	return m
}

type rec struct {
	Mode    int
	X, Y, Z float64
}

func R(x, y, z float64) rec { return rec{vm.MoveModeRapid, x, y, z} }
func L(x, y, z float64) rec { return rec{vm.MoveModeLinear, x, y, z} }

func records(m *vm.Machine) []rec {
	var out []rec
	for _, p := range m.Positions() {
		out = append(out, rec{p.State.MoveMode, p.X, p.Y, p.Z})
	}
	return out
}

func assertRecords(t *testing.T, want []rec, m *vm.Machine) {
	t.Helper()
	if diff := cmp.Diff(want, records(m), cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

// assertSafeRapids checks that no rapid with XY travel passes through
// terrain above its height, tool radius included.
func assertSafeRapids(t *testing.T, m *vm.Machine, stack terrain.Stack, radius float64) {
	t.Helper()
	pos := m.Positions()
	for i := 1; i < len(pos); i++ {
		a, b := pos[i-1], pos[i]
		if b.State.MoveMode != vm.MoveModeRapid || a.Point().Dist2D(b.Point()) < 1e-6 {
			continue
		}
		z := math.Min(a.Z, b.Z)
		got := stack.Clearance(a.Point(), b.Point(), z, 0, radius, 0)
		assert.LessOrEqual(t, got, z+1e-9, "rapid %d from %v to %v", i, a.Point(), b.Point())
	}
}

func gcodeLines(m *vm.Machine) []string {
	var out []string
	for _, l := range m.Output() {
		out = append(out, l.GCode...)
	}
	return out
}

func TestNewPlannerErrors(t *testing.T) {
	trace := &Trace{Cutter: mill}
	tests := []struct {
		name string
		s    *config.Settings
		w    *Widget
		err  error
	}{
		{"no ops", settings(), &Widget{Name: "w", Terrain: stockTop}, ErrNoOps},
		{"no terrain", settings(), &Widget{Name: "w", Ops: []Op{trace}}, terrain.ErrEmpty},
		{"index on flat stock", settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{&Index{Degrees: 90}}}, ErrIndexWithoutStock},
		{"unknown tool", settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{&Trace{Cutter: Cutter{Tool: 99}}}}, tool.ErrUnknownTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools, err := tt.s.ToolTable()
			require.NoError(t, err)
			var m vm.Machine
			m.Init(0.002, 0.01)
			_, err = NewPlanner(tt.s, tools, tt.w, &State{}, &m)
			require.ErrorIs(t, err, tt.err)
			assert.Empty(t, m.Positions())
		})
	}
}

func TestTerrainDetour(t *testing.T) {
	tests := []struct {
		name  string
		stack terrain.Stack
		want  []rec
	}{
		{
			// Stock 10, tool 6: the block at z=5 is already below the start.
			name:  "already clear",
			stack: terrain.Stack{{Z: 5, Tops: []*geom.Polygon{rect(20, -10, 30, 10)}}},
			want:  []rec{R(50, 0, 12), R(50, 0, 11), L(50, 0, 1)},
		},
		{
			name:  "lift over",
			stack: terrain.Stack{{Z: 15, Tops: []*geom.Polygon{rect(20, -10, 30, 10)}}},
			want:  []rec{R(0, 0, 16), R(50, 0, 16), R(50, 0, 11), L(50, 0, 1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &Trace{Cutter: mill}
			w := &Widget{Name: "w", Terrain: tt.stack, Ops: []Op{op}}
			start := geom.Pt(0, 0, 12)
			p, m := newPlanner(t, settings(), w, &State{Last: &start})

			require.NoError(t, p.Begin(op))
			p.CamOut(geom.Pt(50, 0, 1), vm.MoveModeRapid, nil)

			assertRecords(t, tt.want, m)
			assertSafeRapids(t, m, tt.stack, 3)

			// Nothing below the terrain happens away from the destination.
			for _, pos := range m.Positions() {
				if pos.Z < tt.stack[0].Z+1 {
					assert.InDelta(t, 50, pos.X, 1e-9)
					assert.InDelta(t, 0, pos.Y, 1e-9)
				}
			}
			last, _ := m.Last()
			assert.Equal(t, 50.0, last.State.Feedrate, "plunge runs at the plunge rate")
		})
	}
}

func TestDuplicateDropped(t *testing.T) {
	op := &Trace{Cutter: mill}
	w := &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}
	start := geom.Pt(0, 0, 9)
	p, m := newPlanner(t, settings(), w, &State{Last: &start})
	require.NoError(t, p.Begin(op))

	p.CamOut(geom.Pt(0, 0, 9), vm.MoveModeRapid, nil)
	assert.Empty(t, m.Positions())

	p.CamOut(geom.Pt(5, 0, 9), vm.MoveModeLinear, nil)
	p.CamOut(geom.Pt(5, 0, 9), vm.MoveModeLinear, nil)
	assertRecords(t, []rec{L(5, 0, 9)}, m)
}

func TestOperationBoundary(t *testing.T) {
	w := &Widget{
		Name:    "w",
		Terrain: stockTop,
		Ops: []Op{
			&Trace{Cutter: mill, Slices: []Slice{{Z: 9, Lines: []*geom.Polygon{line(0, 0, 10, 0, 9)}}}},
			&Trace{Cutter: Cutter{Tool: 2, Feed: 80}, Slices: []Slice{{Z: 9, Lines: []*geom.Polygon{line(40, 0, 50, 0, 9)}}}},
		},
	}
	st := &State{}
	m := run(t, settings(), w, st)

	pos := m.Positions()
	from, to := -1, -1
	for i, p := range pos {
		if p.State.MoveMode != vm.MoveModeLinear {
			continue
		}
		switch p.State.Tool {
		case 1:
			from = i
		case 7:
			if to < 0 {
				to = i
			}
		}
	}
	require.GreaterOrEqual(t, from, 0)
	require.Greater(t, to, from+1)

	for i := from + 1; i < to; i++ {
		a, b := pos[i-1], pos[i]
		if a.Point().Dist2D(b.Point()) < 1e-6 {
			continue
		}
		assert.GreaterOrEqual(t, a.Z, 11.0, "record %d moves sideways below the safe height", i)
		assert.GreaterOrEqual(t, b.Z, 11.0, "record %d moves sideways below the safe height", i)
	}

	require.NotNil(t, st.Last)
	assert.Equal(t, 11.0, st.Last.Z)
	assert.Same(t, w.Ops[1], st.LastOp)
}

func TestStateCarriesAcrossWidgets(t *testing.T) {
	s := settings()
	st := &State{}
	a := &Widget{Name: "a", Terrain: stockTop, Ops: []Op{
		&Trace{Cutter: mill, Slices: []Slice{{Lines: []*geom.Polygon{line(0, 0, 10, 0, 9)}}}},
	}}
	b := &Widget{Name: "b", Offset: geom.Pt(30, 0, 0), Terrain: stockTop, Ops: []Op{
		&Trace{Cutter: mill, Slices: []Slice{{Lines: []*geom.Polygon{line(0, 0, 10, 0, 9)}}}},
	}}

	tools, err := s.ToolTable()
	require.NoError(t, err)
	var m vm.Machine
	m.Init(0.002, 0.01)
	for _, w := range []*Widget{a, b} {
		p, err := NewPlanner(s, tools, w, st, &m)
		require.NoError(t, err)
		require.NoError(t, p.Plan())
	}

	assertRecords(t, []rec{
		R(0, 0, 11), L(0, 0, 9), L(10, 0, 9), R(10, 0, 11),
		R(30, 0, 11), L(30, 0, 9), L(40, 0, 9), R(40, 0, 11),
	}, &m)
}

func TestContour(t *testing.T) {
	op := &Contour{
		Cutter:    mill,
		Tolerance: 0.1,
		Step:      0.5,
		Slices: []Slice{{Z: 5, Lines: []*geom.Polygon{
			line(0, 0, 10, 0, 5),
			line(10, 2, 0, 2, 5),
		}}},
	}
	m := run(t, settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, nil)

	// The 2mm step over is cut, not lifted over.
	assertRecords(t, []rec{
		R(0, 0, 11), L(0, 0, 5), L(10, 0, 5), L(10, 2, 5), L(0, 2, 5), R(0, 2, 11),
	}, m)
}

func TestPocketRegions(t *testing.T) {
	stack := terrain.Stack{{Z: 10, Tops: []*geom.Polygon{rect(-1, -1, 11, 11), rect(29, -1, 41, 11)}}}
	op := &Pocket{
		Cutter: mill,
		Pockets: [][]Slice{
			{{Z: 5, Lines: []*geom.Polygon{square(30, 0, 10, 5)}}},
			{{Z: 5, Lines: []*geom.Polygon{square(0, 0, 10, 5)}}},
		},
	}
	m := run(t, settings(), &Widget{Name: "w", Terrain: stack, Ops: []Op{op}}, nil)

	assertRecords(t, []rec{
		R(0, 0, 11), L(0, 0, 5), L(10, 0, 5), L(10, 10, 5), L(0, 10, 5), L(0, 0, 5),
		R(0, 0, 11), R(30, 0, 11), L(30, 0, 5), L(40, 0, 5), L(40, 10, 5), L(30, 10, 5), L(30, 0, 5),
		R(30, 0, 11),
	}, m)
	assertSafeRapids(t, m, stack, 3)

	// The first polygon of each region engages the full tool.
	for _, p := range m.Positions() {
		if p.State.MoveMode == vm.MoveModeLinear && p.Z == 5 && p.State.Feedrate > 50 {
			assert.Equal(t, 80.0, p.State.Feedrate)
		}
	}
}

func TestRoughFaces(t *testing.T) {
	op := &Rough{
		Cutter: mill,
		Faces:  []Slice{{Z: 10, Lines: []*geom.Polygon{square(0, 0, 10, 10)}}},
		Slices: []Slice{{Z: 8, Lines: []*geom.Polygon{square(0, 0, 10, 8)}}},
	}
	m := run(t, settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, nil)

	var faces, slices int
	for i, p := range m.Positions() {
		if p.State.MoveMode != vm.MoveModeLinear || i == 0 {
			continue
		}
		switch p.Z {
		case 10:
			faces++
			assert.Equal(t, 50.0, p.State.Feedrate)
		case 8:
			slices++
			assert.Equal(t, 80.0, p.State.Feedrate)
		}
	}
	assert.Equal(t, 4, faces)
	assert.Equal(t, 4, slices)
}

func TestWindings(t *testing.T) {
	outer := square(0, 0, 10, 0)
	outer.Inner = []*geom.Polygon{square(2, 2, 2, 0)}

	levels := wind([]Slice{{Lines: []*geom.Polygon{outer}}}, true)
	require.Len(t, levels, 1)
	require.Len(t, levels[0], 1)
	got := levels[0][0]
	assert.True(t, got.IsClockwise())
	require.Len(t, got.Inner, 1)
	assert.False(t, got.Inner[0].IsClockwise())

	assert.False(t, outer.IsClockwise(), "input is left alone")
	assert.Len(t, outer.Inner, 1)
}

func TestEaseDown(t *testing.T) {
	s := settings()
	s.Process.EaseDown = true
	op := &Rough{Cutter: mill, Slices: []Slice{{Z: 5, Lines: []*geom.Polygon{square(0, 0, 20, 5)}}}}
	start := geom.Pt(0, 0, 11)
	m := run(t, s, &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, &State{Last: &start})

	pos := m.Positions()
	var ramped bool
	for i := 1; i < len(pos); i++ {
		a, b := pos[i-1], pos[i]
		if b.State.MoveMode != vm.MoveModeLinear {
			continue
		}
		if b.Z > 5 && b.Z < 11 {
			ramped = true
		}
		if b.Z < a.Z {
			assert.Greater(t, a.Point().Dist2D(b.Point()), 1e-6, "record %d plunges straight down", i)
		}
	}
	assert.True(t, ramped)

	// The whole loop is still cut at depth.
	var corners int
	for _, p := range pos {
		if p.State.MoveMode == vm.MoveModeLinear && p.Z == 5 {
			corners++
		}
	}
	assert.GreaterOrEqual(t, corners, 5)
}

func circle(cx, cy, r, z float64, steps int) *geom.Polygon {
	var pts []geom.Point
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		pts = append(pts, geom.Pt(cx+r*math.Cos(a), cy+r*math.Sin(a), z))
	}
	return geom.NewPolygon(pts...)
}

func TestArcs(t *testing.T) {
	s := settings()
	s.Process.ArcEnabled = true
	op := &Trace{Cutter: mill, Slices: []Slice{{Z: 9, Lines: []*geom.Polygon{circle(50, 50, 10, 9, 36)}}}}
	m := run(t, s, &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, nil)

	var arcs, cuts int
	for _, p := range m.Positions() {
		switch {
		case p.IsArc():
			arcs++
			assert.Equal(t, vm.MoveModeCCWArc, p.State.MoveMode)
			require.NotNil(t, p.Center)
			assert.InDelta(t, 50, p.Center.X, 0.01)
			assert.InDelta(t, 50, p.Center.Y, 0.01)
			assert.InDelta(t, 9, p.Z, 1e-9)
			assert.NotEmpty(t, p.Preview)
		case p.State.MoveMode == vm.MoveModeLinear:
			cuts++
		}
	}
	assert.Equal(t, 1, arcs)
	assert.Equal(t, 1, cuts, "only the plunge stays a cut")
}

func TestArcsOffWhileContouring(t *testing.T) {
	s := settings()
	s.Process.ArcEnabled = true
	c := circle(50, 50, 10, 9, 36)
	c.Open = true
	op := &Contour{Cutter: mill, Tolerance: 0.1, Slices: []Slice{{Lines: []*geom.Polygon{c}}}}
	m := run(t, s, &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, nil)

	for _, p := range m.Positions() {
		assert.False(t, p.IsArc())
	}
}

func TestDrill(t *testing.T) {
	op := &Drill{
		Cutter: mill,
		Down:   2,
		Lift:   1,
		Dwell:  0.5,
		Holes:  []*geom.Polygon{geom.NewOpenPolygon(geom.Pt(5, 5, 10), geom.Pt(5, 5, 5))},
	}
	m := run(t, settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, nil)

	assertRecords(t, []rec{
		R(5, 5, 11), L(5, 5, 10), L(5, 5, 8), R(5, 5, 9), L(5, 5, 6.5), R(5, 5, 7.5), L(5, 5, 5), R(5, 5, 11),
	}, m)
	assert.Equal(t, []string{"G4 P0.5", "G4 P0.5"}, gcodeLines(m))
}

func TestDrillNearestFirst(t *testing.T) {
	hole := func(x float64) *geom.Polygon {
		return geom.NewOpenPolygon(geom.Pt(x, 0, 10), geom.Pt(x, 0, 8))
	}
	op := &Drill{Cutter: mill, Holes: []*geom.Polygon{hole(30), hole(10), hole(20)}}
	m := run(t, settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, nil)

	var xs []float64
	for _, p := range m.Positions() {
		if p.State.MoveMode == vm.MoveModeLinear && p.Z == 8 {
			xs = append(xs, p.X)
		}
	}
	assert.Equal(t, []float64{10, 20, 30}, xs)
}

func TestPecks(t *testing.T) {
	z := func(pts []geom.Point) []float64 {
		var out []float64
		for _, p := range pts {
			out = append(out, p.Z)
		}
		return out
	}
	assert.Equal(t, []float64{10, 5}, z(pecks(geom.Pt(0, 0, 10), 5, 0)))
	assert.Equal(t, []float64{10, 8, 6.5, 5}, z(pecks(geom.Pt(0, 0, 10), 5, 2)))
	assert.Equal(t, []float64{10, 8, 6, 4, 2}, z(pecks(geom.Pt(0, 0, 10), 8, 2)))
}

func TestRegister(t *testing.T) {
	traced := &Register{Cutter: mill, Axis: "-", Slices: []Slice{{Lines: []*geom.Polygon{line(0, 0, 10, 0, 9)}}}}
	m := run(t, settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{traced}}, nil)
	assertRecords(t, []rec{R(0, 0, 11), L(0, 0, 9), L(10, 0, 9), R(10, 0, 11)}, m)

	drilled := &Register{Cutter: mill, Axis: "X", Holes: []*geom.Polygon{geom.NewOpenPolygon(geom.Pt(5, 5, 10), geom.Pt(5, 5, 9))}}
	m = run(t, settings(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{drilled}}, nil)
	assertRecords(t, []rec{R(5, 5, 11), L(5, 5, 10), L(5, 5, 9), R(5, 5, 11)}, m)
}

func TestIndex(t *testing.T) {
	s := indexed()
	stack := terrain.Stack{{Z: 10, Tops: []*geom.Polygon{rect(-500, -500, 500, 500)}}}
	w := &Widget{Name: "w", Terrain: stack, Ops: []Op{
		&Trace{Cutter: mill, Slices: []Slice{{Lines: []*geom.Polygon{line(0, 0, 10, 0, 9)}}}},
		&Index{Degrees: 45},
		&Index{Degrees: 45},
		&Trace{Cutter: mill, Slices: []Slice{{Lines: []*geom.Polygon{line(20, 0, 30, 0, 9)}}}},
	}}
	st := &State{}
	m := run(t, s, w, st)

	safe := math.Hypot(20, 20)/2 + 1
	pos := m.Positions()
	var rotated bool
	for i := 1; i < len(pos); i++ {
		a, b := pos[i-1], pos[i]
		if rotated {
			assert.True(t, b.HasA, "record %d lost the rotary axis", i)
		}
		if b.HasA && (!a.HasA || a.A != b.A) {
			rotated = true
			assert.GreaterOrEqual(t, a.Z, safe-1e-9)
			assert.GreaterOrEqual(t, b.Z, safe-1e-9)
			assert.Equal(t, vm.MoveModeRapid, b.State.MoveMode)
		}
	}
	require.True(t, rotated)

	// The second turn is swept in single degrees.
	var between int
	for i := 1; i < len(pos); i++ {
		a, b := pos[i-1], pos[i]
		if a.HasA && b.HasA {
			assert.LessOrEqual(t, math.Abs(b.A-a.A), 1+1e-9, "record %d turns too far", i)
		}
		if b.A > 45 && b.A < 90 {
			between++
		}
	}
	assert.Equal(t, 44, between)

	require.NotNil(t, st.Last)
	assert.Equal(t, 90.0, st.Last.A)
	last := pos[len(pos)-1]
	assert.Equal(t, 90.0, last.A)
}

func TestLathe(t *testing.T) {
	op := &Lathe{
		Cutter:     mill,
		Step:       0.5,
		Resolution: 0.1,
		Slices: []Slice{{Lines: []*geom.Polygon{geom.NewOpenPolygon(
			geom.Pt(0, 0, 8),
			geom.Pt(1, 0, 8.05),
			geom.Pt(2, 0, 8.08),
			geom.Pt(3, 0, 7),
		)}}},
	}
	safe := math.Hypot(20, 20)/2 + 1
	m := run(t, indexed(), &Widget{Name: "w", Terrain: stockTop, Ops: []Op{op}}, nil)

	assertRecords(t, []rec{
		R(0, 0, 11), L(0, 0, 8), L(2, 0, 8.08), L(3, 0, 7), R(3, 0, safe),
	}, m)
	assert.Equal(t, []string{"G0 Z15.14", "G0 A0", "G92 A0"}, gcodeLines(m))
}

func TestLaser(t *testing.T) {
	w := &Widget{Name: "w", Terrain: stockTop, Ops: []Op{
		&LaserOn{Enable: []string{"M4"}, Power: 300},
		&Trace{Cutter: Cutter{Tool: 1, Feed: 100}, Slices: []Slice{{Lines: []*geom.Polygon{
			line(0, 0, 10, 0, 9),
			line(20, 0, 30, 0, 9),
		}}}},
		&LaserOff{Disable: []string{"M5"}},
	}}
	m := run(t, settings(), w, nil)

	var cuts int
	for _, p := range m.Positions() {
		switch p.State.MoveMode {
		case vm.MoveModeLinear:
			cuts++
			assert.Equal(t, 300.0, p.State.SpindleSpeed)
		case vm.MoveModeRapid:
			assert.Zero(t, p.State.SpindleSpeed)
		}
	}
	assert.Equal(t, 3, cuts)
	assert.Equal(t, []string{"M4", "M5"}, gcodeLines(m))
}

func TestLaserPower(t *testing.T) {
	flat := &LaserOn{Power: 42}
	pw, ok := flat.power(3, 10)
	assert.True(t, ok)
	assert.Equal(t, 42.0, pw)

	band := &LaserOn{Adapt: true, MinZ: 0, MaxZ: 10, MinPower: 100, MaxPower: 200}
	pw, ok = band.power(5, 10)
	assert.True(t, ok)
	assert.InDelta(t, 150, pw, 1e-9)

	_, ok = band.power(-1, 10)
	assert.False(t, ok)

	band.Wrap = true
	pw, ok = band.power(12, 10)
	assert.True(t, ok)
	assert.InDelta(t, 120, pw, 1e-9)

	inverted := &LaserOn{Adapt: true, MinZ: 0, MaxZ: 10, MinPower: 200, MaxPower: 100}
	pw, _ = inverted.power(2.5, 10)
	assert.InDelta(t, 175, pw, 1e-9)
}

func TestGCodeAndShadow(t *testing.T) {
	w := &Widget{Name: "w", Terrain: stockTop, Ops: []Op{
		&Shadow{},
		&GCode{Lines: []string{"M8", "(coolant)"}},
	}}
	m := run(t, settings(), w, nil)
	assert.Empty(t, m.Positions())
	assert.Equal(t, []string{"M8", "(coolant)"}, gcodeLines(m))
}

func TestKinds(t *testing.T) {
	for k := KindRough; k <= KindGCode; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind("laser-on")
	require.NoError(t, err)
	assert.Equal(t, KindLaserOn, got)

	_, err = ParseKind("engrave")
	assert.Error(t, err)
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestContextFeeds(t *testing.T) {
	tl := tool.Tool{ID: 1, Type: tool.Endmill, Metric: true, FluteDiameter: 6}

	var c Context
	c.setTool(1, tl, 100, 0)
	assert.Equal(t, 100.0, c.Feed)
	assert.Equal(t, 100.0, c.Plunge)

	c.setTool(1, tl, 0, 40)
	assert.Equal(t, 100.0, c.Feed, "zero feed keeps the previous one")
	assert.Equal(t, 40.0, c.Plunge)

	c.setTool(1, tl, 30, 40)
	assert.Equal(t, 30.0, c.Plunge, "plunge never exceeds feed")

	c.begin(&Contour{})
	c.setTolerance(0.1, 0.5)
	assert.InDelta(t, 4.5, c.MoveThreshold, 1e-9)

	c.setSpindle(30000, 24000)
	assert.Equal(t, 24000.0, c.Spindle)
	assert.Equal(t, 1, c.toolNumber())
}

func TestInnerFirst(t *testing.T) {
	firstCut := func(s *config.Settings) geom.Point {
		start := geom.Pt(-10, -10, 12)
		w := &Widget{Name: "w", Terrain: stockTop, Ops: []Op{&Trace{
			Cutter: mill,
			Slices: []Slice{{Z: 9, Lines: []*geom.Polygon{square(0, 0, 40, 9), square(30, 30, 2, 9)}}},
		}}}
		m := run(t, s, w, &State{Last: &start})
		for _, p := range m.Positions() {
			if p.State.MoveMode == vm.MoveModeLinear {
				return p.Point()
			}
		}
		t.Fatal("nothing was cut")
		return geom.Point{}
	}

	assert.Equal(t, geom.Pt(0, 0, 9), firstCut(settings()))

	s := settings()
	s.Process.InnerFirst = true
	got := firstCut(s)
	assert.Equal(t, 30.0, got.X)
	assert.Equal(t, 30.0, got.Y)
}
