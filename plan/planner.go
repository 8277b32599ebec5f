// Package plan turns per-operation cut geometry into a stream of machine
// moves. Planning one widget is strictly sequential; a Planner must not be
// shared between goroutines.
package plan

import (
	"errors"
	"fmt"
	"math"

	"github.com/kennylevinsen/gocam/arcs"
	"github.com/kennylevinsen/gocam/config"
	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/terrain"
	"github.com/kennylevinsen/gocam/tool"
	"github.com/kennylevinsen/gocam/vector"
	"github.com/kennylevinsen/gocam/vm"
)

var (
	ErrIndexWithoutStock = errors.New("index operation requires indexed stock")
	ErrNoOps             = errors.New("widget has no operations")
)

// Widget is one part placed on the stock. Offset moves widget geometry into
// machine space: X and Y place it on the stock, Z is the bias that lifts it to
// where it sits in the stock. Terrain is in widget coordinates.
type Widget struct {
	Name    string
	Offset  geom.Point
	Terrain terrain.Stack
	Ops     []Op
}

// OutOptions are the optional arguments of CamOut.
type OutOptions struct {
	// Factor scales the feed. Zero means 1.
	Factor float64
	// Feed replaces the operation's feed when nonzero.
	Feed float64
	// Center of an arc, in widget coordinates.
	Center *geom.Point
	// MoveOnly runs the travel rules but leaves out the move itself.
	MoveOnly bool
	// MoveLen replaces the short-move threshold when nonzero.
	MoveLen float64
}

type Planner struct {
	settings *config.Settings
	tools    *tool.Table
	widget   *Widget
	state    *State
	out      *vm.Machine
	fit      *arcs.Fitter
	coords   vm.CoordinateSystem
	ctx      Context

	stockZ        float64
	zClear        float64
	zSafe         float64
	rotaryClear   float64
	maxToolRadius float64
	angle         float64 // rotary axis position set by Index ops

	nextIsMove bool
	arcing     bool
}

// NewPlanner checks a widget against the settings and prepares to plan it
// into out. Nothing is recorded until Plan is called, so planners for a run of
// widgets sharing st can all be built, and checked, up front.
func NewPlanner(s *config.Settings, tools *tool.Table, w *Widget, st *State, out *vm.Machine) (*Planner, error) {
	if len(w.Ops) == 0 {
		return nil, fmt.Errorf("%s: %w", w.Name, ErrNoOps)
	}
	if err := w.Terrain.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", w.Name, err)
	}
	for _, op := range w.Ops {
		if op.Kind() == KindIndex && !s.Stock.Indexed {
			return nil, fmt.Errorf("%s: %w", w.Name, ErrIndexWithoutStock)
		}
		if c, ok := cutter(op); ok {
			if _, err := tools.Lookup(c.Tool); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", w.Name, op.Kind(), err)
			}
		}
	}

	p := &Planner{
		settings:      s,
		tools:         tools,
		widget:        w,
		state:         st,
		out:           out,
		stockZ:        s.StockZ(),
		zClear:        s.Process.ZClearance,
		maxToolRadius: tools.MaxDiameter() / 2,
	}
	p.zSafe = p.stockZ + p.zClear
	if s.Stock.Indexed {
		p.zSafe = math.Hypot(s.Stock.Y, s.Stock.Z)/2 + p.zClear
	}
	p.rotaryClear = math.Max(s.Stock.Y, s.Stock.Z)*math.Sqrt2/2 + p.zClear
	p.coords.SetOffset(w.Offset.X, w.Offset.Y, w.Offset.Z)

	p.fit = arcs.New(func(pos vm.Position) {
		p.out.Push(pos)
	})
	p.fit.Tolerance = s.Process.ArcTolerance
	p.fit.Resolution = s.Process.ArcResolution
	p.fit.ZTolerance = s.Process.ArcZTolerance
	p.fit.MaxDeviation = s.Process.MaxArcDeviation
	p.fit.MinLineLength = s.Process.MinArcLineLength
	return p, nil
}

// Plan emits every operation of the widget in order.
func (p *Planner) Plan() error {
	if last := p.state.Last; last != nil && last.HasA {
		p.angle = last.A
	}
	for _, op := range p.widget.Ops {
		if err := p.Begin(op); err != nil {
			return err
		}
		if err := p.prepare(op); err != nil {
			return fmt.Errorf("%s: %s: %w", p.widget.Name, op.Kind(), err)
		}
		p.End()
	}
	p.fit.Flush()
	p.out.FinalizeAbove(p.stockZ + p.zClear)
	return nil
}

// Begin makes op the active operation.
func (p *Planner) Begin(op Op) error {
	p.ctx.begin(op)
	p.nextIsMove = true
	p.arcing = false

	if c, ok := cutter(op); ok {
		feed, plunge := c.Feed, c.Plunge
		if op.Kind() == KindDrill {
			feed, plunge = 0, math.Max(c.Plunge, c.Feed)
		}
		if err := p.setTool(c.Tool, feed, plunge); err != nil {
			return err
		}
		p.ctx.setSpindle(c.Spindle, p.settings.Device.SpindleMax)
	}
	p.newLayer()
	return nil
}

// End closes the active operation, lifting clear of the stock unless the
// operation was an index.
func (p *Planner) End() {
	last := p.state.Last
	if last == nil {
		return
	}
	p.newLayer()
	if !p.ctx.Index {
		p.rapid(last.WithZ(math.Max(last.Z, p.stockZ+p.zClear)))
		p.newLayer()
	}
}

func (p *Planner) setTool(id int, feed, plunge float64) error {
	t, err := p.tools.Lookup(id)
	if err != nil {
		return err
	}
	p.ctx.setTool(id, t, feed, plunge)
	p.fit.MaxRadius = t.ArcRadiusCap()
	if m := p.settings.Process.ArcMaxRadius; m > 0 {
		p.fit.MaxRadius = m
	}
	return nil
}

func (p *Planner) setTolerance(d, step float64) {
	p.ctx.setTolerance(d, step)
}

// Context exposes the motion context of the active operation.
func (p *Planner) Context() *Context {
	return &p.ctx
}

// safeZ is the travel height of the active operation.
func (p *Planner) safeZ() float64 {
	if p.ctx.Index {
		return math.Max(p.zSafe, p.rotaryClear)
	}
	return p.zSafe
}

func (p *Planner) newLayer() {
	p.fit.Flush()
	name := ""
	if p.ctx.Op != nil {
		name = p.ctx.Kind.String()
	}
	p.out.NewLayer(name, p.ctx.Spindle)
}

// NewLayer starts a new output layer for the active operation.
func (p *Planner) NewLayer() {
	p.newLayer()
}

func (p *Planner) addGCode(lines ...string) {
	if len(lines) == 0 {
		return
	}
	p.fit.Flush()
	p.out.AddGCode(p.ctx.Kind.String(), lines...)
}

func (p *Planner) openArc() {
	p.arcing = true
}

func (p *Planner) closeArc() {
	p.fit.Flush()
	p.arcing = false
}

func (p *Planner) fitting() bool {
	return p.settings.Process.ArcEnabled && p.arcing && !p.ctx.Contour
}

// Records pos, bypassing and flushing the arc window.
func (p *Planner) push(pos vm.Position) {
	p.fit.Flush()
	p.out.Push(pos)
	p.fit.Anchor(pos)
	pt := pos.Point()
	p.state.Last = &pt
}

func (p *Planner) moveState(mode int, rate float64) vm.State {
	s := vm.State{
		MoveMode:     mode,
		Feedrate:     rate,
		SpindleSpeed: p.ctx.Spindle,
		Tool:         p.ctx.toolNumber(),
		NextTool:     -1,
	}
	if mode == vm.MoveModeRapid {
		s.Feedrate = 0
	}
	if p.ctx.Laser != nil && mode == vm.MoveModeRapid {
		s.SpindleSpeed = 0
	}
	return s
}

// Records a rapid to pt, in machine coordinates.
func (p *Planner) rapid(pt geom.Point) {
	if p.state.Last != nil && !pt.HasA && p.state.Last.HasA {
		pt = pt.WithA(p.state.Last.A)
	}
	p.push(vm.PositionAt(pt, p.moveState(vm.MoveModeRapid, 0)))
}

// clearance asks the terrain for a travel height between two machine points.
func (p *Planner) clearance(a, b geom.Point, z float64) float64 {
	wa, wb := p.coords.Remove(a), p.coords.Remove(b)
	return p.widget.Terrain.Clearance(wa, wb, z, p.widget.Offset.Z, p.maxToolRadius, p.zClear)
}

// Position is where the tool is, in widget coordinates. Before the first move
// it is above the widget origin at the safe height.
func (p *Planner) Position() geom.Point {
	if p.state.Last == nil {
		return p.coords.Remove(geom.Pt(p.widget.Offset.X, p.widget.Offset.Y, p.zSafe))
	}
	return p.coords.Remove(*p.state.Last)
}

// CamOut moves the tool to pt, given in widget coordinates, as a rapid, cut
// or arc. It decides how to get there safely: retracting across operation
// boundaries, lifting over terrain, and slowing down for plunges. Calls that
// would not move the tool are dropped.
func (p *Planner) CamOut(pt geom.Point, mode int, opt *OutOptions) {
	if opt == nil {
		opt = &OutOptions{}
	}
	pt = p.coords.Apply(pt)
	st := p.state
	ctx := &p.ctx

	if p.nextIsMove {
		mode = vm.MoveModeRapid
		p.nextIsMove = false
	}
	isArc := mode == vm.MoveModeCWArc || mode == vm.MoveModeCCWArc

	factor := opt.Factor
	if factor == 0 {
		factor = 1
	}
	feed := ctx.Feed
	if opt.Feed > 0 {
		feed = opt.Feed
	}
	rate := feed * factor

	moveLen := ctx.MoveThreshold
	if opt.MoveLen > 0 {
		moveLen = opt.MoveLen
	}
	tol := ctx.Tolerance
	laser := ctx.Laser

	if laser != nil && laser.Flat {
		pt.Z = p.settings.Stock.Z + laser.FlatZ
	}

	// Rotation carries forward unless set.
	if st.Last != nil && !pt.HasA && st.Last.HasA {
		pt = pt.WithA(st.Last.A)
	}

	// Never bridge two operations with a direct move.
	if st.Last != nil && st.LastOp != nil && st.LastOp != ctx.Op {
		safe := p.safeZ()
		z := math.Max(st.LastSafe, safe)
		last := *st.Last
		p.rapid(last.WithZ(z))
		across := pt.WithZ(z)
		across.A, across.HasA = last.A, last.HasA
		p.push(vm.PositionAt(across, p.moveState(vm.MoveModeRapid, 0)))
		p.push(vm.PositionAt(pt.WithZ(math.Max(safe, pt.Z)), p.moveState(vm.MoveModeRapid, 0)))
	}
	st.LastOp, st.LastSafe = ctx.Op, p.safeZ()

	// Sweep the rotary axis in small steps so the path can be simulated.
	if st.Last != nil && st.Last.HasA && pt.HasA && !st.Last.SameAngle(pt) {
		mz := math.Max(st.Last.Z, pt.Z)
		if math.Abs(pt.A-st.Last.A)/360*2*math.Pi*mz > 1 {
			lerp := mode
			if isArc {
				lerp = vm.MoveModeLinear
			}
			for _, a := range geom.LerpAngle(st.Last.A, pt.A, 1) {
				p.push(vm.PositionAt(pt.WithA(a), p.moveState(lerp, rate)))
			}
		}
	}

	if st.Last == nil {
		p.rapid(pt.WithZ(p.stockZ + p.zClear))
	}
	last := *st.Last

	// A rapid that would end inside the stock travels above it, stops just
	// over the surface and cuts the rest.
	if mode == vm.MoveModeRapid && last.Z > p.stockZ && pt.Z < p.stockZ {
		clear := math.Max(last.Z, p.clearance(last, pt, last.Z))
		if clear > last.Z {
			p.rapid(last.WithZ(clear))
		}
		p.rapid(pt.WithZ(clear))
		p.rapid(pt.WithZ(p.stockZ + 1))
		mode = vm.MoveModeLinear
		last = *st.Last
	}

	deltaXY := last.Dist2D(pt)
	deltaZ := pt.Z - last.Z
	absDeltaZ := math.Abs(deltaZ)

	if !ctx.Lathe && !isArc && deltaXY < 0.001 && absDeltaZ < 0.001 &&
		last.HasA == pt.HasA && last.SameAngle(pt) {
		return
	}

	if mode == vm.MoveModeRapid {
		switch {
		case ctx.Lathe:
			if pt.Z > last.Z {
				p.rapid(last.WithZ(pt.Z))
			} else if pt.Z < last.Z {
				p.rapid(pt.WithZ(last.Z))
			}

		case !ctx.Rough && !ctx.Index && deltaXY <= moveLen && deltaZ <= 0 && laser == nil:
			if absDeltaZ < 0.001 || (tol > 0 && absDeltaZ <= tol) {
				mode = vm.MoveModeLinear
			} else if deltaZ <= -tol {
				// Move over before descending.
				p.rapid(pt.WithZ(last.Z))
			}

		default:
			bigXY := deltaXY > moveLen && laser == nil
			bigZ := deltaZ > ctx.Tool.Radius() && deltaXY > tol
			midZ := tol > 0 && absDeltaZ >= tol && !ctx.Contour

			if bigXY || bigZ || midZ {
				maxz := p.clearance(last, pt, math.Max(pt.Z, last.Z))
				mustGoUp := math.Max(maxz-pt.Z, maxz-last.Z) >= tol
				below := pt.Z <= maxz
				if p.settings.Process.ForceZMax {
					maxz = math.Max(p.safeZ(), math.Max(pt.Z, last.Z))
					below = true
				}
				if mustGoUp || below {
					if below && last.Z < maxz {
						p.rapid(last.WithZ(maxz))
					}
					p.rapid(pt.WithZ(maxz))
					if pt.Z < p.stockZ {
						if maxz > p.stockZ+1 {
							p.rapid(pt.WithZ(p.stockZ + 1))
						}
						mode = vm.MoveModeLinear
					}
				}
			} else if ctx.Rough && deltaZ < 0 {
				p.rapid(pt.WithZ(last.Z))
			}
		}
	}

	if opt.MoveOnly {
		return
	}

	// Plunges are capped to the plunge rate.
	if dz := pt.Z - st.Last.Z; laser == nil && !ctx.Lathe && dz < -tol && ctx.Plunge > 0 {
		rate = math.Min(rate, ctx.Plunge)
	}

	state := p.moveState(mode, rate)
	if laser != nil && mode != vm.MoveModeRapid {
		power, ok := laser.power(pt.Z, p.stockZ)
		if !ok {
			return
		}
		state.SpindleSpeed = power
	}
	pos := vm.PositionAt(pt, state)

	switch {
	case isArc && opt.Center != nil:
		c := p.coords.Apply(*opt.Center)
		center := vector.Vector{X: c.X, Y: c.Y, Z: st.Last.Z}
		pos.Center = &center
		pos.Preview = vm.FlattenArc(st.Last.Vector(), pos.Vector(), center, mode == vm.MoveModeCWArc,
			p.settings.Process.MaxArcDeviation, p.settings.Process.MinArcLineLength)
		p.push(pos)
	case mode == vm.MoveModeLinear && p.fitting():
		p.fit.Add(pos)
		st.Last = &pt
	default:
		if isArc {
			pos.State.MoveMode = vm.MoveModeLinear
		}
		p.push(pos)
	}
}
