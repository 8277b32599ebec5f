package plan

import (
	"fmt"
	"math"

	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/route"
	"github.com/kennylevinsen/gocam/vm"
)

func (p *Planner) prepare(op Op) error {
	switch o := op.(type) {
	case *Rough:
		p.rough(o)
	case *Pocket:
		p.pocket(o)
	case *Contour:
		p.contour(o)
	case *Trace:
		p.trace(o.Slices)
	case *Lathe:
		p.lathe(o)
	case *Index:
		p.index(o)
	case *Drill:
		p.drill(o.Holes, o.Down, o.Lift, o.Dwell)
	case *Register:
		if o.Axis == "-" {
			p.trace(o.Slices)
		} else {
			p.drill(o.Holes, o.Down, o.Lift, o.Dwell)
		}
	case *Shadow:
	case *LaserOn:
		p.addGCode(o.Enable...)
		p.ctx.Laser = o
	case *LaserOff:
		p.addGCode(o.Disable...)
		p.ctx.Laser = nil
		if last := p.state.Last; last != nil {
			p.rapid(last.WithZ(math.Max(last.Z, p.zSafe)))
		}
	case *GCode:
		p.addGCode(o.Lines...)
	default:
		return fmt.Errorf("unsupported operation %T", op)
	}
	return nil
}

// Outer polygons are wound in the cut direction, holes the other way.
func wind(slices []Slice, clockwise bool) []route.Level {
	levels := make([]route.Level, 0, len(slices))
	for _, s := range slices {
		var level route.Level
		for _, top := range s.Lines {
			w := top.WithWinding(clockwise).Clone()
			w.Inner = w.Inner[:0]
			for _, in := range top.Inner {
				w.Inner = append(w.Inner, in.WithWinding(!clockwise))
			}
			level = append(level, w)
		}
		levels = append(levels, level)
	}
	return levels
}

// With innerFirst, small polygons are preferred over nearer large ones.
func (p *Planner) router() *route.Router {
	r := route.New()
	r.Options.Weight = p.settings.Process.InnerFirst
	return r
}

func (p *Planner) depthFirst() bool {
	return p.settings.Process.DepthFirst && !p.settings.Stock.Indexed
}

func (p *Planner) rough(op *Rough) {
	r := p.router()

	// Facing passes engage half the tool.
	for _, face := range wind(op.Faces, op.Clockwise) {
		var polys []*geom.Polygon
		for _, top := range face {
			polys = append(polys, top.Flatten()...)
		}
		r.PolyToPoly(polys, p.Position(), p.emitAt(0.5), r.Options)
		p.newLayer()
	}

	levels := wind(op.Slices, op.Clockwise)
	if p.depthFirst() {
		r.DepthFirst(levels, p)
	} else {
		r.LayerFirst(levels, p)
	}
}

func (p *Planner) pocket(op *Pocket) {
	if op.Contour {
		p.setTolerance(op.Tolerance, 0)
	}
	var regions [][]route.Level
	for _, pocket := range op.Pockets {
		if len(pocket) == 0 {
			continue
		}
		regions = append(regions, wind(pocket, op.Clockwise))
	}
	p.router().Regions(regions, p.depthFirst(), p)
}

func (p *Planner) contour(op *Contour) {
	p.setTolerance(op.Tolerance, op.Step)
	r := route.New()
	for _, s := range op.Slices {
		r.TipToTip(s.Lines, p.Position(), func(poly *geom.Polygon, index, count int) geom.Point {
			return p.PolyEmit(poly, index, 1)
		})
		if !p.depthFirst() {
			p.newLayer()
		}
	}
	p.newLayer()
}

func (p *Planner) trace(slices []Slice) {
	r := p.router()
	for _, s := range slices {
		r.PolyToPoly(s.Lines, p.Position(), p.emitAt(1), r.Options)
		p.newLayer()
	}
}

// Lathe paths are cut point by point. Points that barely change Z are held
// back and only the last of a run is cut.
func (p *Planner) lathe(op *Lathe) {
	opt := &OutOptions{MoveLen: p.ctx.Tool.Diameter() * op.Step * 2}
	for _, s := range op.Slices {
		var last *geom.Point
		for _, path := range s.Lines {
			var latent *geom.Point
			for i, pt := range path.Points {
				pt := pt
				if last != nil && math.Abs(last.Z-pt.Z) < op.Resolution {
					latent = &pt
					continue
				}
				if latent != nil {
					p.CamOut(*latent, vm.MoveModeLinear, opt)
					latent = nil
				}
				mode := vm.MoveModeLinear
				if i == 0 {
					mode = vm.MoveModeRapid
				}
				p.CamOut(pt, mode, opt)
				last = &pt
			}
			if latent != nil {
				p.CamOut(*latent, vm.MoveModeLinear, opt)
			}
		}
		p.newLayer()
	}

	// Lift and unwind the rotary axis so the next op starts from zero.
	if last := p.state.Last; last != nil {
		amax := math.Round(last.A/360) * 360
		p.addGCode(
			fmt.Sprintf("G0 Z%g", math.Round(p.zSafe*100)/100),
			fmt.Sprintf("G0 A%g", amax),
			"G92 A0",
		)
		up := last.WithZ(math.Max(last.Z, p.zSafe))
		up.A = 0
		p.state.Last = &up
		p.angle = 0
	}
}

// Index lifts clear of the rotating stock and turns the axis.
func (p *Planner) index(op *Index) {
	deg := op.Degrees
	if !op.Absolute {
		deg += p.angle
	}
	p.angle = deg

	last := p.state.Last
	if last == nil {
		return
	}
	zmove := math.Max(p.rotaryClear, p.zSafe)
	up := last.WithZ(zmove)
	p.CamOut(p.coords.Remove(up), vm.MoveModeRapid, nil)
	turn := up.WithXY(up.X, 0).WithA(deg)
	p.CamOut(p.coords.Remove(turn), vm.MoveModeRapid, nil)
}

// Drills the holes nearest first.
func (p *Planner) drill(holes []*geom.Polygon, down, lift, dwell float64) {
	todo := append([]*geom.Polygon(nil), holes...)
	for {
		pos := p.Position()
		found := -1
		best := math.Inf(1)
		for i, h := range todo {
			if h == nil || h.Len() == 0 {
				continue
			}
			if d := h.First().Dist2D(pos); d < best {
				found, best = i, d
			}
		}
		if found < 0 {
			return
		}
		hole := todo[found]
		todo[found] = nil
		p.drillHole(hole, down, lift, dwell)
	}
}

// Pecks are split so the last two are never shorter than half a peck.
func pecks(top geom.Point, depth, down float64) []geom.Point {
	if down <= 0 || down >= depth {
		return []geom.Point{top, top.WithZ(top.Z - depth)}
	}
	remain := depth
	pt := top
	var out []geom.Point
	for {
		switch {
		case remain > down*2:
			out = append(out, pt)
			pt.Z -= down
			remain -= down
			continue
		case remain < down:
			out = append(out, pt)
			pt.Z -= remain
			out = append(out, pt)
		default:
			out = append(out, pt)
			pt.Z -= remain / 2
			out = append(out, pt)
			pt.Z -= remain / 2
			out = append(out, pt)
		}
		return out
	}
}

func (p *Planner) drillHole(hole *geom.Polygon, down, lift, dwell float64) {
	top, bottom := hole.First(), hole.Last()
	points := pecks(top, top.Z-bottom.Z, down)
	above := p.coords.Remove(p.coords.Apply(top).WithZ(p.zSafe))

	p.CamOut(above, vm.MoveModeRapid, nil)
	for i, pt := range points {
		p.CamOut(pt, vm.MoveModeLinear, nil)
		if i > 0 && i < len(points)-1 {
			if dwell > 0 {
				p.addGCode(fmt.Sprintf("G4 P%g", dwell))
			}
			if lift > 0 {
				p.CamOut(pt.WithZ(pt.Z+lift), vm.MoveModeRapid, nil)
			}
		}
	}
	p.CamOut(above, vm.MoveModeRapid, nil)
	p.newLayer()
}
