package plan

import (
	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/route"
	"github.com/kennylevinsen/gocam/vm"
)

var _ route.Emitter = (*Planner)(nil)

// Emit cuts poly starting at index. count is the polygon's place in the
// current routing run; the first polygon of a roughing or pocketing run
// engages the full tool and is slowed down.
func (p *Planner) Emit(poly *geom.Polygon, index, count int) geom.Point {
	factor := 1.0
	if (p.ctx.Rough || p.ctx.Pocket) && count == 1 {
		factor = p.settings.Process.FullEngage
	}
	return p.PolyEmit(poly, index, factor)
}

func (p *Planner) emitAt(factor float64) route.EmitFunc {
	return func(poly *geom.Polygon, index, count int) geom.Point {
		return p.PolyEmit(poly, index, factor)
	}
}

// PolyEmit cuts a polygon from index, travelling to it first. Closed
// polygons are cut all the way back round to where they started, and with
// ease-down enabled they are ramped into along their own boundary.
func (p *Planner) PolyEmit(poly *geom.Polygon, index int, factor float64) geom.Point {
	if poly.Len() == 0 {
		return p.Position()
	}
	opt := &OutOptions{Factor: factor}
	proc := p.settings.Process

	if proc.EaseDown && poly.IsClosed() && !p.ctx.Contour && p.state.Last != nil {
		p.nextIsMove = true
		p.CamOut(poly.Points[index], vm.MoveModeRapid, &OutOptions{MoveOnly: true})

		ramp, touch := geom.EaseDown(poly, p.Position(), proc.EaseAngle)
		if len(ramp) > 0 {
			p.nextIsMove = true
			p.CamOut(ramp[0], vm.MoveModeRapid, opt)

			ease := &OutOptions{Feed: p.easeFeed(proc.EaseAngle)}
			p.openArc()
			for _, pt := range ramp[1:] {
				p.CamOut(pt, vm.MoveModeLinear, ease)
			}
		}
		index = touch
	}

	pts := poly.Rotate(index).Points
	if poly.IsClosed() && !p.ctx.Contour {
		pts = append(pts, pts[0])
	}
	for i, pt := range pts {
		if i == 0 && p.arcing {
			// Already there from the ramp.
			continue
		}
		mode := vm.MoveModeLinear
		if i == 0 {
			mode = vm.MoveModeRapid
		}
		p.CamOut(pt, mode, opt)
		if i == 0 {
			p.openArc()
		}
	}
	p.closeArc()
	p.newLayer()
	return p.Position()
}

// Ramps run between plunge and feed depending on how steep they are.
func (p *Planner) easeFeed(angle float64) float64 {
	plunge, feed := p.ctx.Plunge, p.ctx.Feed
	return plunge + (feed-plunge)*(90-angle)/180
}
