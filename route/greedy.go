package route

import (
	"math"

	"github.com/kennylevinsen/gocam/geom"
)

// EmitFunc receives a polygon to cut, the index to start it at and its
// 1-based position in the current run. It returns the position the tool is
// left at.
type EmitFunc func(poly *geom.Polygon, index, count int) geom.Point

// Options for PolyToPoly.
type Options struct {
	// Keep leaves the polygons marked after the run.
	Keep bool
	// SwapDir lets open polygons be cut from their far end.
	SwapDir bool
	// Weight scales distances by squared area, so small polygons go first.
	Weight bool
}

// TipToTip repeatedly emits the unmarked polygon with an endpoint nearest to
// the current position. A polygon that is nearest by its last point is
// handed over reversed. Ties go to the earlier polygon.
func (r *Router) TipToTip(polys []*geom.Polygon, start geom.Point, emit EmitFunc) geom.Point {
	pos := start
	for count := 1; ; count++ {
		found, rev := -1, false
		best := math.Inf(1)
		for i, p := range polys {
			if p.Len() == 0 || r.Polys.Used(p) {
				continue
			}
			if d := pos.Dist2D(p.First()); d < best {
				found, rev, best = i, false, d
			}
			if d := pos.Dist2D(p.Last()); d < best {
				found, rev, best = i, true, d
			}
		}
		if found < 0 {
			break
		}

		p := polys[found]
		r.Polys.Mark(p)
		if rev {
			p = p.Reversed()
		}
		pos = emit(p, 0, count)
	}

	for _, p := range polys {
		r.Polys.Unmark(p)
	}
	return pos
}

// PolyToPoly is TipToTip for closed polygons: the entry may be any vertex,
// and the emit callback receives the index of the nearest one. Open polygons
// enter at an endpoint.
func (r *Router) PolyToPoly(polys []*geom.Polygon, start geom.Point, emit EmitFunc, opt Options) geom.Point {
	pos := start
	for count := 1; ; count++ {
		found, index, rev := -1, 0, false
		best := math.Inf(1)

		for i, p := range polys {
			if p.Len() == 0 || r.Polys.Used(p) {
				continue
			}
			if p.Open {
				d2f := pos.Dist2D(p.First())
				d2l := pos.Dist2D(p.Last())
				if opt.SwapDir && d2l < best && d2l < d2f {
					found, index, rev, best = i, 0, true, d2l
				} else if d2f < best {
					found, index, rev, best = i, 0, false, d2f
				}
				continue
			}

			area := math.Abs(p.Area())
			for j, q := range p.Points {
				d := pos.Dist2D(q)
				if opt.Weight {
					d = pos.Dist3D(q) * area * area
				}
				if d < best {
					found, index, rev, best = i, j, false, d
				}
			}
		}
		if found < 0 {
			break
		}

		p := polys[found]
		r.Polys.Mark(p)
		if rev {
			p = p.Reversed()
		}
		pos = emit(p, index, count)
	}

	if !opt.Keep {
		for _, p := range polys {
			r.Polys.Unmark(p)
		}
	}
	return pos
}
