// Package route orders disconnected cut regions to keep travel short. The
// routing is greedy nearest-endpoint, not an optimal tour.
package route

import (
	"math"

	"github.com/kennylevinsen/gocam/geom"
)

// Level is one Z layer of a region: its outer polygons, holes attached as
// Inner.
type Level []*geom.Polygon

// Emitter cuts what the router hands it.
type Emitter interface {
	// Position is where the tool currently is.
	Position() geom.Point
	Emit(poly *geom.Polygon, index, count int) geom.Point
	NewLayer()
}

// Router holds the routing state of one planning call. Marks are kept apart
// per kind: consumed regions, consumed tops of a depth-first descent and
// polygons consumed by the greedy runs.
type Router struct {
	RegionMarks Marks
	Levels      Marks
	Polys       Marks

	// Options apply to the greedy runs inside LayerFirst, DepthFirst and
	// Regions.
	Options Options
}

func New() *Router {
	return &Router{}
}

// Reset clears every mark so that the same input can be routed again.
func (r *Router) Reset() {
	r.RegionMarks.Reset()
	r.Levels.Reset()
	r.Polys.Reset()
}

// LayerFirst cuts every polygon of a level before going on to the next.
func (r *Router) LayerFirst(levels []Level, e Emitter) geom.Point {
	pos := e.Position()
	for _, level := range levels {
		var polys []*geom.Polygon
		for _, p := range level {
			polys = append(polys, p.Flatten()...)
		}
		pos = r.PolyToPoly(polys, pos, e.Emit, r.Options)
		e.NewLayer()
	}
	return pos
}

// Levels of a vertical wall repeat their parent's outline, so nesting
// allows a little slack on the boundary.
const nestTolerance = 0.05

type frame struct {
	depth  int
	parent *geom.Polygon
}

// DepthFirst descends through all levels below a top before moving on to its
// neighbours. Holes are cut right after their outer polygon. Open fragments,
// left behind by tabs, come after the closed polygons of the same level.
func (r *Router) DepthFirst(levels []Level, e Emitter) geom.Point {
	pos := e.Position()
	stack := []frame{{depth: 0}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		top := r.nextTop(levels, f, pos)
		if top == nil {
			stack = stack[:len(stack)-1]
			continue
		}

		r.Levels.Mark(top)
		pos = r.PolyToPoly(top.Flatten(), pos, e.Emit, r.Options)
		stack = append(stack, frame{depth: f.depth + 1, parent: top})
	}
	return pos
}

// Picks the unmarked top of the frame's level that lies inside the frame's
// parent and is nearest to pos. Closed tops win over open ones.
func (r *Router) nextTop(levels []Level, f frame, pos geom.Point) *geom.Polygon {
	if f.depth >= len(levels) {
		return nil
	}

	var closed, open *geom.Polygon
	bestClosed, bestOpen := math.Inf(1), math.Inf(1)
	for _, p := range levels[f.depth] {
		if p.Len() == 0 || r.Levels.Used(p) {
			continue
		}
		if f.parent != nil && !p.Within(f.parent, nestTolerance) {
			continue
		}
		_, d := p.Closest(pos)
		if p.Open {
			if d < bestOpen {
				open, bestOpen = p, d
			}
		} else if d < bestClosed {
			closed, bestClosed = p, d
		}
	}
	if closed != nil {
		return closed
	}
	return open
}

type regionKey int

// Regions routes whole regions, each a stack of levels, nearest first. A
// region's distance is taken to its first level's largest polygon.
func (r *Router) Regions(regions [][]Level, depthFirst bool, e Emitter) geom.Point {
	pos := e.Position()
	for {
		found := -1
		best := math.Inf(1)
		for i, region := range regions {
			if r.RegionMarks.Used(regionKey(i)) {
				continue
			}
			entry := largest(region)
			if entry == nil {
				r.RegionMarks.Mark(regionKey(i))
				continue
			}
			if _, d := entry.Closest(pos); d < best {
				found, best = i, d
			}
		}
		if found < 0 {
			return pos
		}

		r.RegionMarks.Mark(regionKey(found))
		if depthFirst {
			pos = r.DepthFirst(regions[found], e)
			e.NewLayer()
		} else {
			pos = r.LayerFirst(regions[found], e)
		}
	}
}

func largest(region []Level) *geom.Polygon {
	for _, level := range region {
		var out *geom.Polygon
		area := -1.0
		for _, p := range level {
			if a := math.Abs(p.Area()); p.Len() > 0 && a > area {
				out, area = p, a
			}
		}
		if out != nil {
			return out
		}
	}
	return nil
}
