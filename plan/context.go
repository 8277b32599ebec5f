package plan

import (
	"math"

	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/tool"
)

// State is what one planning call hands to the next: the last point emitted,
// in machine coordinates, and the operation that emitted it. Widgets planned
// in sequence share one State so the combined output stays continuous.
type State struct {
	Last     *geom.Point
	LastOp   Op
	LastSafe float64 // safe Z of LastOp
}

// Context is the motion context of the running operation.
type Context struct {
	Op   Op
	Kind Kind

	Tool     tool.Tool
	toolID   int
	haveTool bool

	Feed    float64
	Plunge  float64
	Spindle float64

	Clockwise bool

	// Tolerance is nonzero only while contouring.
	Tolerance     float64
	MoveThreshold float64

	Rough, Pocket, Contour, Lathe, Index bool

	Laser *LaserOn
}

// begin resets the per-operation flags for op.
func (c *Context) begin(op Op) {
	c.Op = op
	c.Kind = op.Kind()
	c.Tolerance = 0
	c.Rough = c.Kind == KindRough
	c.Pocket = c.Kind == KindPocket
	c.Lathe = c.Kind == KindLathe
	c.Index = c.Kind == KindIndex
	c.Contour = c.Kind == KindContour
	if p, ok := op.(*Pocket); ok && p.Contour {
		c.Contour = true
	}
}

// setTool switches tool and rates. A zero feed keeps the previous one, and
// the plunge rate never exceeds the feed.
func (c *Context) setTool(id int, t tool.Tool, feed, plunge float64) {
	if !c.haveTool || id != c.toolID {
		c.Tool = t
		c.toolID = id
		c.haveTool = true
		c.MoveThreshold = t.MoveThreshold(c.Tolerance)
	}

	switch {
	case feed > 0:
		c.Feed = feed
	case c.Feed == 0:
		c.Feed = plunge
	}

	base := c.Feed
	if base == 0 {
		base = plunge
	}
	p := plunge
	if p == 0 {
		p = c.Plunge
	}
	if p == 0 {
		p = c.Feed
	}
	c.Plunge = math.Min(base, p)
}

// setTolerance enters or leaves contouring. Contour steps shorter than 1.5
// stepovers are cut rather than lifted over.
func (c *Context) setTolerance(d, step float64) {
	c.Tolerance = d
	c.MoveThreshold = c.Tool.MoveThreshold(d)
	if c.Contour && step > 0 {
		c.MoveThreshold = step * c.Tool.Diameter() * 1.5
	}
}

func (c *Context) setSpindle(speed, max float64) {
	if max > 0 {
		speed = math.Min(speed, max)
	}
	c.Spindle = speed
}

// toolNumber is the number written to tool changes.
func (c *Context) toolNumber() int {
	if !c.haveTool {
		return -1
	}
	if c.Tool.Number != 0 {
		return c.Tool.Number
	}
	return c.toolID
}

// power is the laser power of a cut at z. ok is false when the cut falls
// outside an adaptive band and is dropped.
func (l *LaserOn) power(z, top float64) (float64, bool) {
	if !l.Adapt {
		return l.Power, true
	}
	maxz := l.MaxZ
	if maxz == 0 {
		maxz = top
	}
	band := maxz - l.MinZ
	if band <= 0 {
		return l.MaxPower, true
	}
	if l.Wrap {
		for z > maxz {
			z -= band
		}
		for z < l.MinZ {
			z += band
		}
	} else if z < l.MinZ || z > maxz {
		return 0, false
	}
	z -= l.MinZ
	if l.MinPower < l.MaxPower {
		return l.MinPower + (z/band)*(l.MaxPower-l.MinPower), true
	}
	return l.MinPower - (z/band)*(l.MinPower-l.MaxPower), true
}
