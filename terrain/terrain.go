// Package terrain answers travel-height questions against a precomputed stack
// of top-down solid areas.
package terrain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kennylevinsen/gocam/geom"
)

var ErrEmpty = errors.New("terrain stack is empty")

// Entry is the union of all solid area at or above Z.
type Entry struct {
	Z    float64
	Tops []*geom.Polygon
}

// Stack is ordered top to bottom and is never modified while planning.
type Stack []Entry

func (s Stack) Validate() error {
	if len(s) == 0 {
		return ErrEmpty
	}
	for i := 1; i < len(s); i++ {
		if s[i].Z > s[i-1].Z {
			return fmt.Errorf("terrain entry %d at z=%g above entry %d at z=%g", i, s[i].Z, i-1, s[i-1].Z)
		}
	}
	return nil
}

// Top is the highest terrain level.
func (s Stack) Top() float64 {
	if len(s) == 0 {
		return math.Inf(-1)
	}
	return s[0].Z
}

// Clearance returns the lowest Z at which the tool can travel straight from
// p1 to p2 without hitting any terrain. Every entry at or above currentZ, and
// the first one below it, is tested with three segments: the centerline and
// two copies shifted by toolRadius to either side. Each hit lifts the answer
// to the entry's Z plus zBias and overTravel. Without a hit the answer is
// currentZ.
func (s Stack) Clearance(p1, p2 geom.Point, currentZ, zBias, toolRadius, overTravel float64) float64 {
	last := len(s) - 1
	for i, e := range s {
		if e.Z+zBias < currentZ {
			last = i
			break
		}
	}

	segs := corridor(p1.Vec2(), p2.Vec2(), toolRadius)
	z := currentZ
	for i := last; i >= 0; i-- {
		if hits(s[i].Tops, segs) {
			z = math.Max(z, s[i].Z+zBias+overTravel)
		}
	}
	return z
}

func corridor(a, b r2.Vec, radius float64) [][2]r2.Vec {
	segs := [][2]r2.Vec{{a, b}}
	d := r2.Sub(b, a)
	if radius <= 0 || r2.Norm(d) == 0 {
		return segs
	}
	n := r2.Scale(radius, r2.Unit(r2.Vec{X: -d.Y, Y: d.X}))
	return append(segs,
		[2]r2.Vec{r2.Add(a, n), r2.Add(b, n)},
		[2]r2.Vec{r2.Sub(a, n), r2.Sub(b, n)},
	)
}

func hits(tops []*geom.Polygon, segs [][2]r2.Vec) bool {
	for _, poly := range tops {
		for _, p := range poly.Flatten() {
			for _, seg := range segs {
				if p.Intersects(seg[0], seg[1]) {
					return true
				}
			}
		}
	}
	return false
}
