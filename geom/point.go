// Package geom holds the planar geometry the planner works on: points with an
// optional rotary angle, polygons with holes, and the few fits and walks the
// motion code needs.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kennylevinsen/gocam/vector"
)

// Point is a tool position. A is the rotary angle in degrees and only means
// something when HasA is set. Slice tags the slice the point came from.
type Point struct {
	X, Y, Z float64
	A       float64
	HasA    bool
	Slice   int
}

func Pt(x, y, z float64) Point {
	return Point{X: x, Y: y, Z: z}
}

func (p Point) WithZ(z float64) Point {
	p.Z = z
	return p
}

func (p Point) WithXY(x, y float64) Point {
	p.X, p.Y = x, y
	return p
}

func (p Point) WithA(a float64) Point {
	p.A = a
	p.HasA = true
	return p
}

func (p Point) Add(x, y, z float64) Point {
	p.X += x
	p.Y += y
	p.Z += z
	return p
}

func (p Point) Dist2D(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

func (p Point) Dist3D(o Point) float64 {
	return math.Sqrt((p.X-o.X)*(p.X-o.X) + (p.Y-o.Y)*(p.Y-o.Y) + (p.Z-o.Z)*(p.Z-o.Z))
}

func (p Point) Vec2() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func (p Point) Vector() vector.Vector {
	return vector.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

func (p Point) IsNaN() bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) || math.IsNaN(p.A)
}

// SameAngle reports whether two points share a rotary angle. A missing angle
// matches anything.
func (p Point) SameAngle(o Point) bool {
	if !p.HasA || !o.HasA {
		return true
	}
	return math.Abs(p.A-o.A) < 1e-6
}

// Lerp returns the point t of the way from a to b, angle included.
func Lerp(a, b Point, t float64) Point {
	out := a
	out.X = a.X + (b.X-a.X)*t
	out.Y = a.Y + (b.Y-a.Y)*t
	out.Z = a.Z + (b.Z-a.Z)*t
	if a.HasA && b.HasA {
		out.A = a.A + (b.A-a.A)*t
	}
	return out
}

// LerpAngle returns the angles between from and to in steps of at most step
// degrees, to inclusive and from exclusive.
func LerpAngle(from, to, step float64) []float64 {
	n := int(math.Ceil(math.Abs(to-from) / step))
	if n < 1 {
		return nil
	}
	out := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, from+(to-from)*float64(i)/float64(n))
	}
	return out
}
