package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Polygon is an ordered run of points. Closed polygons do not repeat their
// first point. Inner holds holes, each carrying a nesting Depth.
//
// The planner treats polygons as immutable. Every transform returns a copy.
type Polygon struct {
	Points []Point
	Open   bool
	Inner  []*Polygon
	Depth  int
}

func NewPolygon(pts ...Point) *Polygon {
	return &Polygon{Points: pts}
}

func NewOpenPolygon(pts ...Point) *Polygon {
	return &Polygon{Points: pts, Open: true}
}

func (p *Polygon) Len() int {
	return len(p.Points)
}

func (p *Polygon) First() Point {
	return p.Points[0]
}

func (p *Polygon) Last() Point {
	return p.Points[len(p.Points)-1]
}

func (p *Polygon) IsClosed() bool {
	return !p.Open
}

func (p *Polygon) Clone() *Polygon {
	c := &Polygon{
		Points: append([]Point(nil), p.Points...),
		Open:   p.Open,
		Depth:  p.Depth,
	}
	for _, in := range p.Inner {
		c.Inner = append(c.Inner, in.Clone())
	}
	return c
}

func (p *Polygon) Reversed() *Polygon {
	c := p.Clone()
	for i, j := 0, len(c.Points)-1; i < j; i, j = i+1, j-1 {
		c.Points[i], c.Points[j] = c.Points[j], c.Points[i]
	}
	return c
}

// Area is the signed shoelace area. Counter-clockwise is positive.
func (p *Polygon) Area() float64 {
	var a float64
	n := len(p.Points)
	for i := 0; i < n; i++ {
		q, r := p.Points[i], p.Points[(i+1)%n]
		a += q.X*r.Y - r.X*q.Y
	}
	return a / 2
}

func (p *Polygon) IsClockwise() bool {
	return p.Area() < 0
}

// WithWinding returns p, or a reversed copy, so that it winds clockwise when
// cw is set. Open polygons keep their direction.
func (p *Polygon) WithWinding(cw bool) *Polygon {
	if p.Open || p.IsClockwise() == cw {
		return p
	}
	return p.Reversed()
}

// Rotate returns a copy of a closed polygon that starts at index i.
func (p *Polygon) Rotate(i int) *Polygon {
	c := p.Clone()
	n := len(p.Points)
	if n == 0 || p.Open {
		return c
	}
	i = ((i % n) + n) % n
	c.Points = append(append([]Point(nil), p.Points[i:]...), p.Points[:i]...)
	return c
}

// Closest finds the vertex nearest to pt in the XY plane.
func (p *Polygon) Closest(pt Point) (int, float64) {
	idx, best := -1, math.Inf(1)
	for i, q := range p.Points {
		if d := q.Dist2D(pt); d < best {
			idx, best = i, d
		}
	}
	return idx, best
}

func (p *Polygon) Perimeter() float64 {
	var l float64
	n := len(p.Points)
	for i := 1; i < n; i++ {
		l += p.Points[i-1].Dist2D(p.Points[i])
	}
	if !p.Open && n > 1 {
		l += p.Points[n-1].Dist2D(p.Points[0])
	}
	return l
}

func (p *Polygon) MinZ() float64 {
	z := math.Inf(1)
	for _, q := range p.Points {
		z = math.Min(z, q.Z)
	}
	return z
}

// Contains is an even-odd ray cast in XY.
func (p *Polygon) Contains(pt Point) bool {
	in := false
	n := len(p.Points)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Points[i], p.Points[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

// Within reports whether every point of p lies inside o or no further than
// tol from its outline.
func (p *Polygon) Within(o *Polygon, tol float64) bool {
	if len(p.Points) == 0 {
		return false
	}
	for _, q := range p.Points {
		if !o.Contains(q) && o.distance(q.Vec2()) > tol {
			return false
		}
	}
	return true
}

// distance from c to the nearest edge of p in XY.
func (p *Polygon) distance(c r2.Vec) float64 {
	n := len(p.Points)
	if n == 0 {
		return math.Inf(1)
	}
	edges := n
	if p.Open {
		edges = n - 1
	}
	best := r2.Norm(r2.Sub(c, p.Points[0].Vec2()))
	for i := 0; i < edges; i++ {
		best = math.Min(best, segmentDistance(c, p.Points[i].Vec2(), p.Points[(i+1)%n].Vec2()))
	}
	return best
}

func segmentDistance(c, a, b r2.Vec) float64 {
	d := r2.Sub(b, a)
	l := r2.Dot(d, d)
	if l == 0 {
		return r2.Norm(r2.Sub(c, a))
	}
	t := math.Max(0, math.Min(1, r2.Dot(r2.Sub(c, a), d)/l))
	return r2.Norm(r2.Sub(c, r2.Add(a, r2.Scale(t, d))))
}

// Intersects tests the segment a-b against every edge of p.
func (p *Polygon) Intersects(a, b r2.Vec) bool {
	n := len(p.Points)
	if n < 2 {
		return false
	}
	edges := n
	if p.Open {
		edges = n - 1
	}
	for i := 0; i < edges; i++ {
		q, r := p.Points[i].Vec2(), p.Points[(i+1)%n].Vec2()
		if SegmentsIntersect(a, b, q, r) {
			return true
		}
	}
	return false
}

// Flatten returns p followed by all of its holes, depth first.
func (p *Polygon) Flatten() []*Polygon {
	out := []*Polygon{p}
	for _, in := range p.Inner {
		out = append(out, in.Flatten()...)
	}
	return out
}

func (p *Polygon) HasNaN() bool {
	for _, q := range p.Points {
		if q.IsNaN() {
			return true
		}
	}
	for _, in := range p.Inner {
		if in.HasNaN() {
			return true
		}
	}
	return false
}

func orient(a, b, c r2.Vec) float64 {
	return r2.Cross(r2.Sub(b, a), r2.Sub(c, a))
}

func onSegment(a, b, c r2.Vec) bool {
	return math.Min(a.X, b.X) <= c.X && c.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= c.Y && c.Y <= math.Max(a.Y, b.Y)
}

// SegmentsIntersect reports whether p1-p2 and q1-q2 touch or cross.
func SegmentsIntersect(p1, p2, q1, q2 r2.Vec) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}
