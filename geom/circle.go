package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CircleCenter returns the XY center and radius of the circle through a, b
// and c. ok is false for (nearly) collinear points.
func CircleCenter(a, b, c Point) (center Point, r float64, ok bool) {
	d := 2 * (a.X*(b.Y-c.Y) + b.X*(c.Y-a.Y) + c.X*(a.Y-b.Y))
	if math.Abs(d) < 1e-10 {
		return Point{}, 0, false
	}
	a2 := a.X*a.X + a.Y*a.Y
	b2 := b.X*b.X + b.Y*b.Y
	c2 := c.X*c.X + c.Y*c.Y
	center = Point{
		X: (a2*(b.Y-c.Y) + b2*(c.Y-a.Y) + c2*(a.Y-b.Y)) / d,
		Y: (a2*(c.X-b.X) + b2*(a.X-c.X) + c2*(b.X-a.X)) / d,
		Z: a.Z,
	}
	return center, center.Dist2D(a), true
}

// FitCircle is an algebraic least-squares circle fit over pts in XY. Points
// are shifted to their centroid first to keep the system well conditioned.
func FitCircle(pts []Point) (center Point, r float64, ok bool) {
	n := len(pts)
	if n < 3 {
		return Point{}, 0, false
	}

	var mx, my float64
	for _, p := range pts {
		mx += p.X
		my += p.Y
	}
	mx /= float64(n)
	my /= float64(n)

	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range pts {
		x, y := p.X-mx, p.Y-my
		a.Set(i, 0, x)
		a.Set(i, 1, y)
		a.Set(i, 2, 1)
		b.SetVec(i, x*x+y*y)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Point{}, 0, false
	}

	cx, cy := sol.AtVec(0)/2, sol.AtVec(1)/2
	r2 := sol.AtVec(2) + cx*cx + cy*cy
	if r2 <= 0 || math.IsNaN(r2) || math.IsInf(r2, 0) {
		return Point{}, 0, false
	}
	return Point{X: cx + mx, Y: cy + my, Z: pts[0].Z}, math.Sqrt(r2), true
}
