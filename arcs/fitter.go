// Package arcs coalesces runs of linear cuts that lie on a common circle into
// single arc moves.
package arcs

import (
	"math"

	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/vector"
	"github.com/kennylevinsen/gocam/vm"
)

// Fitter is a stream processor sitting in front of the output recorder. Cuts
// are added one at a time; whatever cannot be proven to be an arc comes out
// of the sink unchanged and in order.
//
// The first element of the window is the anchor: the position the tool was at
// when the window opened. It has already been emitted.
type Fitter struct {
	Tolerance  float64 // radial deviation, mm
	Resolution float64 // largest angular step between points, degrees
	MaxRadius  float64
	ZTolerance float64 // largest second difference of Z
	LineNoise  float64 // points closer than this are never arc candidates
	MinPoints  int     // anchor included
	MaxWindow  int

	// Used for arc previews.
	MaxDeviation  float64
	MinLineLength float64

	sink    func(vm.Position)
	window  []vm.Position
	centers []geom.Point
	radii   []float64
}

// New returns a fitter with default limits writing to sink.
func New(sink func(vm.Position)) *Fitter {
	return &Fitter{
		Tolerance:     0.01,
		Resolution:    15,
		MaxRadius:     1000,
		ZTolerance:    0.01,
		LineNoise:     0.001,
		MinPoints:     4,
		MaxWindow:     500,
		MaxDeviation:  0.002,
		MinLineLength: 0.01,
		sink:          sink,
	}
}

// Anchor discards the window and opens a new one at p. p must already have
// been emitted.
func (f *Fitter) Anchor(p vm.Position) {
	p.Center, p.Preview = nil, nil
	f.window = append(f.window[:0], p)
}

// pending is the number of points held back in the window.
func (f *Fitter) pending() int {
	if len(f.window) == 0 {
		return 0
	}
	return len(f.window) - 1
}

// Flush emits everything in the window. The window stays anchored at the
// last emitted point.
func (f *Fitter) Flush() {
	f.drain()
}

// Add offers a cut to the window.
func (f *Fitter) Add(p vm.Position) {
	p.State.MoveMode = vm.MoveModeLinear
	p.Center, p.Preview = nil, nil

	if len(f.window) == 0 {
		f.sink(p)
		f.Anchor(p)
		return
	}

	prev := f.window[len(f.window)-1]
	if prev.Point().Dist3D(p.Point()) < f.LineNoise {
		f.drain()
		f.sink(p)
		f.Anchor(p)
		return
	}

	if len(f.window) > 1 && !sameState(f.window[1].State, p.State) {
		f.drain()
	}

	f.push(p)
	for len(f.window) >= 3 && f.fault() {
		if len(f.window)-1 >= f.MinPoints {
			f.pop()
			f.drain()
			f.push(p)
			break
		}
		f.shift()
	}

	if f.MaxWindow > 0 && len(f.window) >= f.MaxWindow {
		f.drain()
	}
}

func sameState(a, b vm.State) bool {
	return a.Feedrate == b.Feedrate && a.Tool == b.Tool && a.SpindleSpeed == b.SpindleSpeed
}

func (f *Fitter) push(p vm.Position) {
	f.window = append(f.window, p)
}

func (f *Fitter) pop() {
	f.window = f.window[:len(f.window)-1]
}

// Emits the first point after the anchor as a cut and makes it the anchor.
func (f *Fitter) shift() {
	f.sink(f.window[1])
	f.window = append(f.window[:0], f.window[1:]...)
}

func (f *Fitter) points() []geom.Point {
	pts := make([]geom.Point, len(f.window))
	for i, p := range f.window {
		pts[i] = p.Point()
	}
	return pts
}

// Fits a circle through three representative points of the window. A window
// that has come back around to its anchor uses the quartiles instead, as the
// ends are too close to pin a circle.
func bestCenter(pts []geom.Point) (geom.Point, float64, bool) {
	n := len(pts)
	a, b, c := pts[0], pts[n/2], pts[n-1]
	if n >= 5 && a.Dist2D(c) < a.Dist2D(b)/2 {
		a, b, c = pts[n/4], pts[n/2], pts[3*n/4]
	}
	return geom.CircleCenter(a, b, c)
}

// Reports whether the window, including its newest point, is no longer a
// single arc.
func (f *Fitter) fault() bool {
	pts := f.points()
	n := len(pts)

	cc, r, ok := bestCenter(pts)
	if !ok || r > f.MaxRadius {
		return true
	}

	// Rolling centers over every consecutive triple.
	f.centers, f.radii = f.centers[:0], f.radii[:0]
	var winding, sweep float64
	for i := 0; i+2 < n; i++ {
		lc, lr, ok := geom.CircleCenter(pts[i], pts[i+1], pts[i+2])
		if !ok {
			return true
		}
		w := cross(pts[i], pts[i+1], pts[i+2])
		if i == 0 {
			winding = w
		} else if w*winding <= 0 {
			return true
		}
		f.centers = append(f.centers, lc)
		f.radii = append(f.radii, lr)
	}

	var mean geom.Point
	var sumR float64
	for i, c := range f.centers {
		mean.X += c.X
		mean.Y += c.Y
		sumR += f.radii[i]
	}
	mean.X /= float64(len(f.centers))
	mean.Y /= float64(len(f.centers))
	if cc.Dist2D(mean)*float64(len(f.centers))/sumR > f.Tolerance {
		return true
	}

	for i := 1; i < n; i++ {
		chord := pts[i-1].Dist2D(pts[i])
		if chord > r {
			return true
		}
		step := 2 * math.Asin(math.Min(1, chord/(2*r))) * 180 / math.Pi
		if step > f.Resolution {
			return true
		}
		sweep += step
	}
	if sweep > 360+1e-6 {
		return true
	}

	if zz := pts[n-1].Z - 2*pts[n-2].Z + pts[n-3].Z; math.Abs(zz) > f.ZTolerance {
		return true
	}

	for _, p := range pts {
		if math.Abs(p.Dist2D(cc)-r) > f.Tolerance {
			return true
		}
	}
	return false
}

func cross(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
}

// Empties the window, as one arc if it holds enough points and fits, as
// plain cuts otherwise.
func (f *Fitter) drain() {
	if len(f.window) <= 1 {
		return
	}

	last := f.window[len(f.window)-1]
	if len(f.window) >= f.MinPoints {
		if arc, ok := f.arc(); ok {
			f.sink(arc)
			f.Anchor(arc)
			return
		}
	}

	for _, p := range f.window[1:] {
		f.sink(p)
	}
	f.Anchor(last)
}

func (f *Fitter) arc() (vm.Position, bool) {
	pts := f.points()
	anchor := pts[0]

	center, r, ok := geom.FitCircle(pts)
	if !ok {
		if len(f.centers) == 0 {
			return vm.Position{}, false
		}
		for _, c := range f.centers {
			center.X += c.X / float64(len(f.centers))
			center.Y += c.Y / float64(len(f.centers))
		}
		r = anchor.Dist2D(center)
	}
	for _, p := range pts {
		if math.Abs(p.Dist2D(center)-r) > f.Tolerance {
			return vm.Position{}, false
		}
	}

	cw := cross(pts[0], pts[1], pts[2]) < 0

	out := f.window[len(f.window)-1]
	if anchor.Dist2D(out.Point()) < f.Tolerance {
		out.X, out.Y = anchor.X, anchor.Y
	}
	if cw {
		out.State.MoveMode = vm.MoveModeCWArc
	} else {
		out.State.MoveMode = vm.MoveModeCCWArc
	}
	c := vector.Vector{X: center.X, Y: center.Y, Z: anchor.Z}
	out.Center = &c
	out.Preview = vm.FlattenArc(anchor.Vector(), out.Vector(), c, cw, f.MaxDeviation, f.MinLineLength)
	return out, true
}
