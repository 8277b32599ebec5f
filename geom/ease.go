package geom

import "math"

// EaseDown ramps into a closed polygon along its own boundary instead of
// plunging. It starts at the vertex closest to from, at from's height, and
// descends by tan(angle) per unit of XY travel until it meets the polygon's
// own Z. The crossing point is inserted where it falls inside an edge.
//
// The slope is steepened when needed so the ramp completes within one lap.
// touch is the index of the vertex where the ramp ended; full-depth cutting
// continues from there back around to it.
func EaseDown(poly *Polygon, from Point, angle float64) (ramp []Point, touch int) {
	n := len(poly.Points)
	start, _ := poly.Closest(from)
	if n < 2 || start < 0 {
		return nil, 0
	}

	drop := from.Z - poly.MinZ()
	if drop <= 0 {
		return nil, start
	}

	slope := math.Tan(angle * math.Pi / 180)
	if per := poly.Perimeter(); per > 0 && (slope*per < drop || math.IsNaN(slope) || slope <= 0) {
		slope = drop / per
	}

	zat := from.Z
	ramp = append(ramp, poly.Points[start].WithZ(zat))
	for k := 1; k <= n; k++ {
		prev := poly.Points[(start+k-1)%n]
		i := (start + k) % n
		pt := poly.Points[i]
		d := prev.Dist2D(pt)
		nz := zat - d*slope

		if nz <= pt.Z+1e-9 {
			t := 1.0
			if den := d*slope + pt.Z - prev.Z; den > 0 {
				t = math.Max(0, math.Min(1, (zat-prev.Z)/den))
			}
			if t > 1e-9 && t < 1-1e-9 {
				cross := Lerp(prev, pt, t)
				cross.Z = prev.Z + (pt.Z-prev.Z)*t
				ramp = append(ramp, cross)
			}
			return append(ramp, pt), i
		}

		ramp = append(ramp, pt.WithZ(nz))
		zat = nz
	}
	return ramp, start
}
