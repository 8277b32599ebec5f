// Package optimize holds passes that rewrite recorded positions in place.
package optimize

import "github.com/kennylevinsen/gocam/vm"

// Positions that can be folded into one straight move.
func sameMove(a, b vm.Position) bool {
	if a.IsArc() || b.IsArc() {
		return false
	}
	if a.State != b.State {
		return false
	}
	return a.HasA == b.HasA && a.A == b.A
}

// Kills redundant partial moves.
// A point is dropped when going through it is less than tolerance longer than
// going straight past it. Layers are handled separately.
func OptVector(machine *vm.Machine, tolerance float64) {
	for _, l := range machine.Layers {
		l.Positions = optVector(l.Positions, tolerance)
	}
}

func optVector(in []vm.Position, tolerance float64) []vm.Position {
	npos := make([]vm.Position, 0, len(in))
	for _, m := range in {
		n := len(npos)
		if n >= 2 && sameMove(npos[n-1], m) {
			vec1, vec2, vec3 := npos[n-2].Vector(), npos[n-1].Vector(), m.Vector()
			length1 := vec1.Diff(vec2).Norm() + vec2.Diff(vec3).Norm()
			length2 := vec1.Diff(vec3).Norm()
			if length1-length2 < tolerance {
				npos[n-1] = m
				continue
			}
		}
		npos = append(npos, m)
	}
	return npos
}
