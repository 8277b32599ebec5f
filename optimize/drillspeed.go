package optimize

import (
	"math"

	"github.com/kennylevinsen/gocam/vm"
)

// OptDrillSpeed detects a previous drill, and uses rapid move or higher
// feedrate to the previous known depth. Scans through all Z-descent moves,
// logs its height, and ensures that any future move at that location will use
// vm.MoveModeRapid to go to the deepest previous known Z-height. Locations
// include the rotary angle, as a turned stock presents fresh material under
// the same XY.
func OptDrillSpeed(machine *vm.Machine, feedrate float64, rapid bool) {
	type location struct{ x, y, a float64 }
	var (
		last    vm.Position
		hasLast bool
		drilled = make(map[location]float64)
	)

	speedUp := func(pos *vm.Position) {
		if rapid {
			pos.State.MoveMode = vm.MoveModeRapid
			pos.State.Feedrate = 0
		} else {
			pos.State.Feedrate = feedrate
		}
	}

	for _, l := range machine.Layers {
		npos := make([]vm.Position, 0, len(l.Positions))
		for _, m := range l.Positions {
			if !hasLast || m.X != last.X || m.Y != last.Y || m.Z >= last.Z ||
				m.State.MoveMode != vm.MoveModeLinear || m.A != last.A {
				npos = append(npos, m)
				last, hasLast = m, true
				continue
			}

			key := location{m.X, m.Y, m.A}
			depth, found := drilled[key]
			drilled[key] = math.Min(m.Z, orInf(depth, found))

			switch {
			case !found || depth >= last.Z:
				npos = append(npos, m)
			case m.Z >= depth:
				// We have drilled all of it, so just rapid all the way
				fast := m
				speedUp(&fast)
				npos = append(npos, fast)
			default:
				// Can only rapid some of the way
				fast := m
				fast.Z = depth
				speedUp(&fast)
				npos = append(npos, fast, m)
			}
			last = m
		}
		l.Positions = npos
	}
}

func orInf(v float64, ok bool) float64 {
	if ok {
		return v
	}
	return math.Inf(1)
}
