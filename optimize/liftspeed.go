package optimize

import "github.com/kennylevinsen/gocam/vm"

// Uses rapid move for all Z-up only moves.
// Scans all positions for straight moves that only change the z-axis in a
// positive direction, and sets the moveMode to vm.MoveModeRapid.
func OptLiftSpeed(machine *vm.Machine) {
	var last *vm.Position
	for _, l := range machine.Layers {
		for idx := range l.Positions {
			m := &l.Positions[idx]
			if last != nil && m.State.MoveMode == vm.MoveModeLinear &&
				m.X == last.X && m.Y == last.Y && m.Z > last.Z && m.A == last.A {
				m.State.MoveMode = vm.MoveModeRapid
				m.State.Feedrate = 0
			}
			last = m
		}
	}
}
