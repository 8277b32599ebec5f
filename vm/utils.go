package vm

import (
	"math"
	"time"
)

func (vm *Machine) each(f func(*Position)) {
	for _, l := range vm.Layers {
		for idx := range l.Positions {
			f(&l.Positions[idx])
		}
	}
}

// Limit feedrate.
func (vm *Machine) LimitFeedrate(feed float64) {
	vm.each(func(m *Position) {
		if m.State.Feedrate > feed {
			m.State.Feedrate = feed
		}
	})
}

// Increase feedrate
func (vm *Machine) FeedrateMultiplier(feedMultiplier float64) {
	vm.each(func(m *Position) {
		m.State.Feedrate *= feedMultiplier
	})
}

// Ensure return to X0 Y0 at the highest Z seen.
// Lifts to that height first, then travels home.
func (vm *Machine) Return() {
	last, ok := vm.Last()
	if !ok {
		return
	}

	maxz := math.Inf(-1)
	vm.each(func(m *Position) {
		maxz = math.Max(maxz, m.Z)
	})

	if last.X == 0 && last.Y == 0 && last.Z == maxz {
		return
	}

	move1 := last
	move1.Center, move1.Preview = nil, nil
	move1.Z = maxz
	move1.State.MoveMode = MoveModeRapid
	move1.State.Feedrate = 0
	move2 := move1
	move2.X = 0
	move2.Y = 0
	vm.Push(move1)
	vm.Push(move2)
}

// Generate move information
func (vm *Machine) Info() (minx, miny, minz, maxx, maxy, maxz float64, feedrates []float64) {
	minx, miny, minz = math.Inf(1), math.Inf(1), math.Inf(1)
	maxx, maxy, maxz = math.Inf(-1), math.Inf(-1), math.Inf(-1)

	vm.each(func(pos *Position) {
		minx, maxx = math.Min(minx, pos.X), math.Max(maxx, pos.X)
		miny, maxy = math.Min(miny, pos.Y), math.Max(maxy, pos.Y)
		minz, maxz = math.Min(minz, pos.Z), math.Max(maxz, pos.Z)

		if pos.State.MoveMode == MoveModeRapid {
			return
		}
		for _, feed := range feedrates {
			if feed == pos.State.Feedrate {
				return
			}
		}
		feedrates = append(feedrates, pos.State.Feedrate)
	})
	return
}

// Estimate the run time. Rapids move at rapidXY, or rapidZ when they only
// move Z; cuts at their feedrate. Rates are per minute.
func (vm *Machine) Duration(rapidXY, rapidZ float64) time.Duration {
	var (
		minutes float64
		last    *Position
	)
	vm.each(func(pos *Position) {
		if last == nil {
			last = pos
			return
		}
		from := last.Vector()
		last = pos

		var dist float64
		for _, v := range pos.Preview {
			dist += v.Diff(from).Norm()
			from = v
		}
		dist += pos.Vector().Diff(from).Norm()

		rate := pos.State.Feedrate
		if pos.State.MoveMode == MoveModeRapid {
			rate = rapidXY
			if pos.Vector().Diff(from).Norm2D() == 0 && len(pos.Preview) == 0 {
				rate = rapidZ
			}
		}
		if rate > 0 {
			minutes += dist / rate
		}
	})
	return time.Duration(minutes * float64(time.Minute))
}
