package vm

import "github.com/kennylevinsen/gocam/gcode"
import "github.com/kennylevinsen/gocam/vector"
import "math"

import "fmt"

// Calculates the absolute position of the given statement, including optional I, J parameters
func (vm *Machine) calcPos(stmt gcode.Block) (newX, newY, newZ, newA, newI, newJ float64, hasA bool) {
	pos := vm.pos
	var err error

	if newX, err = stmt.GetWord('X'); err != nil {
		newX = pos.X
	} else {
		newX = vm.scale(newX)
		if !vm.AbsoluteMove {
			newX += pos.X
		}
	}

	if newY, err = stmt.GetWord('Y'); err != nil {
		newY = pos.Y
	} else {
		newY = vm.scale(newY)
		if !vm.AbsoluteMove {
			newY += pos.Y
		}
	}

	if newZ, err = stmt.GetWord('Z'); err != nil {
		newZ = pos.Z
	} else {
		newZ = vm.scale(newZ)
		if !vm.AbsoluteMove {
			newZ += pos.Z
		}
	}

	// Rotary axis is in degrees regardless of units
	hasA = pos.HasA
	if newA, err = stmt.GetWord('A'); err != nil {
		newA = pos.A
	} else {
		hasA = true
		if !vm.AbsoluteMove {
			newA += pos.A
		}
	}

	newI = vm.scale(stmt.GetWordDefault('I', 0.0))
	newJ = vm.scale(stmt.GetWordDefault('J', 0.0))

	if !vm.AbsoluteArc {
		newI += pos.X
		newJ += pos.Y
	}

	return
}

func (vm *Machine) scale(v float64) float64 {
	if vm.Imperial {
		return v * 25.4
	}
	return v
}

// Checks that start and end both lie on the circle around center.
func checkArc(start, end, center vector.Vector) {
	radius1 := math.Hypot(center.X-start.X, center.Y-start.Y)
	radius2 := math.Hypot(center.X-end.X, center.Y-end.Y)
	if radius1 == 0 || radius2 == 0 {
		panic(fmt.Errorf("%w: zero radius", ErrInvalidArc))
	}

	if deviation := math.Abs((radius2-radius1)/radius1) * 100; deviation > 0.6 {
		x := math.Abs(radius2 - radius1)
		if x > 0.1 {
			panic(fmt.Errorf("%w: radius deviation of %f percent and %f mm", ErrInvalidArc, deviation, x))
		}
	}
}

// FlattenArc approximates an XY arc around center with line segments that
// stray at most maxDeviation from the true arc. Z moves linearly along the
// arc. The start point is not included, the end point always is. An end equal
// to the start is a full circle.
func FlattenArc(start, end, center vector.Vector, clockwise bool, maxDeviation, minLineLength float64) []vector.Vector {
	radius := math.Hypot(start.X-center.X, start.Y-center.Y)
	if radius == 0 {
		return []vector.Vector{end}
	}

	theta1 := math.Atan2(start.Y-center.Y, start.X-center.X)
	theta2 := math.Atan2(end.Y-center.Y, end.X-center.X)

	angleDiff := theta2 - theta1
	if angleDiff < 0 && !clockwise {
		angleDiff += 2 * math.Pi
	} else if angleDiff > 0 && clockwise {
		angleDiff -= 2 * math.Pi
	}
	if math.Abs(angleDiff) < 1e-12 {
		if clockwise {
			angleDiff = -2 * math.Pi
		} else {
			angleDiff = 2 * math.Pi
		}
	}

	steps := 1
	if maxDeviation > 0 && maxDeviation < radius {
		steps = int(math.Ceil(math.Abs(angleDiff / (2 * math.Acos(1-maxDeviation/radius)))))
	}

	// Enforce a minimum line length
	if minLineLength > 0 {
		arcLen := math.Abs(angleDiff) * math.Sqrt(math.Pow(radius, 2)+math.Pow((end.Z-start.Z)/angleDiff, 2))
		if steps2 := int(arcLen / minLineLength); steps > steps2 {
			steps = steps2
		}
	}
	if steps < 1 {
		steps = 1
	}

	out := make([]vector.Vector, 0, steps)
	for i := 1; i < steps; i++ {
		angle := theta1 + angleDiff/float64(steps)*float64(i)
		out = append(out, vector.Vector{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
			Z: start.Z + (end.Z-start.Z)/float64(steps)*float64(i),
		})
	}
	return append(out, end)
}
