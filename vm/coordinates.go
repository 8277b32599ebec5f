package vm

import "github.com/kennylevinsen/gocam/geom"
import "github.com/kennylevinsen/gocam/vector"

// CoordinateSystem maps widget coordinates onto the machine. The offset is
// the widget's placement on the stock; the Z bias lifts the widget's geometry
// to where it sits in the stock.
type CoordinateSystem struct {
	offset        vector.Vector
	offsetEnabled bool
}

func (c *CoordinateSystem) SetOffset(x, y, z float64) {
	c.offset.X = x
	c.offset.Y = y
	c.offset.Z = z
	c.offsetEnabled = true
}

func (c *CoordinateSystem) EraseOffset() {
	c.offset = vector.Vector{}
	c.offsetEnabled = false
}

func (c *CoordinateSystem) Offset() vector.Vector {
	if !c.offsetEnabled {
		return vector.Vector{}
	}
	return c.offset
}

func (c *CoordinateSystem) OffsetActive() bool {
	return c.offsetEnabled
}

// Moves a widget point into machine space.
func (c *CoordinateSystem) Apply(p geom.Point) geom.Point {
	v := c.Offset()
	return p.Add(v.X, v.Y, v.Z)
}

// Moves a machine point back into widget space.
func (c *CoordinateSystem) Remove(p geom.Point) geom.Point {
	v := c.Offset()
	return p.Add(-v.X, -v.Y, -v.Z)
}
