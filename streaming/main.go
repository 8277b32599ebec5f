// Package streaming sends G-code documents to a controller over a serial line.
package streaming

import "github.com/kennylevinsen/gocam/gcode"

type Streamer interface {
	Check(*gcode.Document) error
	Connect(string, int) error
	Stop()
	Send(*gcode.Document, int, chan<- int) error
}
