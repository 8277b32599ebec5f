package export

import (
	"github.com/kennylevinsen/gocam/gcode"
)

// GrblGenerator hands each block to Write as it is produced.
type GrblGenerator struct {
	BaseGenerator
	Write func(gcode.Block)
}

func (s *GrblGenerator) Init() {
	s.BaseGenerator.Init()
	s.put = s.Write
	s.put(gcode.Block{Nodes: []gcode.Node{word('G', 21), word('G', 90)}})
}

// A no-op toolchange, as Grbl doesn't support it
func (s *GrblGenerator) Toolchange(t int) {
	// TODO Implement manual tool-change
}

func (s *GrblGenerator) PrepareTool(t int) {
}
