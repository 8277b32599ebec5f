package export

import (
	"github.com/kennylevinsen/gocam/gcode"
)

// StringCodeGenerator collects everything into a document.
type StringCodeGenerator struct {
	BaseGenerator
	Precision int
	Document  *gcode.Document
}

// Initializes state, and puts in a header block.
func (s *StringCodeGenerator) Init() {
	s.BaseGenerator.Init()
	if s.Document == nil {
		s.Document = &gcode.Document{}
	}
	s.put = s.Document.AppendBlock
	s.put(gcode.Block{Nodes: []gcode.Node{&gcode.Comment{Content: "Exported by gocam"}}})
	s.put(gcode.Block{Nodes: []gcode.Node{word('G', 21), word('G', 90)}})
}

// Fetch the generated gcodes.
func (s *StringCodeGenerator) Retrieve() string {
	return s.Document.Export(s.Precision) + "\n"
}
