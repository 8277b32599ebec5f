package optimize

import "github.com/kennylevinsen/gocam/vm"

// Marks every position with the tool that will be needed after its own, so
// exporters can have the changer fetch it early.
func OptPrepareTool(machine *vm.Machine) {
	var run []*vm.Position
	for _, l := range machine.Layers {
		for idx := range l.Positions {
			m := &l.Positions[idx]
			if len(run) > 0 && m.State.Tool != run[0].State.Tool {
				for _, p := range run {
					p.State.NextTool = m.State.Tool
				}
				run = run[:0]
			}
			run = append(run, m)
		}
	}
	for _, p := range run {
		p.State.NextTool = -1
	}
}
