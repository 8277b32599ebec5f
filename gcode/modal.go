package gcode

import "errors"
import "fmt"

type sliceOfWords []*Word

// Modal groups understood by the importer. A block may hold at most one word
// from each group.
const (
	NonModalGroup     = "nonModalGroup"
	MotionGroup       = "motionGroup"
	PlaneGroup        = "planeSelectionGroup"
	DistanceGroup     = "distanceModeGroup"
	ArcDistanceGroup  = "arcDistanceModeGroup"
	UnitsGroup        = "unitsGroup"
	StoppingGroup     = "stoppingGroup"
	ToolChangeGroup   = "toolChangeGroup"
	SpindleGroup      = "spindleGroup"
	CoordSystemGroup  = "coordinateSystemGroup"
	CutterCompGroup   = "cutterCompensationModeGroup"
	FeedRateModeGroup = "feedRateModeGroup"
)

var (
	groups = map[string]sliceOfWords{
		NonModalGroup: sliceOfWords{&Word{'G', 4},
			&Word{'G', 10},
			&Word{'G', 28},
			&Word{'G', 30},
			&Word{'G', 53},
			&Word{'G', 92},
		},
		MotionGroup: sliceOfWords{&Word{'G', 0},
			&Word{'G', 1},
			&Word{'G', 2},
			&Word{'G', 3},
			&Word{'G', 80},
		},
		PlaneGroup: sliceOfWords{&Word{'G', 17},
			&Word{'G', 18},
			&Word{'G', 19},
		},
		DistanceGroup: sliceOfWords{&Word{'G', 90},
			&Word{'G', 91},
		},
		ArcDistanceGroup: sliceOfWords{&Word{'G', 90.1},
			&Word{'G', 91.1},
		},
		FeedRateModeGroup: sliceOfWords{&Word{'G', 93},
			&Word{'G', 94},
			&Word{'G', 95},
		},
		UnitsGroup: sliceOfWords{&Word{'G', 20},
			&Word{'G', 21},
		},
		CutterCompGroup: sliceOfWords{&Word{'G', 40},
			&Word{'G', 41},
			&Word{'G', 42},
		},
		CoordSystemGroup: sliceOfWords{&Word{'G', 54},
			&Word{'G', 55},
			&Word{'G', 56},
			&Word{'G', 57},
			&Word{'G', 58},
			&Word{'G', 59},
		},
		StoppingGroup: sliceOfWords{&Word{'M', 0},
			&Word{'M', 1},
			&Word{'M', 2},
			&Word{'M', 30},
		},
		ToolChangeGroup: sliceOfWords{&Word{'M', 6}},
		SpindleGroup: sliceOfWords{&Word{'M', 3},
			&Word{'M', 4},
			&Word{'M', 5},
		},
	}
)

func (n sliceOfWords) isInGroup(w *Word) bool {
	for _, word := range n {
		if *word == *w {
			return true
		}
	}
	return false
}

// Finds the word of the given modal group, if any. Returns an error if the
// block holds more than one.
func (b *Block) GetModalGroup(t string) (*Word, error) {
	var word *Word
	group, ok := groups[t]
	if !ok {
		return nil, errors.New(fmt.Sprintf("Unknown modal group (%s)", t))
	}
	for _, n := range b.Nodes {
		if w, ok := n.(*Word); ok {
			if group.isInGroup(w) {
				if word != nil {
					return nil, errors.New(fmt.Sprintf("Multiple gcodes from same modal group (%s)", t))
				}
				word = w
			}
		}
	}
	return word, nil
}
