package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kennylevinsen/gocam/config"
	"github.com/kennylevinsen/gocam/geom"
	"github.com/kennylevinsen/gocam/plan"
	"github.com/kennylevinsen/gocam/vm"
)

// Validate rejects widgets with missing terrain or NaN coordinates anywhere in
// their geometry.
func Validate(widgets []*plan.Widget) error {
	for _, w := range widgets {
		if err := w.Terrain.Validate(); err != nil {
			return fmt.Errorf("%s: %w", w.Name, err)
		}
		if w.Offset.IsNaN() {
			return fmt.Errorf("%s: offset: %w", w.Name, ErrInvalidGeometry)
		}
		for _, e := range w.Terrain {
			if anyNaN(e.Tops) {
				return fmt.Errorf("%s: terrain z=%g: %w", w.Name, e.Z, ErrInvalidGeometry)
			}
		}
		for i, op := range w.Ops {
			if anyNaN(geometry(op)) {
				return fmt.Errorf("%s: op %d (%s): %w", w.Name, i+1, op.Kind(), ErrInvalidGeometry)
			}
		}
	}
	return nil
}

func anyNaN(polys []*geom.Polygon) bool {
	for _, p := range polys {
		if p.HasNaN() {
			return true
		}
	}
	return false
}

func flatten(slices []plan.Slice) []*geom.Polygon {
	var out []*geom.Polygon
	for _, s := range slices {
		out = append(out, s.Lines...)
	}
	return out
}

// geometry lists every polygon an op will cut.
func geometry(op plan.Op) []*geom.Polygon {
	switch o := op.(type) {
	case *plan.Rough:
		return append(flatten(o.Faces), flatten(o.Slices)...)
	case *plan.Pocket:
		var out []*geom.Polygon
		for _, p := range o.Pockets {
			out = append(out, flatten(p)...)
		}
		return out
	case *plan.Contour:
		return flatten(o.Slices)
	case *plan.Trace:
		return flatten(o.Slices)
	case *plan.Lathe:
		return flatten(o.Slices)
	case *plan.Drill:
		return o.Holes
	case *plan.Register:
		return append(flatten(o.Slices), o.Holes...)
	}
	return nil
}

// Run plans widgets in order into one machine. The planner state is carried
// from each widget to the next so the output stays continuous. Cancellation
// is checked between widgets; progress, if set, is called after each one.
func Run(ctx context.Context, s *config.Settings, widgets []*plan.Widget, logger *log.Logger, progress func(done, total int)) (*vm.Machine, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := Validate(widgets); err != nil {
		return nil, err
	}
	tools, err := s.ToolTable()
	if err != nil {
		return nil, err
	}
	for _, id := range tools.IDs() {
		tl, _ := tools.Lookup(id)
		logger.Printf("tool %d %q: %s, diameter %.3f, tip %.3f", id, tl.Name, tl.Type, tl.Diameter(), tl.TipDiameter())
	}

	var m vm.Machine
	m.Init(s.Process.MaxArcDeviation, s.Process.MinArcLineLength)
	st := &plan.State{}

	// Every widget is checked before anything is planned.
	planners := make([]*plan.Planner, len(widgets))
	for i, w := range widgets {
		if planners[i], err = plan.NewPlanner(s, tools, w, st, &m); err != nil {
			return nil, err
		}
	}

	for i, p := range planners {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Printf("%s: terrain top %.3f, %d ops", widgets[i].Name, widgets[i].Terrain.Top(), len(widgets[i].Ops))
		before := len(m.Positions())
		if err := p.Plan(); err != nil {
			return nil, err
		}
		logger.Printf("%s: %d records", widgets[i].Name, len(m.Positions())-before)
		if progress != nil {
			progress(i+1, len(widgets))
		}
	}

	minx, miny, minz, maxx, maxy, maxz, feeds := m.Info()
	logger.Printf("bounds x %.3f..%.3f y %.3f..%.3f z %.3f..%.3f, feedrates %v",
		minx, maxx, miny, maxy, minz, maxz, feeds)
	logger.Printf("estimated run time %s",
		m.Duration(s.Process.FastFeed, s.Process.FastFeedZ).Round(time.Second))
	return &m, nil
}
