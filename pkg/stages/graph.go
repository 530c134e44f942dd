// Package stages holds the ordered stage graph of a workflow and answers
// board layout and next-stage questions.
package stages

import (
	"cmp"
	"slices"

	"github.com/dukex/hireflow/pkg/models"
)

// Graph is an immutable, order-sorted view of a workflow's stages.
type Graph struct {
	workflowID string
	stages     []*models.Stage
	byID       map[string]*models.Stage
}

// Outcomes groups the terminal stages apart from the main pipeline.
type Outcomes struct {
	Success []*models.Stage `json:"success"`
	Fail    []*models.Stage `json:"fail"`
}

// Layout is what a board renders: columns in sequence, auxiliary rows and
// the terminal outcome groups. Hidden stages are never part of it.
type Layout struct {
	Columns  []*models.Stage `json:"columns"`
	Rows     []*models.Stage `json:"rows"`
	Outcomes Outcomes        `json:"outcomes"`
}

// NewGraph copies and sorts stages by order, breaking ties by id.
func NewGraph(workflowID string, stages []*models.Stage) *Graph {
	g := &Graph{
		workflowID: workflowID,
		stages:     make([]*models.Stage, 0, len(stages)),
		byID:       make(map[string]*models.Stage, len(stages)),
	}

	for _, s := range stages {
		if s == nil {
			continue
		}

		c := *s
		g.stages = append(g.stages, &c)
		g.byID[c.ID] = &c
	}

	slices.SortStableFunc(g.stages, func(a, b *models.Stage) int {
		if n := cmp.Compare(a.Order, b.Order); n != 0 {
			return n
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return g
}

func (g *Graph) WorkflowID() string {
	return g.workflowID
}

// Stages returns every stage in pipeline order.
func (g *Graph) Stages() []*models.Stage {
	return slices.Clone(g.stages)
}

// Len returns the number of stages.
func (g *Graph) Len() int {
	return len(g.stages)
}

func (g *Graph) Stage(id string) (*models.Stage, bool) {
	s, ok := g.byID[id]

	return s, ok
}

// Columns returns the primary board columns: column-mode stages that are
// not terminal outcomes.
func (g *Graph) Columns() []*models.Stage {
	return g.filter(func(s *models.Stage) bool {
		return s.DisplayMode == models.DisplayColumn && !s.Kind.Terminal()
	})
}

// Rows returns the auxiliary stages shown outside the column sequence.
func (g *Graph) Rows() []*models.Stage {
	return g.filter(func(s *models.Stage) bool {
		return s.DisplayMode == models.DisplayRow && !s.Kind.Terminal()
	})
}

// Outcomes returns the visible success and fail stages.
func (g *Graph) Outcomes() Outcomes {
	return Outcomes{
		Success: g.filter(func(s *models.Stage) bool {
			return s.Kind == models.StageKindSuccess && s.DisplayMode != models.DisplayHidden
		}),
		Fail: g.filter(func(s *models.Stage) bool {
			return s.Kind == models.StageKindFail && s.DisplayMode != models.DisplayHidden
		}),
	}
}

// Hidden returns stages excluded from board rendering.
func (g *Graph) Hidden() []*models.Stage {
	return g.filter(func(s *models.Stage) bool {
		return s.DisplayMode == models.DisplayHidden
	})
}

// Pickable returns every active stage, including hidden ones, for an
// explicit stage picker.
func (g *Graph) Pickable() []*models.Stage {
	return g.filter(func(s *models.Stage) bool {
		return s.IsActive
	})
}

// Layout bundles columns, rows and outcomes.
func (g *Graph) Layout() Layout {
	return Layout{
		Columns:  g.Columns(),
		Rows:     g.Rows(),
		Outcomes: g.Outcomes(),
	}
}

// Next returns the active stage with the smallest order greater than the
// current stage's order, regardless of display mode or kind.
func (g *Graph) Next(currentID string) (*models.Stage, bool) {
	current, ok := g.byID[currentID]
	if !ok {
		return nil, false
	}

	for _, s := range g.stages {
		if s.Order > current.Order && s.IsActive {
			return s, true
		}
	}

	return nil, false
}

// Initial returns the first initial-kind stage, else the first stage.
func (g *Graph) Initial() (*models.Stage, bool) {
	for _, s := range g.stages {
		if s.Kind == models.StageKindInitial {
			return s, true
		}
	}

	if len(g.stages) == 0 {
		return nil, false
	}

	return g.stages[0], true
}

func (g *Graph) filter(keep func(*models.Stage) bool) []*models.Stage {
	out := make([]*models.Stage, 0)

	for _, s := range g.stages {
		if keep(s) {
			out = append(out, s)
		}
	}

	return out
}
