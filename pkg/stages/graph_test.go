package stages

import (
	"testing"

	"github.com/dukex/hireflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(id string, order int, kind models.StageKind, mode models.DisplayMode) *models.Stage {
	return &models.Stage{
		ID:          id,
		Name:        id,
		Order:       order,
		Kind:        kind,
		DisplayMode: mode,
		IsActive:    true,
	}
}

func ids(stages []*models.Stage) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.ID)
	}

	return out
}

func pipeline() *Graph {
	return NewGraph("wf-1", []*models.Stage{
		stage("hired", 6, models.StageKindSuccess, models.DisplayColumn),
		stage("offer", 4, models.StageKindStandard, models.DisplayColumn),
		stage("applied", 1, models.StageKindInitial, models.DisplayColumn),
		stage("onsite", 3, models.StageKindStandard, models.DisplayColumn),
		stage("screen", 2, models.StageKindStandard, models.DisplayColumn),
		stage("on-hold", 5, models.StageKindStandard, models.DisplayRow),
		stage("rejected", 7, models.StageKindFail, models.DisplayColumn),
		stage("withdrawn", 8, models.StageKindFail, models.DisplayHidden),
	})
}

func TestNewGraph_SortsByOrder(t *testing.T) {
	g := pipeline()

	assert.Equal(t,
		[]string{"applied", "screen", "onsite", "offer", "on-hold", "hired", "rejected", "withdrawn"},
		ids(g.Stages()))
	assert.Equal(t, "wf-1", g.WorkflowID())
	assert.Equal(t, 8, g.Len())
}

func TestNewGraph_TiesBrokenByID(t *testing.T) {
	g := NewGraph("wf", []*models.Stage{
		stage("b", 1, models.StageKindStandard, models.DisplayColumn),
		stage("a", 1, models.StageKindStandard, models.DisplayColumn),
	})

	assert.Equal(t, []string{"a", "b"}, ids(g.Stages()))
}

func TestNewGraph_CopiesInput(t *testing.T) {
	input := []*models.Stage{stage("a", 1, models.StageKindStandard, models.DisplayColumn)}
	g := NewGraph("wf", input)

	input[0].Name = "mutated"

	s, ok := g.Stage("a")
	require.True(t, ok)
	assert.Equal(t, "a", s.Name)
}

func TestGraph_LayoutGroups(t *testing.T) {
	layout := pipeline().Layout()

	assert.Equal(t, []string{"applied", "screen", "onsite", "offer"}, ids(layout.Columns))
	assert.Equal(t, []string{"on-hold"}, ids(layout.Rows))
	assert.Equal(t, []string{"hired"}, ids(layout.Outcomes.Success))
	assert.Equal(t, []string{"rejected"}, ids(layout.Outcomes.Fail), "hidden fail stages stay off the board")
}

func TestGraph_HiddenStagesRemainPickable(t *testing.T) {
	g := pipeline()

	assert.Equal(t, []string{"withdrawn"}, ids(g.Hidden()))
	assert.Contains(t, ids(g.Pickable()), "withdrawn")
}

func TestGraph_NextIgnoresDisplayMode(t *testing.T) {
	g := NewGraph("wf", []*models.Stage{
		stage("screen", 1, models.StageKindStandard, models.DisplayColumn),
		stage("offer", 2, models.StageKindStandard, models.DisplayRow),
	})

	next, ok := g.Next("screen")
	require.True(t, ok)
	assert.Equal(t, "offer", next.ID)
}

func TestGraph_NextSkipsInactive(t *testing.T) {
	inactive := stage("onsite", 2, models.StageKindStandard, models.DisplayColumn)
	inactive.IsActive = false

	g := NewGraph("wf", []*models.Stage{
		stage("screen", 1, models.StageKindStandard, models.DisplayColumn),
		inactive,
		stage("offer", 3, models.StageKindStandard, models.DisplayColumn),
	})

	next, ok := g.Next("screen")
	require.True(t, ok)
	assert.Equal(t, "offer", next.ID)
}

func TestGraph_NextTreatsFailStagesAsOrdinaryNodes(t *testing.T) {
	g := pipeline()

	next, ok := g.Next("hired")
	require.True(t, ok)
	assert.Equal(t, "rejected", next.ID)

	_, ok = g.Next("withdrawn")
	assert.False(t, ok, "last stage has no next")

	_, ok = g.Next("unknown")
	assert.False(t, ok)
}

func TestGraph_Initial(t *testing.T) {
	s, ok := pipeline().Initial()
	require.True(t, ok)
	assert.Equal(t, "applied", s.ID)

	s, ok = NewGraph("wf", []*models.Stage{
		stage("b", 2, models.StageKindStandard, models.DisplayColumn),
		stage("a", 1, models.StageKindStandard, models.DisplayColumn),
	}).Initial()
	require.True(t, ok)
	assert.Equal(t, "a", s.ID)

	_, ok = NewGraph("wf", nil).Initial()
	assert.False(t, ok)
}
