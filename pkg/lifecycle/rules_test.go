package lifecycle

import (
	"testing"

	"github.com/dukex/hireflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions_Table(t *testing.T) {
	tests := []struct {
		from models.LifecycleStatus
		want []models.LifecycleStatus
	}{
		{models.StatusDraft, []models.LifecycleStatus{models.StatusPendingApproval, models.StatusPublished}},
		{models.StatusPendingApproval, []models.LifecycleStatus{models.StatusApproved, models.StatusRejected}},
		{models.StatusApproved, []models.LifecycleStatus{models.StatusPublished}},
		{models.StatusRejected, []models.LifecycleStatus{models.StatusDraft}},
		{models.StatusPublished, []models.LifecycleStatus{models.StatusOnHold, models.StatusClosed}},
		{models.StatusOnHold, []models.LifecycleStatus{models.StatusPublished, models.StatusClosed}},
		{models.StatusClosed, []models.LifecycleStatus{models.StatusArchived, models.StatusDraft}},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, Transitions(tt.from))
		})
	}

	assert.Empty(t, Transitions(models.StatusArchived))
	assert.True(t, Terminal(models.StatusArchived))
	assert.False(t, Terminal(models.StatusClosed))
}

func TestTransitions_ReturnsFreshSlice(t *testing.T) {
	first := Transitions(models.StatusDraft)
	first[0] = models.StatusArchived
	first = append(first, models.StatusClosed)

	again := Transitions(models.StatusDraft)
	assert.Len(t, again, 2)
	assert.NotContains(t, again, models.StatusArchived)
	assert.Len(t, first, 3)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.StatusDraft, models.StatusPublished))
	assert.False(t, CanTransition(models.StatusApproved, models.StatusPendingApproval))
	assert.False(t, CanTransition(models.StatusArchived, models.StatusDraft))
	assert.False(t, CanTransition("BOGUS", models.StatusDraft))
}

func TestIsFieldLocked(t *testing.T) {
	assert.False(t, IsFieldLocked(models.StatusDraft, models.AttrBudget))
	assert.False(t, IsFieldLocked(models.StatusRejected, models.AttrTitle))

	assert.True(t, IsFieldLocked(models.StatusPendingApproval, models.AttrTitle))
	assert.False(t, IsFieldLocked(models.StatusPendingApproval, models.AttrDescription))

	assert.True(t, IsFieldLocked(models.StatusApproved, models.AttrSalaryMax))
	assert.False(t, IsFieldLocked(models.StatusApproved, models.AttrTitle))

	assert.True(t, IsFieldLocked(models.StatusPublished, models.AttrWorkflowID))
	assert.True(t, IsFieldLocked(models.StatusOnHold, models.AttrEmploymentType))
	assert.False(t, IsFieldLocked(models.StatusPublished, models.AttrDescription))

	assert.True(t, IsFieldLocked(models.StatusClosed, models.AttrDescription))
	assert.False(t, IsFieldLocked(models.StatusClosed, models.AttrInternalNotes))

	assert.True(t, IsFieldLocked(models.StatusArchived, models.AttrInternalNotes))
	assert.True(t, IsFieldLocked(models.StatusArchived, "anything"))
}

func TestLockedFields(t *testing.T) {
	locked := LockedFields(models.StatusApproved, models.PositionAttributes)

	assert.Len(t, locked, 4)
	assert.Contains(t, locked, models.AttrBudget)

	reason, ok := LockReason(models.StatusClosed, models.AttrTitle)
	require.True(t, ok)
	assert.NotEqual(t, reason, locked[models.AttrBudget])
}

func TestAvailableActions_DerivedFromTransitions(t *testing.T) {
	for _, status := range models.AllLifecycleStatuses() {
		set := AvailableActions(status)

		for _, opt := range set.Options {
			if opt.Action == ActionClone {
				continue
			}

			assert.True(t, CanTransition(status, opt.Target), "%s offers %s", status, opt.Action)
		}

		assert.True(t, set.Has(ActionClone), status)
	}
}

func TestAvailableActions_ApprovedOffersPublish(t *testing.T) {
	set := AvailableActions(models.StatusApproved)

	assert.True(t, set.Has(ActionPublish))
	assert.False(t, set.Has(ActionRequestApproval))
	assert.False(t, set.Has(ActionResume), "resume only applies to ON_HOLD")
}

func TestAvailableActions_ReasonFlags(t *testing.T) {
	set := AvailableActions(models.StatusPendingApproval)

	for _, opt := range set.Options {
		assert.Equal(t, opt.Action == ActionReject, opt.RequiresReason, opt.Action)
	}

	archived := AvailableActions(models.StatusArchived)
	require.Len(t, archived.Options, 1)
	assert.Equal(t, ActionClone, archived.Options[0].Action)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Revert ")
	require.NoError(t, err)
	assert.Equal(t, ActionRevert, a)

	a, err = ParseAction("request-approval")
	require.NoError(t, err)
	assert.Equal(t, ActionRequestApproval, a)

	_, err = ParseAction("promote")
	require.ErrorIs(t, err, ErrUnknownAction)
}
