package board

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/events"
	"github.com/dukex/hireflow/pkg/fieldrender"
	"github.com/dukex/hireflow/pkg/mocks"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/remote"
	"github.com/dukex/hireflow/pkg/stages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testGraph() *stages.Graph {
	return stages.NewGraph("wf-1", []*models.Stage{
		{ID: "screen", Name: "Screen", Order: 1, Kind: models.StageKindInitial, DisplayMode: models.DisplayColumn, IsActive: true},
		{ID: "offer", Name: "Offer", Order: 2, Kind: models.StageKindStandard, DisplayMode: models.DisplayColumn, IsActive: true},
		{ID: "hired", Name: "Hired", Order: 3, Kind: models.StageKindSuccess, DisplayMode: models.DisplayColumn, IsActive: true},
		{ID: "archive", Name: "Archive", Order: 4, Kind: models.StageKindFail, DisplayMode: models.DisplayHidden, IsActive: true},
	})
}

func position(id, stageID string) *models.Position {
	return &models.Position{ID: id, WorkflowID: "wf-1", StageID: stageID, Status: models.StatusPublished, Title: id}
}

func loaded(t *testing.T, client Client, opts ...Option) *Board {
	t.Helper()

	b := New(testGraph(), client, opts...)
	require.NoError(t, b.Load([]*models.Position{
		position("p1", "screen"),
		position("p2", "screen"),
		position("p3", "screen"),
		position("p4", "offer"),
	}))

	return b
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) listen(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snaps = append(r.snaps, s)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Phase, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Phase)
	}

	return out
}

func TestLoad_BucketsEveryStage(t *testing.T) {
	b := loaded(t, new(mocks.MockRemoteAPI))

	snap := b.Snapshot()
	assert.Equal(t, PhaseLoaded, snap.Phase)
	assert.Equal(t, []string{"p1", "p2", "p3"}, snap.Buckets["screen"])
	assert.Equal(t, []string{"p4"}, snap.Buckets["offer"])
	assert.Empty(t, snap.Buckets["hired"])
	assert.Contains(t, snap.Buckets, "archive", "hidden stages still own a bucket")
	require.NoError(t, b.Check())
}

func TestLoad_UnknownStageGoesToUnassigned(t *testing.T) {
	b := New(testGraph(), new(mocks.MockRemoteAPI))
	require.NoError(t, b.Load([]*models.Position{position("p1", "gone"), position("p1", "screen")}))

	snap := b.Snapshot()
	assert.Equal(t, []string{"p1"}, snap.Buckets[UnassignedBucket])
	assert.Empty(t, snap.Buckets["screen"], "duplicate ids are ignored")
	require.NoError(t, b.Check())
}

func TestMove_ConfirmUsesAuthoritativePosition(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	bus := new(mocks.MockEventBus)

	moved := position("p1", "offer")
	reloaded := position("p1", "offer")
	reloaded.Status = models.StatusOnHold

	client.On("MoveToStage", mock.Anything, "p1", "offer").Return(moved, nil)
	client.On("GetPosition", mock.Anything, "p1").Return(reloaded, nil)
	bus.On("Publish", mock.Anything, "p1", mock.MatchedBy(func(e events.PositionMoved) bool {
		return e.ToStageID == "offer" && e.Status == models.StatusOnHold
	})).Return(nil)

	b := loaded(t, client, WithPublisher(bus))

	rec := &recorder{}
	b.Subscribe(rec.listen)

	out, err := b.Move(context.Background(), "p1", "offer")
	require.NoError(t, err)

	assert.Equal(t, OutcomeConfirmed, out.Kind)
	assert.NotEmpty(t, out.MoveID)
	assert.Equal(t, models.StatusOnHold, out.Position.Status)
	assert.Equal(t, []string{"p2", "p3"}, out.Snapshot.Buckets["screen"])
	assert.Equal(t, []string{"p4", "p1"}, out.Snapshot.Buckets["offer"])
	assert.Equal(t, []Phase{PhaseSpeculative, PhaseReconciled}, rec.phases())

	p, ok := b.Position("p1")
	require.True(t, ok)
	assert.Equal(t, models.StatusOnHold, p.Status)
	assert.Empty(t, b.Snapshot().Pending)
	require.NoError(t, b.Check())

	client.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestMove_ServerSideStageChangeWins(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	client.On("MoveToStage", mock.Anything, "p1", "offer").Return(position("p1", "offer"), nil)
	client.On("GetPosition", mock.Anything, "p1").Return(position("p1", "hired"), nil)

	b := loaded(t, client)

	out, err := b.Move(context.Background(), "p1", "offer")
	require.NoError(t, err)

	assert.Equal(t, []string{"p4"}, out.Snapshot.Buckets["offer"])
	assert.Equal(t, []string{"p1"}, out.Snapshot.Buckets["hired"])
	require.NoError(t, b.Check())
}

func TestMove_ReloadFailureFallsBackToMoveResponse(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	client.On("MoveToStage", mock.Anything, "p1", "offer").Return(position("p1", "offer"), nil)
	client.On("GetPosition", mock.Anything, "p1").Return(nil, errors.New("timeout"))

	b := loaded(t, client)

	out, err := b.Move(context.Background(), "p1", "offer")
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, out.Kind)
	assert.Equal(t, "offer", out.Position.StageID)
}

func TestMove_ValidationRejectionRevertsToOriginalIndex(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	client.On("MoveToStage", mock.Anything, "p2", "offer").Return(nil, &remote.ValidationError{
		Op:     "MoveToStage",
		Fields: models.FieldErrors{"salary_max": {"must be set"}},
	})

	b := loaded(t, client)

	rec := &recorder{}
	b.Subscribe(rec.listen)

	out, err := b.Move(context.Background(), "p2", "offer")
	require.NoError(t, err)

	assert.Equal(t, OutcomeRejected, out.Kind)
	assert.Equal(t, []string{"p1", "p2", "p3"}, out.Snapshot.Buckets["screen"])
	assert.Equal(t, []string{"p4"}, out.Snapshot.Buckets["offer"])
	assert.Equal(t, []Phase{PhaseSpeculative, PhaseReverted}, rec.phases())

	require.NotNil(t, out.Rejection)
	require.Len(t, out.Rejection.Errors, 1)
	assert.Equal(t, "salary_max", out.Rejection.Errors[0].Field)
	assert.Equal(t, []string{"must be set"}, out.Rejection.Errors[0].Messages)
	assert.Equal(t, fieldrender.TabCompensation, out.Rejection.Errors[0].Tab)
	assert.Equal(t, "/positions/p2/edit?tab=compensation", out.Rejection.EditPath)
	assert.Empty(t, out.Message)

	p, _ := b.Position("p2")
	assert.Equal(t, "screen", p.StageID)
	require.NoError(t, b.Check())
}

func TestMove_RejectionOfCustomFieldCarriesControls(t *testing.T) {
	registry := customfields.NewRegistry("wf-1", models.CustomFieldConfig{
		FieldLabels:   map[string]string{"years_experience": "Years of experience"},
		FieldTypes:    map[string]string{"years_experience": "NUMBER"},
		FieldRequired: map[string]bool{"years_experience": true},
	}, nil)

	client := new(mocks.MockRemoteAPI)
	client.On("MoveToStage", mock.Anything, "p1", "offer").Return(nil, &remote.ValidationError{
		Fields: models.FieldErrors{"years_experience": {"is required"}},
	})

	b := loaded(t, client, WithRegistry(registry))

	out, err := b.Move(context.Background(), "p1", "offer")
	require.NoError(t, err)

	require.Len(t, out.Rejection.Errors, 1)
	assert.Equal(t, "Years of experience", out.Rejection.Errors[0].Label)
	assert.Equal(t, fieldrender.TabCustomFields, out.Rejection.Errors[0].Tab)
	require.Len(t, out.Rejection.Controls, 1)
	assert.Equal(t, fieldrender.WidgetNumber, out.Rejection.Controls[0].Widget)
	assert.Equal(t, []string{"is required"}, out.Rejection.Controls[0].Invalid)
}

func TestMove_TransportFailureShowsGenericMessage(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	bus := new(mocks.MockEventBus)

	client.On("MoveToStage", mock.Anything, "p4", "hired").Return(nil, &remote.TransportError{
		Op: "MoveToStage", StatusCode: 503, Err: errors.New("unavailable"),
	})
	bus.On("Publish", mock.Anything, "p4", mock.AnythingOfType("events.PositionMoveRejected")).Return(nil)

	b := loaded(t, client, WithPublisher(bus))

	out, err := b.Move(context.Background(), "p4", "hired")
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, FailedMoveMessage, out.Message)
	assert.Nil(t, out.Rejection)
	assert.True(t, remote.IsTransportFailure(out.Err))
	assert.Equal(t, []string{"p4"}, out.Snapshot.Buckets["offer"])
	bus.AssertExpectations(t)
}

func TestMove_SameStageIsNoop(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	b := loaded(t, client)

	before := b.Snapshot()

	out, err := b.Move(context.Background(), "p1", "screen")
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoop, out.Kind)
	assert.Equal(t, before, b.Snapshot())
	client.AssertNotCalled(t, "MoveToStage", mock.Anything, mock.Anything, mock.Anything)
}

func TestMove_UnknownIDs(t *testing.T) {
	b := loaded(t, new(mocks.MockRemoteAPI))

	_, err := b.Move(context.Background(), "nope", "offer")
	require.ErrorIs(t, err, ErrUnknownPosition)

	_, err = b.Move(context.Background(), "p1", "nowhere")
	require.ErrorIs(t, err, ErrUnknownStage)
}

func TestMove_SecondMoveWhilePendingIsRefused(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	release := make(chan struct{})
	started := make(chan struct{})

	client.On("MoveToStage", mock.Anything, "p1", "offer").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(position("p1", "offer"), nil)
	client.On("GetPosition", mock.Anything, "p1").Return(position("p1", "offer"), nil)

	b := loaded(t, client)

	done := make(chan *MoveOutcome)
	go func() {
		out, _ := b.Move(context.Background(), "p1", "offer")
		done <- out
	}()

	<-started
	assert.Equal(t, []string{"p1"}, b.Snapshot().Pending)

	_, err := b.Move(context.Background(), "p1", "hired")
	require.ErrorIs(t, err, ErrMovePending)

	close(release)
	out := <-done
	assert.Equal(t, OutcomeConfirmed, out.Kind)
	require.NoError(t, b.Check())
}

func TestMove_LateResponseAfterCloseIsDropped(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	release := make(chan struct{})
	started := make(chan struct{})

	client.On("MoveToStage", mock.Anything, "p1", "offer").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, &remote.TransportError{Op: "MoveToStage", Err: errors.New("reset")})

	b := loaded(t, client)

	done := make(chan *MoveOutcome)
	go func() {
		out, _ := b.Move(context.Background(), "p1", "offer")
		done <- out
	}()

	<-started
	speculative := b.Snapshot()
	b.Close()
	close(release)

	out := <-done
	assert.Equal(t, OutcomeDropped, out.Kind)
	assert.Equal(t, speculative.Buckets, b.Snapshot().Buckets, "no state change after close")

	_, err := b.Move(context.Background(), "p2", "offer")
	require.ErrorIs(t, err, ErrClosed)
}

func TestMove_RevertSkippedAfterReload(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	release := make(chan struct{})
	started := make(chan struct{})

	client.On("MoveToStage", mock.Anything, "p1", "offer").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, &remote.TransportError{Op: "MoveToStage", Err: errors.New("reset")})

	b := loaded(t, client)

	done := make(chan *MoveOutcome)
	go func() {
		out, _ := b.Move(context.Background(), "p1", "offer")
		done <- out
	}()

	<-started
	require.NoError(t, b.Load([]*models.Position{position("p1", "hired")}))
	close(release)

	out := <-done
	assert.Equal(t, OutcomeFailed, out.Kind)
	assert.Equal(t, []string{"p1"}, b.Snapshot().Buckets["hired"])
	assert.Empty(t, b.Snapshot().Buckets["screen"])
	require.NoError(t, b.Check())
}

func TestMove_RejectionKeepsReplaceThatLandedInFlight(t *testing.T) {
	client := new(mocks.MockRemoteAPI)

	var b *Board

	held := position("p1", "screen")
	held.Status = models.StatusOnHold

	client.On("MoveToStage", mock.Anything, "p1", "offer").
		Run(func(mock.Arguments) {
			require.NoError(t, b.Replace(held))
		}).
		Return(nil, &remote.ValidationError{Op: "MoveToStage", Fields: models.FieldErrors{"salary_max": {"must be set"}}})

	b = loaded(t, client)

	out, err := b.Move(context.Background(), "p1", "offer")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, out.Kind)

	got, ok := b.Position("p1")
	require.True(t, ok)
	assert.Equal(t, models.StatusOnHold, got.Status)
	assert.Equal(t, "screen", got.StageID)
	assert.Equal(t, models.StatusOnHold, out.Position.Status)

	assert.Contains(t, b.Snapshot().Buckets["screen"], "p1")
	assert.NotContains(t, b.Snapshot().Buckets["offer"], "p1")
	require.NoError(t, b.Check())
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	b := New(testGraph(), new(mocks.MockRemoteAPI))

	rec := &recorder{}
	cancel := b.Subscribe(rec.listen)

	require.NoError(t, b.Load(nil))
	cancel()
	require.NoError(t, b.Load(nil))

	assert.Len(t, rec.phases(), 1)
}

func TestReplace_MovesToAuthoritativeStage(t *testing.T) {
	b := loaded(t, new(mocks.MockRemoteAPI))

	updated := position("p4", "hired")
	require.NoError(t, b.Replace(updated))

	snap := b.Snapshot()
	assert.Empty(t, snap.Buckets["offer"])
	assert.Equal(t, []string{"p4"}, snap.Buckets["hired"])
	require.NoError(t, b.Check())
}

func TestConcurrentMovesKeepOneBucketPerPosition(t *testing.T) {
	client := new(mocks.MockRemoteAPI)
	for _, id := range []string{"p1", "p2", "p3"} {
		client.On("MoveToStage", mock.Anything, id, "offer").Return(position(id, "offer"), nil)
		client.On("GetPosition", mock.Anything, id).Return(position(id, "offer"), nil)
	}

	client.On("MoveToStage", mock.Anything, "p4", "hired").Return(nil, &remote.ValidationError{
		Fields: models.FieldErrors{"salary_max": {"must be set"}},
	})

	b := loaded(t, client)

	var wg sync.WaitGroup
	for _, id := range []string{"p1", "p2", "p3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Move(context.Background(), id, "offer")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = b.Move(context.Background(), "p4", "hired")
	}()

	wg.Wait()

	require.NoError(t, b.Check())

	snap := b.Snapshot()
	assert.Empty(t, snap.Buckets["screen"])
	assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4"}, snap.Buckets["offer"])
	assert.Empty(t, snap.Pending)
}
