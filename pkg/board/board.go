// Package board keeps a workflow's positions grouped by stage and reconciles
// optimistic moves with the server's answer.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/eventbus"
	"github.com/dukex/hireflow/pkg/log"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/stages"
)

// UnassignedBucket holds positions whose stage is not part of the workflow.
const UnassignedBucket = "_unassigned"

// Phase describes how the latest snapshot was produced.
type Phase string

const (
	PhaseLoaded      Phase = "loaded"
	PhaseSpeculative Phase = "speculative"
	PhaseReconciled  Phase = "reconciled"
	PhaseReverted    Phase = "reverted"
)

// Client is the part of the remote API the board needs.
type Client interface {
	MoveToStage(ctx context.Context, positionID, stageID string) (*models.Position, error)
	GetPosition(ctx context.Context, positionID string) (*models.Position, error)
}

// Snapshot is an immutable view of the board.
type Snapshot struct {
	WorkflowID string              `json:"workflow_id"`
	Phase      Phase               `json:"phase"`
	Version    uint64              `json:"version"`
	Buckets    map[string][]string `json:"buckets"`
	Pending    []string            `json:"pending,omitempty"`
}

// Listener receives every snapshot after a state change. Listeners must not
// call back into the Board.
type Listener func(Snapshot)

type pendingMove struct {
	id        string
	fromStage string
	fromIndex int
	previous  *models.Position
	loadGen   uint64
	revision  uint64
}

// Board is safe for concurrent use.
type Board struct {
	graph     *stages.Graph
	registry  *customfields.Registry
	client    Client
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	mu        sync.Mutex
	positions map[string]*models.Position
	buckets   map[string][]string
	pending   map[string]*pendingMove
	revisions map[string]uint64 // bumped on every authoritative placement
	phase     Phase
	version   uint64
	loadGen   uint64
	closed    bool

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int
	delivered    uint64
}

type Option func(*Board)

// WithRegistry lets rejected moves carry field labels and correction controls.
func WithRegistry(r *customfields.Registry) Option {
	return func(b *Board) {
		b.registry = r
	}
}

func WithPublisher(p eventbus.EventPublisher) Option {
	return func(b *Board) {
		b.publisher = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) {
		b.logger = logger
	}
}

func New(graph *stages.Graph, client Client, opts ...Option) *Board {
	b := &Board{
		graph:     graph,
		client:    client,
		logger:    log.WithModule("board"),
		positions: make(map[string]*models.Position),
		buckets:   make(map[string][]string),
		pending:   make(map[string]*pendingMove),
		revisions: make(map[string]uint64),
		phase:     PhaseLoaded,
		listeners: make(map[int]Listener),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.resetBuckets()

	return b
}

func (b *Board) WorkflowID() string {
	return b.graph.WorkflowID()
}

// Layout returns the stage grouping used to draw the board.
func (b *Board) Layout() stages.Layout {
	return b.graph.Layout()
}

// Load replaces the board with the server's positions, in the given order.
func (b *Board) Load(positions []*models.Position) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return ErrClosed
	}

	b.positions = make(map[string]*models.Position, len(positions))
	b.resetBuckets()
	b.loadGen++

	for _, p := range positions {
		if p == nil || p.ID == "" {
			continue
		}

		if _, dup := b.positions[p.ID]; dup {
			b.logger.Warn("Duplicate position in load", "workflow_id", b.WorkflowID(), "position_id", p.ID)

			continue
		}

		b.positions[p.ID] = p.Clone()
		bucket := b.bucketFor(p.StageID)
		b.buckets[bucket] = append(b.buckets[bucket], p.ID)
	}

	snap := b.commit(PhaseLoaded)
	b.mu.Unlock()

	b.notify(snap)

	return nil
}

// Snapshot returns the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.snapshotLocked()
}

// Position returns a copy of the position as currently shown.
func (b *Board) Position(id string) (*models.Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[id]
	if !ok {
		return nil, false
	}

	return p.Clone(), true
}

// Replace stores an authoritative copy of p, moving it if its stage changed.
func (b *Board) Replace(p *models.Position) error {
	if p == nil {
		return nil
	}

	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return ErrClosed
	}

	b.placeLocked(p)
	snap := b.commit(PhaseReconciled)
	b.mu.Unlock()

	b.notify(snap)

	return nil
}

// Subscribe registers l and returns a function that removes it.
func (b *Board) Subscribe(l Listener) func() {
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()

	id := b.nextListener
	b.nextListener++
	b.listeners[id] = l

	return func() {
		b.listenersMu.Lock()
		defer b.listenersMu.Unlock()

		delete(b.listeners, id)
	}
}

// Close detaches the board. Responses for moves still in flight are dropped.
func (b *Board) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.listenersMu.Lock()
	clear(b.listeners)
	b.listenersMu.Unlock()
}

func (b *Board) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}

// Check verifies every position sits in exactly one bucket.
func (b *Board) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]string, len(b.positions))

	for stageID, ids := range b.buckets {
		for _, id := range ids {
			if other, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s in %s and %s", ErrInconsistent, id, other, stageID)
			}

			if _, ok := b.positions[id]; !ok {
				return fmt.Errorf("%w: unknown position %s in %s", ErrInconsistent, id, stageID)
			}

			seen[id] = stageID
		}
	}

	if len(seen) != len(b.positions) {
		return fmt.Errorf("%w: %d positions, %d placed", ErrInconsistent, len(b.positions), len(seen))
	}

	return nil
}

func (b *Board) resetBuckets() {
	b.buckets = make(map[string][]string, b.graph.Len()+1)
	for _, s := range b.graph.Stages() {
		b.buckets[s.ID] = []string{}
	}
}

func (b *Board) bucketFor(stageID string) string {
	if _, ok := b.graph.Stage(stageID); ok {
		return stageID
	}

	b.logger.Warn("Position references unknown stage", "workflow_id", b.WorkflowID(), "stage_id", stageID)

	return UnassignedBucket
}

// placeLocked stores p and makes sure it sits in the bucket of its stage.
func (b *Board) placeLocked(p *models.Position) {
	target := b.bucketFor(p.StageID)
	b.revisions[p.ID]++

	if current, ok := b.locate(p.ID); ok {
		if current == target {
			b.positions[p.ID] = p.Clone()

			return
		}

		b.removeLocked(current, p.ID)
	}

	b.positions[p.ID] = p.Clone()
	b.buckets[target] = append(b.buckets[target], p.ID)
}

func (b *Board) locate(positionID string) (string, bool) {
	for stageID, ids := range b.buckets {
		if slices.Contains(ids, positionID) {
			return stageID, true
		}
	}

	return "", false
}

// removeLocked removes positionID from bucket and returns its former index.
func (b *Board) removeLocked(bucket, positionID string) int {
	ids := b.buckets[bucket]

	i := slices.Index(ids, positionID)
	if i < 0 {
		return -1
	}

	b.buckets[bucket] = slices.Delete(slices.Clone(ids), i, i+1)

	if bucket == UnassignedBucket && len(b.buckets[bucket]) == 0 {
		delete(b.buckets, bucket)
	}

	return i
}

func (b *Board) insertLocked(bucket, positionID string, index int) {
	ids := slices.Clone(b.buckets[bucket])
	if index < 0 || index > len(ids) {
		index = len(ids)
	}

	b.buckets[bucket] = slices.Insert(ids, index, positionID)
}

func (b *Board) commit(phase Phase) Snapshot {
	b.phase = phase
	b.version++

	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() Snapshot {
	buckets := make(map[string][]string, len(b.buckets))
	for stageID, ids := range b.buckets {
		buckets[stageID] = slices.Clone(ids)
	}

	pending := slices.Sorted(maps.Keys(b.pending))

	return Snapshot{
		WorkflowID: b.WorkflowID(),
		Phase:      b.phase,
		Version:    b.version,
		Buckets:    buckets,
		Pending:    pending,
	}
}

// notify delivers snap to every listener unless a newer snapshot was
// already delivered.
func (b *Board) notify(snap Snapshot) {
	b.listenersMu.Lock()
	defer b.listenersMu.Unlock()

	if snap.Version <= b.delivered {
		return
	}

	b.delivered = snap.Version

	for _, id := range slices.Sorted(maps.Keys(b.listeners)) {
		b.listeners[id](snap)
	}
}
