package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/hireflow/pkg/board"
	"github.com/dukex/hireflow/pkg/cache"
	"github.com/dukex/hireflow/pkg/customfields"
	"github.com/dukex/hireflow/pkg/eventbus"
	"github.com/dukex/hireflow/pkg/events"
	"github.com/dukex/hireflow/pkg/log"
	"github.com/dukex/hireflow/pkg/models"
	"github.com/dukex/hireflow/pkg/otelhelper"
	"github.com/dukex/hireflow/pkg/stages"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DefaultCacheTTL bounds how long raw workflow and stage payloads are reused.
const DefaultCacheTTL = 5 * time.Minute

// RemoteAPI is the remote recruiting API as used by the services.
type RemoteAPI interface {
	GetWorkflow(ctx context.Context, workflowID string) (*models.Workflow, error)
	ListStages(ctx context.Context, workflowID string) ([]*models.Stage, error)
	ListPositions(ctx context.Context, workflowID string) ([]*models.Position, error)
	GetPosition(ctx context.Context, positionID string) (*models.Position, error)
	UpdatePosition(ctx context.Context, positionID string, changes map[string]any) (*models.Position, error)
	MoveToStage(ctx context.Context, positionID, stageID string) (*models.Position, error)
	PerformAction(ctx context.Context, positionID, action string, payload map[string]string) (*models.Position, error)
}

// View is everything derived from one workflow load.
type View struct {
	Workflow   *models.Workflow
	Graph      *stages.Graph
	Registry   *customfields.Registry
	Board      *board.Board
	Generation uint64
	LoadedAt   time.Time

	unsubscribe func()
}

type catalogEntry struct {
	view *View
	refs int
}

// Catalog caches one View per workflow id. A view exists only after its
// load completed; Invalidate discards it and any load still running for it.
type Catalog struct {
	remote    RemoteAPI
	store     cache.Store
	ttl       time.Duration
	publisher eventbus.EventPublisher
	validate  *validator.Validate
	logger    *slog.Logger

	mu          sync.Mutex
	entries     map[string]*catalogEntry
	generations map[string]uint64
}

type CatalogOption func(*Catalog)

func WithCache(store cache.Store, ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.store = store
		c.ttl = ttl
	}
}

// WithEventPublisher bridges board updates and reloads to the event bus.
func WithEventPublisher(p eventbus.EventPublisher) CatalogOption {
	return func(c *Catalog) {
		c.publisher = p
	}
}

func WithCatalogLogger(logger *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

func NewCatalog(remote RemoteAPI, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		remote:      remote,
		ttl:         DefaultCacheTTL,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      log.WithModule("catalog"),
		entries:     make(map[string]*catalogEntry),
		generations: make(map[string]uint64),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the loaded view for workflowID.
func (c *Catalog) Get(workflowID string) (*View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[workflowID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotLoaded, workflowID)
	}

	return entry.view, nil
}

// Open returns the view for workflowID, loading it when needed.
func (c *Catalog) Open(ctx context.Context, workflowID string) (*View, error) {
	if workflowID == "" {
		return nil, NewValidationError("Open", "INVALID_WORKFLOW_ID", "workflow id is required", ErrInvalidRequest)
	}

	c.mu.Lock()

	if entry, ok := c.entries[workflowID]; ok {
		c.mu.Unlock()

		return entry.view, nil
	}

	generation := c.generations[workflowID]
	c.mu.Unlock()

	view, err := c.load(ctx, workflowID, generation)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()

	if c.generations[workflowID] != generation {
		c.mu.Unlock()
		c.discard(view)

		c.logger.InfoContext(ctx, "Discarding stale workflow view", "workflow_id", workflowID, "generation", generation)

		return nil, fmt.Errorf("%w: %s", ErrStaleView, workflowID)
	}

	if entry, ok := c.entries[workflowID]; ok {
		c.mu.Unlock()
		c.discard(view)

		return entry.view, nil
	}

	c.entries[workflowID] = &catalogEntry{view: view}
	c.mu.Unlock()

	c.bridge(ctx, view)

	return view, nil
}

// Acquire opens the view and counts a holder. Each Acquire needs a Release.
func (c *Catalog) Acquire(ctx context.Context, workflowID string) (*View, error) {
	view, err := c.Open(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if entry, ok := c.entries[workflowID]; ok && entry.view == view {
		entry.refs++
	}
	c.mu.Unlock()

	return view, nil
}

// Release drops a holder; the last holder invalidates the view.
func (c *Catalog) Release(ctx context.Context, workflowID string) {
	c.mu.Lock()

	entry, ok := c.entries[workflowID]
	if !ok {
		c.mu.Unlock()

		return
	}

	entry.refs--
	last := entry.refs <= 0
	c.mu.Unlock()

	if last {
		c.Invalidate(ctx, workflowID)
	}
}

// Invalidate discards the view for workflowID and the cached payloads. A
// load that started before the call will not be installed.
func (c *Catalog) Invalidate(ctx context.Context, workflowID string) {
	c.mu.Lock()
	c.generations[workflowID]++

	entry, ok := c.entries[workflowID]
	delete(c.entries, workflowID)
	c.mu.Unlock()

	if ok {
		c.discard(entry.view)
	}

	if c.store != nil {
		if err := c.store.Delete(ctx, cache.WorkflowKey(workflowID), cache.StagesKey(workflowID)); err != nil {
			c.logger.WarnContext(ctx, "Failed to drop cached workflow", "workflow_id", workflowID, "error", err)
		}
	}
}

// Reload discards and loads the view again.
func (c *Catalog) Reload(ctx context.Context, workflowID string) (*View, error) {
	c.Invalidate(ctx, workflowID)

	return c.Open(ctx, workflowID)
}

// Loaded returns the ids of the loaded views.
func (c *Catalog) Loaded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}

	return ids
}

// Close discards every view.
func (c *Catalog) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*catalogEntry)

	for id := range entries {
		c.generations[id]++
	}
	c.mu.Unlock()

	for _, entry := range entries {
		c.discard(entry.view)
	}
}

func (c *Catalog) discard(view *View) {
	if view.unsubscribe != nil {
		view.unsubscribe()
	}

	view.Board.Close()
}

func (c *Catalog) load(ctx context.Context, workflowID string, generation uint64) (*View, error) {
	ctx, span := otelhelper.StartSpan(ctx, otel.Tracer("hireflow/services"), "catalog.load",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	var (
		workflow   *models.Workflow
		stageList  []*models.Stage
		positions  []*models.Position
		g, loadCtx = errgroup.WithContext(ctx)
	)

	g.Go(func() error {
		var err error
		workflow, err = cached(loadCtx, c, workflowID, generation, cache.WorkflowKey(workflowID), func(ctx context.Context) (*models.Workflow, error) {
			return c.remote.GetWorkflow(ctx, workflowID)
		})

		return err
	})

	g.Go(func() error {
		var err error
		stageList, err = cached(loadCtx, c, workflowID, generation, cache.StagesKey(workflowID), func(ctx context.Context) ([]*models.Stage, error) {
			return c.remote.ListStages(ctx, workflowID)
		})

		return err
	})

	g.Go(func() error {
		var err error
		positions, err = c.remote.ListPositions(loadCtx, workflowID)

		return err
	})

	if err := g.Wait(); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if err := c.validate.Struct(workflow); err != nil {
		otelhelper.SetError(span, err)

		return nil, NewValidationError("Open", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	if len(stageList) == 0 {
		stageList = workflow.Stages
	}

	valid := make([]*models.Stage, 0, len(stageList))
	for _, s := range stageList {
		if err := c.validate.Struct(s); err != nil {
			c.logger.WarnContext(ctx, "Skipping invalid stage", "workflow_id", workflowID, "error", err)

			continue
		}

		valid = append(valid, s)
	}

	graph := stages.NewGraph(workflowID, valid)
	registry := customfields.NewRegistry(workflowID, workflow.CustomFields, c.logger)

	opts := []board.Option{board.WithRegistry(registry), board.WithLogger(log.WithModule("board"))}
	if c.publisher != nil {
		opts = append(opts, board.WithPublisher(c.publisher))
	}

	b := board.New(graph, c.remote, opts...)
	if err := b.Load(positions); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Loaded workflow view",
		"workflow_id", workflowID,
		"stages", graph.Len(),
		"positions", len(positions),
		"fields", len(registry.Definitions()),
		"warnings", len(registry.Warnings()))

	return &View{
		Workflow:   workflow,
		Graph:      graph,
		Registry:   registry,
		Board:      b,
		Generation: generation,
		LoadedAt:   time.Now().UTC(),
	}, nil
}

// bridge forwards board snapshots to the event bus and announces the reload.
func (c *Catalog) bridge(ctx context.Context, view *View) {
	if c.publisher == nil {
		return
	}

	workflowID := view.Workflow.ID

	view.unsubscribe = view.Board.Subscribe(func(snap board.Snapshot) {
		event := events.BoardUpdated{
			BaseEvent: events.NewBaseEvent(events.BoardUpdatedEvent, workflowID),
			Phase:     string(snap.Phase),
			Version:   snap.Version,
			Buckets:   snap.Buckets,
		}

		if err := c.publisher.Publish(context.Background(), workflowID, event); err != nil {
			c.logger.Warn("Failed to publish board update", "workflow_id", workflowID, "error", err)
		}
	})

	event := events.WorkflowReloaded{
		BaseEvent:  events.NewBaseEvent(events.WorkflowReloadedEvent, workflowID),
		Generation: view.Generation,
		Stages:     view.Graph.Len(),
		Fields:     len(view.Registry.Definitions()),
	}

	if err := c.publisher.Publish(ctx, workflowID, event); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish workflow reload", "workflow_id", workflowID, "error", err)
	}
}

// cached reads key from the store, falling back to fetch and filling the
// store. Store failures are logged and never fail the load. Nothing is left
// in the store once the workflow has been invalidated past generation.
func cached[T any](ctx context.Context, c *Catalog, workflowID string, generation uint64, key string, fetch func(context.Context) (T, error)) (T, error) {
	if c.store != nil {
		raw, err := c.store.Get(ctx, key)

		switch {
		case err == nil:
			var value T
			if jsonErr := json.Unmarshal(raw, &value); jsonErr == nil {
				return value, nil
			}

			c.logger.WarnContext(ctx, "Ignoring undecodable cache entry", "key", key)
		case !errors.Is(err, cache.ErrMiss):
			c.logger.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if c.store == nil || !c.current(workflowID, generation) {
		return value, nil
	}

	raw, err := json.Marshal(value)
	if err == nil {
		err = c.store.Set(ctx, key, raw, c.ttl)
	}

	if err != nil {
		c.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", err)

		return value, nil
	}

	// An Invalidate between the check and the write has already deleted key.
	if !c.current(workflowID, generation) {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.WarnContext(ctx, "Failed to drop stale cache entry", "key", key, "error", err)
		}
	}

	return value, nil
}

func (c *Catalog) current(workflowID string, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generations[workflowID] == generation
}
