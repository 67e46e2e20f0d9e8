package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumapix/facegraph/internal/domain"
)

// Coordinator owns the run registry: it launches runs, enforces one
// active run per collection, serves snapshots, and prunes finished runs
// after the retention window.
type Coordinator struct {
	engine    *Engine
	logger    *slog.Logger
	retention time.Duration

	mu     sync.Mutex
	runs   map[uuid.UUID]*Run // by run id
	active map[uuid.UUID]*Run // by collection id
}

func NewCoordinator(engine *Engine, retention time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		engine:    engine,
		logger:    logger,
		retention: retention,
		runs:      map[uuid.UUID]*Run{},
		active:    map[uuid.UUID]*Run{},
	}
}

// Launch starts a run for the collection in the background and returns
// its initial snapshot. A collection with a non-terminal run rejects a
// second one.
func (c *Coordinator) Launch(collectionID uuid.UUID) (domain.RunSnapshot, error) {
	c.mu.Lock()

	if current, ok := c.active[collectionID]; ok && !current.Terminal() {
		c.mu.Unlock()
		return domain.RunSnapshot{}, domain.ErrRunInProgress
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := NewRun(collectionID, cancel)
	c.runs[run.ID()] = run
	c.active[collectionID] = run
	c.mu.Unlock()

	c.logger.Info("run launched", "run_id", run.ID(), "collection_id", collectionID)

	go func() {
		defer cancel()
		c.engine.Execute(ctx, run)
		c.release(collectionID, run)
	}()

	return run.Snapshot(), nil
}

func (c *Coordinator) release(collectionID uuid.UUID, run *Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[collectionID] == run {
		delete(c.active, collectionID)
	}
}

// Get returns the snapshot of a known run.
func (c *Coordinator) Get(runID uuid.UUID) (domain.RunSnapshot, error) {
	c.mu.Lock()
	run, ok := c.runs[runID]
	c.mu.Unlock()

	if !ok {
		return domain.RunSnapshot{}, domain.ErrRunNotFound
	}
	return run.Snapshot(), nil
}

// Cancel requests cancellation of a running run. Finished runs cannot
// be cancelled.
func (c *Coordinator) Cancel(runID uuid.UUID) error {
	c.mu.Lock()
	run, ok := c.runs[runID]
	c.mu.Unlock()

	if !ok {
		return domain.ErrRunNotFound
	}
	if run.Terminal() {
		return domain.ErrRunFinished
	}

	run.Cancel()
	c.logger.Info("run cancellation requested", "run_id", runID)
	return nil
}

// Janitor prunes terminal runs past the retention window. Run it in its
// own goroutine; it exits when the context is cancelled.
func (c *Coordinator) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("run janitor started", "interval", interval, "retention", c.retention)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("run janitor stopped")
			return
		case <-ticker.C:
			c.prune(time.Now())
		}
	}
}

func (c *Coordinator) prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for id, run := range c.runs {
		snap := run.Snapshot()
		if !snap.State.Terminal() || snap.FinishedAt == nil {
			continue
		}
		if now.Sub(*snap.FinishedAt) >= c.retention {
			delete(c.runs, id)
			pruned++
		}
	}

	if pruned > 0 {
		c.logger.Debug("pruned finished runs", "count", pruned)
	}
}
