package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumapix/facegraph/internal/domain"
)

// Run is the mutable telemetry of one clustering run. All mutation goes
// through the mutex; handlers read it concurrently via Snapshot while
// the engine advances it.
type Run struct {
	mu sync.Mutex

	id           uuid.UUID
	collectionID uuid.UUID
	state        domain.RunState
	stats        domain.RunStats
	quality      *domain.ClusterQualityMetrics
	errCode      string
	errMsg       string
	startedAt    time.Time
	finishedAt   *time.Time

	cancel context.CancelFunc
}

func NewRun(collectionID uuid.UUID, cancel context.CancelFunc) *Run {
	return &Run{
		id:           uuid.New(),
		collectionID: collectionID,
		state:        domain.RunStateIdle,
		stats: domain.RunStats{
			RepresentativesByLevel: map[string]int{},
		},
		startedAt: time.Now(),
		cancel:    cancel,
	}
}

func (r *Run) ID() uuid.UUID {
	return r.id
}

func (r *Run) CollectionID() uuid.UUID {
	return r.collectionID
}

// Transition moves the run to the next pipeline stage. Terminal states
// are set through MarkDone, Fail and MarkCancelled instead.
func (r *Run) Transition(state domain.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.state = state
}

func (r *Run) UpdateStats(update func(stats *domain.RunStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.stats)
}

func (r *Run) SetQuality(quality *domain.ClusterQualityMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quality = quality
}

func (r *Run) MarkDone() {
	r.finish(domain.RunStateDone, "", "")
}

func (r *Run) Fail(code string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.finish(domain.RunStateFailed, code, msg)
}

func (r *Run) MarkCancelled() {
	r.finish(domain.RunStateCancelled, "", "")
}

func (r *Run) finish(state domain.RunState, code, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.state = state
	r.errCode = code
	r.errMsg = msg
	now := time.Now()
	r.finishedAt = &now
}

// Cancel requests cancellation. The engine observes the context at its
// next checkpoint and marks the run cancelled itself.
func (r *Run) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Run) Terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Terminal()
}

func (r *Run) Snapshot() domain.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	byLevel := make(map[string]int, len(r.stats.RepresentativesByLevel))
	for k, v := range r.stats.RepresentativesByLevel {
		byLevel[k] = v
	}
	stats := r.stats
	stats.RepresentativesByLevel = byLevel

	var quality *domain.ClusterQualityMetrics
	if r.quality != nil {
		q := *r.quality
		quality = &q
	}

	var finished *time.Time
	if r.finishedAt != nil {
		f := *r.finishedAt
		finished = &f
	}

	return domain.RunSnapshot{
		ID:           r.id,
		CollectionID: r.collectionID,
		State:        r.state,
		Stats:        stats,
		Quality:      quality,
		ErrorCode:    r.errCode,
		ErrorMessage: r.errMsg,
		StartedAt:    r.startedAt,
		FinishedAt:   finished,
	}
}
