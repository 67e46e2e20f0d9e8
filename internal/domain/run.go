package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a clustering run.
type RunState string

const (
	RunStateIdle                    RunState = "idle"
	RunStateLoading                 RunState = "loading"
	RunStateClustering              RunState = "clustering"
	RunStateScoringClustering       RunState = "scoring_clustering"
	RunStateScoringFaces            RunState = "scoring_faces"
	RunStateSelectingRepresentative RunState = "selecting_representatives"
	RunStatePersisting              RunState = "persisting"
	RunStateDone                    RunState = "done"
	RunStateFailed                  RunState = "failed"
	RunStateCancelled               RunState = "cancelled"
)

// Terminal reports whether the state is final.
func (s RunState) Terminal() bool {
	return s == RunStateDone || s == RunStateFailed || s == RunStateCancelled
}

// RunStats are the per-stage counters a run exposes to callers.
type RunStats struct {
	ObservationsLoaded      int            `json:"observations_loaded"`
	ObservationsSkipped     int            `json:"observations_skipped"`
	ClustersFound           int            `json:"clusters_found"`
	NoiseCount              int            `json:"noise_count"`
	RepresentativesByLevel  map[string]int `json:"representatives_by_level"`
	RepresentativesSelected int            `json:"representatives_selected"`
}

// RunSnapshot is an immutable view of a run's telemetry, safe to hand to
// handlers and serializers while the run is still executing.
type RunSnapshot struct {
	ID           uuid.UUID              `json:"id"`
	CollectionID uuid.UUID              `json:"collection_id"`
	State        RunState               `json:"state"`
	Stats        RunStats               `json:"stats"`
	Quality      *ClusterQualityMetrics `json:"quality,omitempty"`
	ErrorCode    string                 `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
}
