package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumapix/facegraph/internal/clustering"
	"github.com/lumapix/facegraph/internal/domain"
)

// ObservationSource loads the detected faces of a collection.
type ObservationSource interface {
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]domain.FaceObservation, error)
}

// ClusterStore persists a finished clustering result atomically.
type ClusterStore interface {
	ReplaceForCollection(ctx context.Context, collectionID uuid.UUID, clusters []domain.Cluster, run domain.RunSnapshot) error
}

// FaceQualityScorer scores one face crop. It never fails; unreadable
// input yields zeroed metrics.
type FaceQualityScorer interface {
	Analyze(imagePath string, box domain.BoundingBox, confidence float64) domain.FaceQualityMetrics
}

// ClusteringScorer scores a whole partition.
type ClusteringScorer interface {
	Analyze(embeddings [][]float32, labels []int, dist clustering.DistanceFunc) domain.ClusterQualityMetrics
}

// Params configure one engine instance.
type Params struct {
	Clustering clustering.Params
	// EmbeddingDim is the expected vector dimension; zero means infer
	// it from the first usable observation.
	EmbeddingDim int
	Selection    SelectionParams
}

// Engine executes the clustering pipeline for one collection at a time:
// load, cluster, score, select representatives, persist. It owns no
// goroutines; the Coordinator decides where Execute runs.
type Engine struct {
	source        ObservationSource
	store         ClusterStore
	faceScorer    FaceQualityScorer
	clusterScorer ClusteringScorer
	dist          clustering.DistanceFunc
	params        Params
	logger        *slog.Logger
}

func New(
	source ObservationSource,
	store ClusterStore,
	faceScorer FaceQualityScorer,
	clusterScorer ClusteringScorer,
	dist clustering.DistanceFunc,
	params Params,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		source:        source,
		store:         store,
		faceScorer:    faceScorer,
		clusterScorer: clusterScorer,
		dist:          dist,
		params:        params,
		logger:        logger,
	}
}

// Execute runs the pipeline to completion, recording progress and the
// outcome on run. It never returns an error: failures land in the run's
// terminal state, and context cancellation marks the run cancelled at
// the next checkpoint.
func (e *Engine) Execute(ctx context.Context, run *Run) {
	collectionID := run.CollectionID()
	logger := e.logger.With("run_id", run.ID(), "collection_id", collectionID)

	run.Transition(domain.RunStateLoading)
	observations, err := e.source.ListByCollection(ctx, collectionID)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("run cancelled while loading")
			run.MarkCancelled()
			return
		}
		logger.Error("loading observations failed", "error", err)
		run.Fail(domain.RunErrorLoadFailed, err)
		return
	}

	usable, embeddings := e.filterUsable(observations, logger)
	run.UpdateStats(func(s *domain.RunStats) {
		s.ObservationsLoaded = len(observations)
		s.ObservationsSkipped = len(observations) - len(usable)
	})
	logger.Info("observations loaded",
		"total", len(observations),
		"usable", len(usable),
	)

	if e.checkpoint(ctx, run, logger) {
		return
	}

	// Nothing to cluster: wipe any previous result so readers see the
	// collection as empty, then finish cleanly.
	if len(usable) == 0 {
		e.persist(ctx, run, collectionID, nil, logger)
		return
	}

	run.Transition(domain.RunStateClustering)
	labels, err := clustering.DBSCAN(embeddings, e.dist, e.params.Clustering)
	if err != nil {
		logger.Error("clustering failed", "error", err)
		run.Fail(domain.RunErrorClusteringFailed, err)
		return
	}

	groups := clustering.Groups(labels)
	noise := 0
	for _, l := range labels {
		if l == clustering.Noise {
			noise++
		}
	}
	run.UpdateStats(func(s *domain.RunStats) {
		s.ClustersFound = len(groups)
		s.NoiseCount = noise
	})
	logger.Info("clustering finished", "clusters", len(groups), "noise", noise)

	if e.checkpoint(ctx, run, logger) {
		return
	}

	run.Transition(domain.RunStateScoringClustering)
	quality := e.clusterScorer.Analyze(embeddings, labels, e.dist)
	run.SetQuality(&quality)
	logger.Info("clustering quality scored",
		"overall", quality.OverallQuality,
		"label", quality.QualityLabel,
	)

	// Only clustered observations are scored; noise crops are never read.
	run.Transition(domain.RunStateScoringFaces)
	faceMetrics := make(map[int]domain.FaceQualityMetrics)
	for _, group := range groups {
		for _, idx := range group {
			if e.checkpoint(ctx, run, logger) {
				return
			}
			obs := usable[idx]
			faceMetrics[idx] = e.faceScorer.Analyze(obs.SourceImagePath, obs.Box, obs.DetectorConfidence)
		}
	}

	run.Transition(domain.RunStateSelectingRepresentative)
	clusters := e.buildClusters(run, usable, embeddings, labels, groups, faceMetrics, quality)

	if e.checkpoint(ctx, run, logger) {
		return
	}

	e.persist(ctx, run, collectionID, clusters, logger)
}

// filterUsable drops observations without a usable embedding. The first
// usable observation fixes the dimension when none is configured;
// mismatched vectors after that are skipped, not fatal.
func (e *Engine) filterUsable(observations []domain.FaceObservation, logger *slog.Logger) ([]domain.FaceObservation, [][]float32) {
	dim := e.params.EmbeddingDim

	var usable []domain.FaceObservation
	var embeddings [][]float32
	for _, obs := range observations {
		if len(obs.Embedding) == 0 {
			logger.Warn("skipping observation without embedding", "observation_id", obs.ID)
			continue
		}
		if dim == 0 {
			dim = len(obs.Embedding)
		}
		if !obs.HasEmbedding(dim) {
			logger.Warn("skipping observation with mismatched embedding",
				"observation_id", obs.ID,
				"dim", len(obs.Embedding),
				"expected", dim,
			)
			continue
		}
		usable = append(usable, obs)
		embeddings = append(embeddings, obs.Embedding)
	}
	return usable, embeddings
}

// buildClusters assembles the persistable clusters: stable key,
// centroid, representative and quality snapshot per group.
func (e *Engine) buildClusters(
	run *Run,
	usable []domain.FaceObservation,
	embeddings [][]float32,
	labels []int,
	groups [][]int,
	faceMetrics map[int]domain.FaceQualityMetrics,
	quality domain.ClusterQualityMetrics,
) []domain.Cluster {
	collectionID := run.CollectionID()
	now := time.Now()

	clusters := make([]domain.Cluster, 0, len(groups))
	for position, group := range groups {
		memberIDs := make([]uuid.UUID, len(group))
		vectors := make([][]float32, len(group))
		for i, idx := range group {
			memberIDs[i] = usable[idx].ID
			vectors[i] = embeddings[idx]
		}

		centroid := clustering.Centroid(vectors)

		members := make([]candidate, len(group))
		for i, idx := range group {
			d := 0.0
			if centroid != nil {
				d = e.dist(embeddings[idx], centroid)
			}
			members[i] = candidate{
				obs:     usable[idx],
				quality: faceMetrics[idx],
				dist:    d,
			}
		}

		repID, level := selectRepresentative(members, centroid != nil, e.params.Selection)
		run.UpdateStats(func(s *domain.RunStats) {
			s.RepresentativesByLevel[level.String()]++
			s.RepresentativesSelected++
		})

		snapshot := domain.QualitySnapshot{OverallQuality: quality.OverallQuality}
		if pc, ok := quality.PerCluster[labels[group[0]]]; ok {
			snapshot.Compactness = pc.Compactness
			snapshot.Separation = pc.Separation
		}

		clusters = append(clusters, domain.Cluster{
			Key:              domain.ClusterKey(memberIDs),
			CollectionID:     collectionID,
			MemberIDs:        memberIDs,
			Centroid:         centroid,
			RepresentativeID: repID,
			SelectionLevel:   level,
			Quality:          snapshot,
			Position:         position,
			CreatedAt:        now,
		})
	}
	return clusters
}

// persist atomically replaces the collection's clusters together with
// the run's audit row, then finishes the run. A failed persist leaves
// the previous result untouched.
func (e *Engine) persist(ctx context.Context, run *Run, collectionID uuid.UUID, clusters []domain.Cluster, logger *slog.Logger) {
	run.Transition(domain.RunStatePersisting)

	audit := run.Snapshot()
	audit.State = domain.RunStateDone
	now := time.Now()
	audit.FinishedAt = &now

	if err := e.store.ReplaceForCollection(ctx, collectionID, clusters, audit); err != nil {
		if ctx.Err() != nil {
			logger.Info("run cancelled while persisting")
			run.MarkCancelled()
			return
		}
		logger.Error("persisting clusters failed", "error", err)
		run.Fail(domain.RunErrorPersistFailed, fmt.Errorf("replace clusters: %w", err))
		return
	}

	run.MarkDone()
	logger.Info("run finished", "clusters", len(clusters))
}

// checkpoint reports whether the run was cancelled, marking the run
// state when it was.
func (e *Engine) checkpoint(ctx context.Context, run *Run, logger *slog.Logger) bool {
	select {
	case <-ctx.Done():
		logger.Info("run cancelled")
		run.MarkCancelled()
		return true
	default:
		return false
	}
}
