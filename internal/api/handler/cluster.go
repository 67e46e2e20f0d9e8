package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lumapix/facegraph/internal/domain"
)

const defaultRunHistoryLimit = 20

// RunCoordinator launches and tracks clustering runs.
type RunCoordinator interface {
	Launch(collectionID uuid.UUID) (domain.RunSnapshot, error)
	Get(runID uuid.UUID) (domain.RunSnapshot, error)
	Cancel(runID uuid.UUID) error
}

// ClusterReader serves persisted clustering results.
type ClusterReader interface {
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]domain.Cluster, error)
	ListRunsByCollection(ctx context.Context, collectionID uuid.UUID, limit int) ([]domain.RunSnapshot, error)
}

// ClusterHandler handles clustering run and result requests
type ClusterHandler struct {
	coordinator RunCoordinator
	clusters    ClusterReader
	logger      *slog.Logger
}

func NewClusterHandler(coordinator RunCoordinator, clusters ClusterReader, logger *slog.Logger) *ClusterHandler {
	return &ClusterHandler{
		coordinator: coordinator,
		clusters:    clusters,
		logger:      logger,
	}
}

// ClusterResponse is the wire shape of one persisted cluster.
type ClusterResponse struct {
	Key              uuid.UUID              `json:"key"`
	CollectionID     uuid.UUID              `json:"collection_id"`
	Size             int                    `json:"size"`
	MemberIDs        []uuid.UUID            `json:"member_ids"`
	RepresentativeID uuid.UUID              `json:"representative_id"`
	SelectionLevel   string                 `json:"selection_level"`
	Quality          domain.QualitySnapshot `json:"quality"`
	Position         int                    `json:"position"`
	CreatedAt        time.Time              `json:"created_at"`
}

// ListClustersResponse wraps the clusters of a collection.
type ListClustersResponse struct {
	CollectionID uuid.UUID         `json:"collection_id"`
	Count        int               `json:"count"`
	Clusters     []ClusterResponse `json:"clusters"`
}

// ListRunsResponse wraps a collection's run history.
type ListRunsResponse struct {
	CollectionID uuid.UUID            `json:"collection_id"`
	Runs         []domain.RunSnapshot `json:"runs"`
}

// CancelRunResponse acknowledges a cancellation request.
type CancelRunResponse struct {
	RunID  uuid.UUID `json:"run_id"`
	Status string    `json:"status"`
}

// StartRun POST /v1/collections/:collectionID/cluster-runs - start a clustering run
func (h *ClusterHandler) StartRun(c *fiber.Ctx) error {
	collectionID, err := uuid.Parse(c.Params("collectionID"))
	if err != nil {
		return domain.ErrInvalidCollectionID
	}

	snapshot, err := h.coordinator.Launch(collectionID)
	if err != nil {
		return err
	}

	h.logger.Info("clustering run accepted",
		"run_id", snapshot.ID,
		"collection_id", collectionID,
	)

	return c.Status(fiber.StatusAccepted).JSON(snapshot)
}

// GetRun GET /v1/cluster-runs/:runID - fetch run telemetry
func (h *ClusterHandler) GetRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runID"))
	if err != nil {
		return domain.ErrInvalidRunID
	}

	snapshot, err := h.coordinator.Get(runID)
	if err != nil {
		return err
	}

	return c.JSON(snapshot)
}

// CancelRun DELETE /v1/cluster-runs/:runID - request cancellation
func (h *ClusterHandler) CancelRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runID"))
	if err != nil {
		return domain.ErrInvalidRunID
	}

	if err := h.coordinator.Cancel(runID); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(CancelRunResponse{
		RunID:  runID,
		Status: "cancelling",
	})
}

// ListClusters GET /v1/collections/:collectionID/clusters - persisted result
func (h *ClusterHandler) ListClusters(c *fiber.Ctx) error {
	collectionID, err := uuid.Parse(c.Params("collectionID"))
	if err != nil {
		return domain.ErrInvalidCollectionID
	}

	clusters, err := h.clusters.ListByCollection(c.Context(), collectionID)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}
	if len(clusters) == 0 {
		return domain.ErrClustersNotFound
	}

	out := make([]ClusterResponse, len(clusters))
	for i, cluster := range clusters {
		out[i] = ClusterResponse{
			Key:              cluster.Key,
			CollectionID:     cluster.CollectionID,
			Size:             len(cluster.MemberIDs),
			MemberIDs:        cluster.MemberIDs,
			RepresentativeID: cluster.RepresentativeID,
			SelectionLevel:   cluster.SelectionLevel.String(),
			Quality:          cluster.Quality,
			Position:         cluster.Position,
			CreatedAt:        cluster.CreatedAt,
		}
	}

	return c.JSON(ListClustersResponse{
		CollectionID: collectionID,
		Count:        len(out),
		Clusters:     out,
	})
}

// ListRuns GET /v1/collections/:collectionID/cluster-runs - run history
func (h *ClusterHandler) ListRuns(c *fiber.Ctx) error {
	collectionID, err := uuid.Parse(c.Params("collectionID"))
	if err != nil {
		return domain.ErrInvalidCollectionID
	}

	limit := c.QueryInt("limit", defaultRunHistoryLimit)
	if limit <= 0 {
		limit = defaultRunHistoryLimit
	}

	runs, err := h.clusters.ListRunsByCollection(c.Context(), collectionID, limit)
	if err != nil {
		return domain.ErrInternal.WithError(err)
	}

	return c.JSON(ListRunsResponse{
		CollectionID: collectionID,
		Runs:         runs,
	})
}
