package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lumapix/facegraph/internal/domain"
)

type ObservationRepository struct {
	pool PgxPool
}

func NewObservationRepository(pool PgxPool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

// ListByCollection loads every detected face of a collection, ordered by
// creation time so downstream processing is deterministic. Observations
// without an embedding are returned with a nil Embedding and left for
// the caller to skip.
func (r *ObservationRepository) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]domain.FaceObservation, error) {
	query := `
		SELECT id, collection_id, source_image_path, crop_path,
		       box_x, box_y, box_width, box_height,
		       detector_confidence, embedding, created_at
		FROM face_observations
		WHERE collection_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.FaceObservation
	for rows.Next() {
		var obs domain.FaceObservation
		var embedding *pgvector.Vector

		err := rows.Scan(
			&obs.ID,
			&obs.CollectionID,
			&obs.SourceImagePath,
			&obs.CropPath,
			&obs.Box.X,
			&obs.Box.Y,
			&obs.Box.Width,
			&obs.Box.Height,
			&obs.DetectorConfidence,
			&embedding,
			&obs.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}

		if embedding != nil {
			obs.Embedding = embedding.Slice()
		}
		observations = append(observations, obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}

	return observations, nil
}

func (r *ObservationRepository) CountByCollection(ctx context.Context, collectionID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM face_observations WHERE collection_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, collectionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return count, nil
}
