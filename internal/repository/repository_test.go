package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumapix/facegraph/internal/domain"
)

// ObservationRepository Tests

func TestObservationRepository_ListByCollection(t *testing.T) {
	collectionID := uuid.New()
	obsWithEmbedding := uuid.New()
	obsWithoutEmbedding := uuid.New()
	now := time.Now()

	observationColumns := []string{
		"id", "collection_id", "source_image_path", "crop_path",
		"box_x", "box_y", "box_width", "box_height",
		"detector_confidence", "embedding", "created_at",
	}

	tests := []struct {
		name      string
		mockSetup func(mock pgxmock.PgxPoolIface)
		wantLen   int
		wantErr   string
		check     func(t *testing.T, got []domain.FaceObservation)
	}{
		{
			name: "mixed embedding presence",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				embedding := pgvector.NewVector([]float32{0.1, 0.2, 0.3})
				rows := pgxmock.NewRows(observationColumns).
					AddRow(
						obsWithEmbedding, collectionID, "/photos/img1.jpg", "/crops/f1.jpg",
						10, 20, 110, 120,
						float64(0.98), &embedding, now,
					).
					AddRow(
						obsWithoutEmbedding, collectionID, "/photos/img2.jpg", "/crops/f2.jpg",
						5, 5, 60, 70,
						float64(0.42), (*pgvector.Vector)(nil), now,
					)

				mock.ExpectQuery(`SELECT id, collection_id, source_image_path, crop_path, box_x, box_y, box_width, box_height, detector_confidence, embedding, created_at FROM face_observations WHERE collection_id = \$1 ORDER BY created_at, id`).
					WithArgs(collectionID).
					WillReturnRows(rows)
			},
			wantLen: 2,
			check: func(t *testing.T, got []domain.FaceObservation) {
				assert.Equal(t, obsWithEmbedding, got[0].ID)
				assert.Equal(t, []float32{0.1, 0.2, 0.3}, got[0].Embedding)
				assert.Equal(t, domain.BoundingBox{X: 10, Y: 20, Width: 110, Height: 120}, got[0].Box)
				assert.Nil(t, got[1].Embedding, "missing embedding must stay nil for the caller to skip")
			},
		},
		{
			name: "empty collection",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM face_observations`).
					WithArgs(collectionID).
					WillReturnRows(pgxmock.NewRows(observationColumns))
			},
			wantLen: 0,
		},
		{
			name: "database error",
			mockSetup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM face_observations`).
					WithArgs(collectionID).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: "list observations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.mockSetup(mock)

			repo := NewObservationRepository(mock)
			got, err := repo.ListByCollection(context.Background(), collectionID)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Len(t, got, tt.wantLen)
				if tt.check != nil {
					tt.check(t, got)
				}
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestObservationRepository_CountByCollection(t *testing.T) {
	collectionID := uuid.New()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM face_observations WHERE collection_id = \$1`).
		WithArgs(collectionID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	repo := NewObservationRepository(mock)
	count, err := repo.CountByCollection(context.Background(), collectionID)

	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ClusterRepository Tests

func testRunSnapshot(collectionID uuid.UUID) domain.RunSnapshot {
	started := time.Now().Add(-time.Minute)
	finished := time.Now()
	return domain.RunSnapshot{
		ID:           uuid.New(),
		CollectionID: collectionID,
		State:        domain.RunStateDone,
		Stats: domain.RunStats{
			ObservationsLoaded:      12,
			ObservationsSkipped:     1,
			ClustersFound:           1,
			NoiseCount:              2,
			RepresentativesSelected: 1,
		},
		Quality:    &domain.ClusterQualityMetrics{OverallQuality: 87.5},
		StartedAt:  started,
		FinishedAt: &finished,
	}
}

func TestClusterRepository_ReplaceForCollection(t *testing.T) {
	collectionID := uuid.New()
	memberA := uuid.New()
	memberB := uuid.New()

	cluster := domain.Cluster{
		Key:              domain.ClusterKey([]uuid.UUID{memberA, memberB}),
		CollectionID:     collectionID,
		MemberIDs:        []uuid.UUID{memberA, memberB},
		Centroid:         []float32{0.5, 0.5},
		RepresentativeID: memberA,
		SelectionLevel:   domain.SelectionQualityWeighted,
		Quality:          domain.QualitySnapshot{OverallQuality: 91.0, Compactness: 0.01, Separation: 0.9},
		Position:         0,
	}
	run := testRunSnapshot(collectionID)

	t.Run("replaces atomically", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM face_clusters WHERE collection_id = \$1`).
			WithArgs(collectionID).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectExec(`INSERT INTO face_clusters`).
			WithArgs(
				cluster.Key, collectionID, pgxmock.AnyArg(), memberA,
				int(domain.SelectionQualityWeighted),
				91.0, 0.01, 0.9, 0,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO face_cluster_members`).
			WithArgs(cluster.Key, memberA, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO face_cluster_members`).
			WithArgs(cluster.Key, memberB, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO cluster_runs`).
			WithArgs(
				run.ID, collectionID, string(domain.RunStateDone),
				12, 1, 1, 2, 1,
				pgxmock.AnyArg(), run.StartedAt, run.FinishedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		repo := NewClusterRepository(mock)
		err = repo.ReplaceForCollection(context.Background(), collectionID, []domain.Cluster{cluster}, run)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result still wipes previous clusters", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM face_clusters WHERE collection_id = \$1`).
			WithArgs(collectionID).
			WillReturnResult(pgxmock.NewResult("DELETE", 5))
		mock.ExpectExec(`INSERT INTO cluster_runs`).
			WithArgs(
				run.ID, collectionID, string(domain.RunStateDone),
				12, 1, 1, 2, 1,
				pgxmock.AnyArg(), run.StartedAt, run.FinishedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		repo := NewClusterRepository(mock)
		err = repo.ReplaceForCollection(context.Background(), collectionID, nil, run)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mid-write failure rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM face_clusters WHERE collection_id = \$1`).
			WithArgs(collectionID).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))
		mock.ExpectExec(`INSERT INTO face_clusters`).
			WithArgs(
				cluster.Key, collectionID, pgxmock.AnyArg(), memberA,
				int(domain.SelectionQualityWeighted),
				91.0, 0.01, 0.9, 0,
			).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		repo := NewClusterRepository(mock)
		err = repo.ReplaceForCollection(context.Background(), collectionID, []domain.Cluster{cluster}, run)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert cluster")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

		repo := NewClusterRepository(mock)
		err = repo.ReplaceForCollection(context.Background(), collectionID, []domain.Cluster{cluster}, run)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin replace")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestClusterRepository_ListByCollection(t *testing.T) {
	collectionID := uuid.New()
	memberA := uuid.New()
	memberB := uuid.New()
	key := domain.ClusterKey([]uuid.UUID{memberA, memberB})
	now := time.Now()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	centroid := pgvector.NewVector([]float32{0.7, 0.3})
	clusterRows := pgxmock.NewRows([]string{
		"key", "collection_id", "centroid", "representative_id", "selection_level",
		"overall_quality", "compactness", "separation", "position", "created_at",
	}).AddRow(
		key, collectionID, &centroid, memberA, int(domain.SelectionClosestToCentroid),
		78.0, 0.02, 0.8, 0, now,
	)

	mock.ExpectQuery(`FROM face_clusters WHERE collection_id = \$1 ORDER BY position`).
		WithArgs(collectionID).
		WillReturnRows(clusterRows)

	memberRows := pgxmock.NewRows([]string{"cluster_key", "observation_id"}).
		AddRow(key, memberA).
		AddRow(key, memberB)

	mock.ExpectQuery(`FROM face_cluster_members m JOIN face_clusters c ON c.key = m.cluster_key`).
		WithArgs(collectionID).
		WillReturnRows(memberRows)

	repo := NewClusterRepository(mock)
	got, err := repo.ListByCollection(context.Background(), collectionID)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, key, got[0].Key)
	assert.Equal(t, []float32{0.7, 0.3}, got[0].Centroid)
	assert.Equal(t, domain.SelectionClosestToCentroid, got[0].SelectionLevel)
	assert.Equal(t, []uuid.UUID{memberA, memberB}, got[0].MemberIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClusterRepository_ListRunsByCollection(t *testing.T) {
	collectionID := uuid.New()
	runID := uuid.New()
	started := time.Now().Add(-time.Minute)
	finished := time.Now()
	overall := 82.0

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"id", "collection_id", "state", "observations_loaded", "observations_skipped",
		"clusters_found", "noise_count", "representatives_selected", "overall_quality",
		"started_at", "finished_at",
	}).AddRow(
		runID, collectionID, string(domain.RunStateDone), 30, 2, 4, 3, 4, &overall,
		started, &finished,
	)

	mock.ExpectQuery(`FROM cluster_runs WHERE collection_id = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs(collectionID, 10).
		WillReturnRows(rows)

	repo := NewClusterRepository(mock)
	got, err := repo.ListRunsByCollection(context.Background(), collectionID, 10)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, runID, got[0].ID)
	assert.Equal(t, domain.RunStateDone, got[0].State)
	require.NotNil(t, got[0].Quality)
	assert.InDelta(t, 82.0, got[0].Quality.OverallQuality, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}
