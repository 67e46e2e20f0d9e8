package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lumapix/facegraph/internal/domain"
)

type ClusterRepository struct {
	pool PgxPool
}

func NewClusterRepository(pool PgxPool) *ClusterRepository {
	return &ClusterRepository{pool: pool}
}

// ReplaceForCollection swaps the persisted clustering of a collection in
// a single transaction: readers observe either the previous complete
// result or the new one, never a mix. Deleting face_clusters cascades to
// the membership rows. The run audit row is written in the same
// transaction so a replace and its provenance commit together.
func (r *ClusterRepository) ReplaceForCollection(ctx context.Context, collectionID uuid.UUID, clusters []domain.Cluster, run domain.RunSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM face_clusters WHERE collection_id = $1`,
		collectionID,
	); err != nil {
		return fmt.Errorf("delete previous clusters: %w", err)
	}

	insertCluster := `
		INSERT INTO face_clusters
			(key, collection_id, centroid, representative_id, selection_level,
			 overall_quality, compactness, separation, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`
	insertMember := `
		INSERT INTO face_cluster_members (cluster_key, observation_id, position)
		VALUES ($1, $2, $3)
	`

	for _, cluster := range clusters {
		var centroid *pgvector.Vector
		if len(cluster.Centroid) > 0 {
			vec := pgvector.NewVector(cluster.Centroid)
			centroid = &vec
		}

		if _, err := tx.Exec(ctx, insertCluster,
			cluster.Key,
			collectionID,
			centroid,
			cluster.RepresentativeID,
			int(cluster.SelectionLevel),
			cluster.Quality.OverallQuality,
			cluster.Quality.Compactness,
			cluster.Quality.Separation,
			cluster.Position,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert cluster %s: duplicate key: %w", cluster.Key, err)
			}
			return fmt.Errorf("insert cluster %s: %w", cluster.Key, err)
		}

		for pos, memberID := range cluster.MemberIDs {
			if _, err := tx.Exec(ctx, insertMember, cluster.Key, memberID, pos); err != nil {
				return fmt.Errorf("insert member %s of cluster %s: %w", memberID, cluster.Key, err)
			}
		}
	}

	var overall *float64
	if run.Quality != nil {
		overall = &run.Quality.OverallQuality
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO cluster_runs
			(id, collection_id, state, observations_loaded, observations_skipped,
			 clusters_found, noise_count, representatives_selected, overall_quality,
			 started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		run.ID,
		collectionID,
		string(run.State),
		run.Stats.ObservationsLoaded,
		run.Stats.ObservationsSkipped,
		run.Stats.ClustersFound,
		run.Stats.NoiseCount,
		run.Stats.RepresentativesSelected,
		overall,
		run.StartedAt,
		run.FinishedAt,
	); err != nil {
		return fmt.Errorf("insert run audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}

	return nil
}

// ListByCollection returns the persisted clusters of a collection in
// display order, membership included.
func (r *ClusterRepository) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]domain.Cluster, error) {
	query := `
		SELECT key, collection_id, centroid, representative_id, selection_level,
		       overall_quality, compactness, separation, position, created_at
		FROM face_clusters
		WHERE collection_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []domain.Cluster
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var cluster domain.Cluster
		var centroid *pgvector.Vector
		var level int

		err := rows.Scan(
			&cluster.Key,
			&cluster.CollectionID,
			&centroid,
			&cluster.RepresentativeID,
			&level,
			&cluster.Quality.OverallQuality,
			&cluster.Quality.Compactness,
			&cluster.Quality.Separation,
			&cluster.Position,
			&cluster.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}

		cluster.SelectionLevel = domain.SelectionLevel(level)
		if centroid != nil {
			cluster.Centroid = centroid.Slice()
		}

		index[cluster.Key] = len(clusters)
		clusters = append(clusters, cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}

	if len(clusters) == 0 {
		return clusters, nil
	}

	memberQuery := `
		SELECT m.cluster_key, m.observation_id
		FROM face_cluster_members m
		JOIN face_clusters c ON c.key = m.cluster_key
		WHERE c.collection_id = $1
		ORDER BY m.cluster_key, m.position
	`

	memberRows, err := r.pool.Query(ctx, memberQuery, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list cluster members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var clusterKey, observationID uuid.UUID
		if err := memberRows.Scan(&clusterKey, &observationID); err != nil {
			return nil, fmt.Errorf("scan cluster member: %w", err)
		}
		if i, ok := index[clusterKey]; ok {
			clusters[i].MemberIDs = append(clusters[i].MemberIDs, observationID)
		}
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("list cluster members: %w", err)
	}

	return clusters, nil
}

// ListRunsByCollection returns the audit trail of completed runs, newest
// first.
func (r *ClusterRepository) ListRunsByCollection(ctx context.Context, collectionID uuid.UUID, limit int) ([]domain.RunSnapshot, error) {
	query := `
		SELECT id, collection_id, state, observations_loaded, observations_skipped,
		       clusters_found, noise_count, representatives_selected, overall_quality,
		       started_at, finished_at
		FROM cluster_runs
		WHERE collection_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSnapshot
	for rows.Next() {
		var run domain.RunSnapshot
		var state string
		var overall *float64

		err := rows.Scan(
			&run.ID,
			&run.CollectionID,
			&state,
			&run.Stats.ObservationsLoaded,
			&run.Stats.ObservationsSkipped,
			&run.Stats.ClustersFound,
			&run.Stats.NoiseCount,
			&run.Stats.RepresentativesSelected,
			&overall,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		run.State = domain.RunState(state)
		if overall != nil {
			run.Quality = &domain.ClusterQualityMetrics{OverallQuality: *overall}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}
