package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lumapix/facegraph/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the repositories use. Satisfied
// by *pgxpool.Pool in production and pgxmock.PgxPoolIface in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ObservationRepositoryInterface defines read access to detected faces
type ObservationRepositoryInterface interface {
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]domain.FaceObservation, error)
	CountByCollection(ctx context.Context, collectionID uuid.UUID) (int, error)
}

// ClusterRepositoryInterface defines operations for persisted cluster results
type ClusterRepositoryInterface interface {
	ReplaceForCollection(ctx context.Context, collectionID uuid.UUID, clusters []domain.Cluster, run domain.RunSnapshot) error
	ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]domain.Cluster, error)
	ListRunsByCollection(ctx context.Context, collectionID uuid.UUID, limit int) ([]domain.RunSnapshot, error)
}
