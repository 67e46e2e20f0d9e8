package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// RunStatsData mirrors the stats block of a run snapshot
type RunStatsData struct {
	ObservationsLoaded      int            `json:"observations_loaded" example:"240"`
	ObservationsSkipped     int            `json:"observations_skipped" example:"3"`
	ClustersFound           int            `json:"clusters_found" example:"12"`
	NoiseCount              int            `json:"noise_count" example:"18"`
	RepresentativesByLevel  map[string]int `json:"representatives_by_level"`
	RepresentativesSelected int            `json:"representatives_selected" example:"12"`
}

// RunSnapshotResponse represents the telemetry of one clustering run
type RunSnapshotResponse struct {
	ID           string       `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	CollectionID string       `json:"collection_id" example:"8d1f1f5e-0b87-4a9c-9a41-0f6f1b9a2e11"`
	State        string       `json:"state" example:"clustering"`
	Stats        RunStatsData `json:"stats"`
	ErrorCode    string       `json:"error_code,omitempty" example:""`
	ErrorMessage string       `json:"error_message,omitempty" example:""`
	StartedAt    string       `json:"started_at" example:"2024-01-01T00:00:00Z"`
	FinishedAt   string       `json:"finished_at,omitempty" example:"2024-01-01T00:00:42Z"`
}

// QualitySnapshotData is the per-cluster quality summary
type QualitySnapshotData struct {
	OverallQuality float64 `json:"overall_quality" example:"86.4"`
	Compactness    float64 `json:"compactness" example:"0.012"`
	Separation     float64 `json:"separation" example:"0.83"`
}

// ClusterData represents one persisted cluster
type ClusterData struct {
	Key              string              `json:"key" example:"7c9e6679-7425-40de-944b-e07fc1f90ae7"`
	CollectionID     string              `json:"collection_id" example:"8d1f1f5e-0b87-4a9c-9a41-0f6f1b9a2e11"`
	Size             int                 `json:"size" example:"17"`
	MemberIDs        []string            `json:"member_ids"`
	RepresentativeID string              `json:"representative_id" example:"0d9ff34c-6d0c-4b2f-9a66-25c6e3d1f5aa"`
	SelectionLevel   string              `json:"selection_level" example:"quality_weighted"`
	Quality          QualitySnapshotData `json:"quality"`
	Position         int                 `json:"position" example:"0"`
	CreatedAt        string              `json:"created_at" example:"2024-01-01T00:00:42Z"`
}

// ListClustersData wraps the clusters of a collection
type ListClustersData struct {
	CollectionID string        `json:"collection_id" example:"8d1f1f5e-0b87-4a9c-9a41-0f6f1b9a2e11"`
	Count        int           `json:"count" example:"12"`
	Clusters     []ClusterData `json:"clusters"`
}

// ListRunsData wraps the run audit history of a collection
type ListRunsData struct {
	CollectionID string                `json:"collection_id" example:"8d1f1f5e-0b87-4a9c-9a41-0f6f1b9a2e11"`
	Runs         []RunSnapshotResponse `json:"runs"`
}

// CancelRunData acknowledges a cancellation request
type CancelRunData struct {
	RunID  string `json:"run_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status string `json:"status" example:"cancelling"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"RUN_NOT_FOUND"`
	Message string `json:"message" example:"Clustering run not found"`
}

// HealthData represents the health endpoint payload
type HealthData struct {
	Status  string `json:"status" example:"ok"`
	Version string `json:"version,omitempty" example:"0.1.0"`
}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Facegraph Clustering API",
		Version:     "v1.0.0",
		Description: "Face clustering and quality engine: groups detected faces by identity, scores the result, and picks a display face per cluster",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/collections/{collectionID}/cluster-runs - Start run
		endpoint.New(
			endpoint.POST,
			"/collections/{collectionID}/cluster-runs",
			endpoint.WithTags("Runs"),
			endpoint.WithSummary("Start a clustering run"),
			endpoint.WithDescription("Launches a background clustering run for the collection. Only one run may execute per collection at a time."),
			endpoint.WithParams(
				parameter.StrParam("collectionID", parameter.Path, parameter.WithDescription("Collection identifier")),
			),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RunSnapshotResponse{}, "202", "Run accepted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_COLLECTION_ID", Message: "Collection id must be a valid UUID"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RUN_IN_PROGRESS", Message: "A clustering run is already executing for this collection"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// GET /v1/cluster-runs/{runID} - Run telemetry
		endpoint.New(
			endpoint.GET,
			"/cluster-runs/{runID}",
			endpoint.WithTags("Runs"),
			endpoint.WithSummary("Get run telemetry"),
			endpoint.WithDescription("Returns the live state, stage counters and quality metrics of a run."),
			endpoint.WithParams(
				parameter.StrParam("runID", parameter.Path, parameter.WithDescription("Run identifier")),
			),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RunSnapshotResponse{}, "200", "Run snapshot"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INVALID_RUN_ID", Message: "Run id must be a valid UUID"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "RUN_NOT_FOUND", Message: "Clustering run not found"}, "404", "Not Found"),
			}),
		),

		// DELETE /v1/cluster-runs/{runID} - Cancel run
		endpoint.New(
			endpoint.DELETE,
			"/cluster-runs/{runID}",
			endpoint.WithTags("Runs"),
			endpoint.WithSummary("Cancel a run"),
			endpoint.WithDescription("Requests cooperative cancellation; the run stops at its next checkpoint and the previous persisted result stays intact."),
			endpoint.WithParams(
				parameter.StrParam("runID", parameter.Path, parameter.WithDescription("Run identifier")),
			),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(CancelRunData{}, "202", "Cancellation requested"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "RUN_NOT_FOUND", Message: "Clustering run not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "RUN_FINISHED", Message: "Clustering run has already finished"}, "409", "Conflict"),
			}),
		),

		// GET /v1/collections/{collectionID}/clusters - Persisted result
		endpoint.New(
			endpoint.GET,
			"/collections/{collectionID}/clusters",
			endpoint.WithTags("Clusters"),
			endpoint.WithSummary("List persisted clusters"),
			endpoint.WithDescription("Returns the last committed clustering of the collection, members and representatives included."),
			endpoint.WithParams(
				parameter.StrParam("collectionID", parameter.Path, parameter.WithDescription("Collection identifier")),
			),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ListClustersData{}, "200", "Clusters"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "CLUSTERS_NOT_FOUND", Message: "No clusters persisted for this collection"}, "404", "Not Found"),
			}),
		),

		// GET /v1/collections/{collectionID}/cluster-runs - Run history
		endpoint.New(
			endpoint.GET,
			"/collections/{collectionID}/cluster-runs",
			endpoint.WithTags("Runs"),
			endpoint.WithSummary("List run history"),
			endpoint.WithDescription("Returns the audit trail of completed runs, newest first."),
			endpoint.WithParams(
				parameter.StrParam("collectionID", parameter.Path, parameter.WithDescription("Collection identifier")),
				parameter.IntParam("limit", parameter.Query, parameter.WithDescription("Maximum runs to return (default: 20)")),
			),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ListRunsData{}, "200", "Run history"),
			}),
		),

		// GET /health
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Liveness probe"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthData{}, "200", "Service alive"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)
	return sw
}
