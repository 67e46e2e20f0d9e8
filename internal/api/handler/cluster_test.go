package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lumapix/facegraph/internal/domain"
)

// MockRunCoordinator is a mock implementation of RunCoordinator
type MockRunCoordinator struct {
	mock.Mock
}

func (m *MockRunCoordinator) Launch(collectionID uuid.UUID) (domain.RunSnapshot, error) {
	args := m.Called(collectionID)
	return args.Get(0).(domain.RunSnapshot), args.Error(1)
}

func (m *MockRunCoordinator) Get(runID uuid.UUID) (domain.RunSnapshot, error) {
	args := m.Called(runID)
	return args.Get(0).(domain.RunSnapshot), args.Error(1)
}

func (m *MockRunCoordinator) Cancel(runID uuid.UUID) error {
	args := m.Called(runID)
	return args.Error(0)
}

// MockClusterReader is a mock implementation of ClusterReader
type MockClusterReader struct {
	mock.Mock
}

func (m *MockClusterReader) ListByCollection(ctx context.Context, collectionID uuid.UUID) ([]domain.Cluster, error) {
	args := m.Called(ctx, collectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Cluster), args.Error(1)
}

func (m *MockClusterReader) ListRunsByCollection(ctx context.Context, collectionID uuid.UUID, limit int) ([]domain.RunSnapshot, error) {
	args := m.Called(ctx, collectionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RunSnapshot), args.Error(1)
}

// discardLogger returns a logger that discards all output
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Helper to create a test app wired with the cluster routes
func createClusterTestApp(handler *ClusterHandler) *fiber.App {
	app := fiber.New()

	// Error handler
	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil {
			if appErr, ok := err.(*domain.AppError); ok {
				return c.Status(appErr.StatusCode).JSON(appErr)
			}
			return c.Status(500).SendString(err.Error())
		}
		return nil
	})

	v1 := app.Group("/v1")
	v1.Post("/collections/:collectionID/cluster-runs", handler.StartRun)
	v1.Get("/collections/:collectionID/cluster-runs", handler.ListRuns)
	v1.Get("/collections/:collectionID/clusters", handler.ListClusters)
	v1.Get("/cluster-runs/:runID", handler.GetRun)
	v1.Delete("/cluster-runs/:runID", handler.CancelRun)

	return app
}

func TestClusterHandler_StartRun(t *testing.T) {
	collectionID := uuid.New()
	runID := uuid.New()

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockRunCoordinator)
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:   "accepted",
			target: "/v1/collections/" + collectionID.String() + "/cluster-runs",
			setupMock: func(m *MockRunCoordinator) {
				m.On("Launch", collectionID).Return(domain.RunSnapshot{
					ID:           runID,
					CollectionID: collectionID,
					State:        domain.RunStateLoading,
					StartedAt:    time.Now(),
				}, nil)
			},
			expectedStatus: 202,
			checkResponse: func(t *testing.T, body []byte) {
				var resp domain.RunSnapshot
				err := json.Unmarshal(body, &resp)
				assert.NoError(t, err)
				assert.Equal(t, runID, resp.ID)
				assert.Equal(t, collectionID, resp.CollectionID)
				assert.Equal(t, domain.RunStateLoading, resp.State)
			},
		},
		{
			name:           "invalid collection id",
			target:         "/v1/collections/not-a-uuid/cluster-runs",
			setupMock:      func(m *MockRunCoordinator) {},
			expectedStatus: 422,
		},
		{
			name:   "run already executing",
			target: "/v1/collections/" + collectionID.String() + "/cluster-runs",
			setupMock: func(m *MockRunCoordinator) {
				m.On("Launch", collectionID).Return(domain.RunSnapshot{}, domain.ErrRunInProgress)
			},
			expectedStatus: 409,
			checkResponse: func(t *testing.T, body []byte) {
				var resp domain.AppError
				err := json.Unmarshal(body, &resp)
				assert.NoError(t, err)
				assert.Equal(t, "RUN_IN_PROGRESS", resp.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coordinator := new(MockRunCoordinator)
			tt.setupMock(coordinator)

			handler := NewClusterHandler(coordinator, new(MockClusterReader), discardLogger())
			app := createClusterTestApp(handler)

			req := httptest.NewRequest("POST", tt.target, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				body, _ := io.ReadAll(resp.Body)
				tt.checkResponse(t, body)
			}

			coordinator.AssertExpectations(t)
		})
	}
}

func TestClusterHandler_GetRun(t *testing.T) {
	runID := uuid.New()
	collectionID := uuid.New()

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockRunCoordinator)
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:   "running",
			target: "/v1/cluster-runs/" + runID.String(),
			setupMock: func(m *MockRunCoordinator) {
				m.On("Get", runID).Return(domain.RunSnapshot{
					ID:           runID,
					CollectionID: collectionID,
					State:        domain.RunStateScoringFaces,
					Stats: domain.RunStats{
						ObservationsLoaded: 40,
						ClustersFound:      5,
					},
					StartedAt: time.Now(),
				}, nil)
			},
			expectedStatus: 200,
			checkResponse: func(t *testing.T, body []byte) {
				var resp domain.RunSnapshot
				err := json.Unmarshal(body, &resp)
				assert.NoError(t, err)
				assert.Equal(t, domain.RunStateScoringFaces, resp.State)
				assert.Equal(t, 40, resp.Stats.ObservationsLoaded)
				assert.Equal(t, 5, resp.Stats.ClustersFound)
			},
		},
		{
			name:   "unknown run",
			target: "/v1/cluster-runs/" + uuid.NewString(),
			setupMock: func(m *MockRunCoordinator) {
				m.On("Get", mock.Anything).Return(domain.RunSnapshot{}, domain.ErrRunNotFound)
			},
			expectedStatus: 404,
		},
		{
			name:           "invalid run id",
			target:         "/v1/cluster-runs/xyz",
			setupMock:      func(m *MockRunCoordinator) {},
			expectedStatus: 422,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coordinator := new(MockRunCoordinator)
			tt.setupMock(coordinator)

			handler := NewClusterHandler(coordinator, new(MockClusterReader), discardLogger())
			app := createClusterTestApp(handler)

			req := httptest.NewRequest("GET", tt.target, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				body, _ := io.ReadAll(resp.Body)
				tt.checkResponse(t, body)
			}

			coordinator.AssertExpectations(t)
		})
	}
}

func TestClusterHandler_CancelRun(t *testing.T) {
	runID := uuid.New()

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockRunCoordinator)
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:   "cancellation accepted",
			target: "/v1/cluster-runs/" + runID.String(),
			setupMock: func(m *MockRunCoordinator) {
				m.On("Cancel", runID).Return(nil)
			},
			expectedStatus: 202,
			checkResponse: func(t *testing.T, body []byte) {
				var resp CancelRunResponse
				err := json.Unmarshal(body, &resp)
				assert.NoError(t, err)
				assert.Equal(t, runID, resp.RunID)
				assert.Equal(t, "cancelling", resp.Status)
			},
		},
		{
			name:   "already finished",
			target: "/v1/cluster-runs/" + runID.String(),
			setupMock: func(m *MockRunCoordinator) {
				m.On("Cancel", runID).Return(domain.ErrRunFinished)
			},
			expectedStatus: 409,
		},
		{
			name:   "unknown run",
			target: "/v1/cluster-runs/" + uuid.NewString(),
			setupMock: func(m *MockRunCoordinator) {
				m.On("Cancel", mock.Anything).Return(domain.ErrRunNotFound)
			},
			expectedStatus: 404,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coordinator := new(MockRunCoordinator)
			tt.setupMock(coordinator)

			handler := NewClusterHandler(coordinator, new(MockClusterReader), discardLogger())
			app := createClusterTestApp(handler)

			req := httptest.NewRequest("DELETE", tt.target, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				body, _ := io.ReadAll(resp.Body)
				tt.checkResponse(t, body)
			}

			coordinator.AssertExpectations(t)
		})
	}
}

func TestClusterHandler_ListClusters(t *testing.T) {
	collectionID := uuid.New()
	memberIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	cluster := domain.Cluster{
		Key:              domain.ClusterKey(memberIDs),
		CollectionID:     collectionID,
		MemberIDs:        memberIDs,
		RepresentativeID: memberIDs[1],
		SelectionLevel:   domain.SelectionQualityWeighted,
		Quality: domain.QualitySnapshot{
			OverallQuality: 82.5,
			Compactness:    0.12,
			Separation:     0.65,
		},
		Position:  0,
		CreatedAt: time.Now(),
	}

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockClusterReader)
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:   "returns persisted clusters",
			target: "/v1/collections/" + collectionID.String() + "/clusters",
			setupMock: func(m *MockClusterReader) {
				m.On("ListByCollection", mock.Anything, collectionID).Return([]domain.Cluster{cluster}, nil)
			},
			expectedStatus: 200,
			checkResponse: func(t *testing.T, body []byte) {
				var resp ListClustersResponse
				err := json.Unmarshal(body, &resp)
				assert.NoError(t, err)
				assert.Equal(t, collectionID, resp.CollectionID)
				assert.Equal(t, 1, resp.Count)
				assert.Len(t, resp.Clusters, 1)
				assert.Equal(t, cluster.Key, resp.Clusters[0].Key)
				assert.Equal(t, 3, resp.Clusters[0].Size)
				assert.Equal(t, memberIDs[1], resp.Clusters[0].RepresentativeID)
				assert.Equal(t, "quality_weighted", resp.Clusters[0].SelectionLevel)
				assert.Equal(t, 82.5, resp.Clusters[0].Quality.OverallQuality)
			},
		},
		{
			name:   "no clusters persisted",
			target: "/v1/collections/" + collectionID.String() + "/clusters",
			setupMock: func(m *MockClusterReader) {
				m.On("ListByCollection", mock.Anything, collectionID).Return([]domain.Cluster{}, nil)
			},
			expectedStatus: 404,
			checkResponse: func(t *testing.T, body []byte) {
				var resp domain.AppError
				err := json.Unmarshal(body, &resp)
				assert.NoError(t, err)
				assert.Equal(t, "CLUSTERS_NOT_FOUND", resp.Code)
			},
		},
		{
			name:   "repository failure",
			target: "/v1/collections/" + collectionID.String() + "/clusters",
			setupMock: func(m *MockClusterReader) {
				m.On("ListByCollection", mock.Anything, collectionID).Return(nil, assert.AnError)
			},
			expectedStatus: 500,
		},
		{
			name:           "invalid collection id",
			target:         "/v1/collections/42/clusters",
			setupMock:      func(m *MockClusterReader) {},
			expectedStatus: 422,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters := new(MockClusterReader)
			tt.setupMock(clusters)

			handler := NewClusterHandler(new(MockRunCoordinator), clusters, discardLogger())
			app := createClusterTestApp(handler)

			req := httptest.NewRequest("GET", tt.target, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				body, _ := io.ReadAll(resp.Body)
				tt.checkResponse(t, body)
			}

			clusters.AssertExpectations(t)
		})
	}
}

func TestClusterHandler_ListRuns(t *testing.T) {
	collectionID := uuid.New()
	finished := time.Now()
	snapshot := domain.RunSnapshot{
		ID:           uuid.New(),
		CollectionID: collectionID,
		State:        domain.RunStateDone,
		StartedAt:    finished.Add(-time.Minute),
		FinishedAt:   &finished,
	}

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockClusterReader)
		expectedStatus int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:   "default limit",
			target: "/v1/collections/" + collectionID.String() + "/cluster-runs",
			setupMock: func(m *MockClusterReader) {
				m.On("ListRunsByCollection", mock.Anything, collectionID, defaultRunHistoryLimit).Return([]domain.RunSnapshot{snapshot}, nil)
			},
			expectedStatus: 200,
			checkResponse: func(t *testing.T, body []byte) {
				var resp ListRunsResponse
				err := json.Unmarshal(body, &resp)
				assert.NoError(t, err)
				assert.Len(t, resp.Runs, 1)
				assert.Equal(t, snapshot.ID, resp.Runs[0].ID)
				assert.Equal(t, domain.RunStateDone, resp.Runs[0].State)
			},
		},
		{
			name:   "explicit limit",
			target: "/v1/collections/" + collectionID.String() + "/cluster-runs?limit=5",
			setupMock: func(m *MockClusterReader) {
				m.On("ListRunsByCollection", mock.Anything, collectionID, 5).Return([]domain.RunSnapshot{}, nil)
			},
			expectedStatus: 200,
		},
		{
			name:   "non-positive limit falls back to default",
			target: "/v1/collections/" + collectionID.String() + "/cluster-runs?limit=-1",
			setupMock: func(m *MockClusterReader) {
				m.On("ListRunsByCollection", mock.Anything, collectionID, defaultRunHistoryLimit).Return([]domain.RunSnapshot{}, nil)
			},
			expectedStatus: 200,
		},
		{
			name:   "repository failure",
			target: "/v1/collections/" + collectionID.String() + "/cluster-runs",
			setupMock: func(m *MockClusterReader) {
				m.On("ListRunsByCollection", mock.Anything, collectionID, defaultRunHistoryLimit).Return(nil, assert.AnError)
			},
			expectedStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters := new(MockClusterReader)
			tt.setupMock(clusters)

			handler := NewClusterHandler(new(MockRunCoordinator), clusters, discardLogger())
			app := createClusterTestApp(handler)

			req := httptest.NewRequest("GET", tt.target, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.checkResponse != nil {
				body, _ := io.ReadAll(resp.Body)
				tt.checkResponse(t, body)
			}

			clusters.AssertExpectations(t)
		})
	}
}
