package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/lumapix/facegraph/internal/api/docs"
	"github.com/lumapix/facegraph/internal/api/handler"
	"github.com/lumapix/facegraph/internal/api/middleware"
	"github.com/lumapix/facegraph/internal/database"
	"github.com/lumapix/facegraph/internal/engine"
	"github.com/lumapix/facegraph/internal/repository"
)

type Dependencies struct {
	Coordinator     *engine.Coordinator
	ClusterRepo     *repository.ClusterRepository
	DB              *pgxpool.Pool
	JanitorInterval time.Duration
}

type Router struct {
	app           *fiber.App
	logger        *slog.Logger
	deps          *Dependencies
	cancelJanitor context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Facegraph API",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Health check endpoints
	var readiness handler.ReadinessCheck
	if r.deps != nil && r.deps.DB != nil {
		db := r.deps.DB
		readiness = func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		}
	}
	healthHandler := handler.NewHealthHandler(readiness)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	// Only configure the clustering routes if dependencies were provided
	if r.deps != nil {
		janitorCtx, cancel := context.WithCancel(context.Background())
		r.cancelJanitor = cancel
		interval := r.deps.JanitorInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go r.deps.Coordinator.Janitor(janitorCtx, interval)

		clusterHandler := handler.NewClusterHandler(r.deps.Coordinator, r.deps.ClusterRepo, r.logger)

		v1.Post("/collections/:collectionID/cluster-runs", clusterHandler.StartRun)
		v1.Get("/collections/:collectionID/cluster-runs", clusterHandler.ListRuns)
		v1.Get("/collections/:collectionID/clusters", clusterHandler.ListClusters)
		v1.Get("/cluster-runs/:runID", clusterHandler.GetRun)
		v1.Delete("/cluster-runs/:runID", clusterHandler.CancelRun)
	}
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	if r.cancelJanitor != nil {
		r.cancelJanitor()
	}
	return r.app.Shutdown()
}

// App exposes the underlying fiber app for tests.
func (r *Router) App() *fiber.App {
	return r.app
}
