package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumapix/facegraph/internal/api"
	"github.com/lumapix/facegraph/internal/clustering"
	"github.com/lumapix/facegraph/internal/config"
	"github.com/lumapix/facegraph/internal/database"
	"github.com/lumapix/facegraph/internal/engine"
	"github.com/lumapix/facegraph/internal/quality"
	"github.com/lumapix/facegraph/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting Facegraph API",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	// Database pool
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	// Repositories
	observationRepo := repository.NewObservationRepository(pool)
	clusterRepo := repository.NewClusterRepository(pool)

	// Quality analyzers
	faceAnalyzer, err := quality.NewFaceAnalyzer(faceWeights(cfg), faceThresholds(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to build face analyzer: %w", err)
	}
	clusteringAnalyzer, err := quality.NewClusteringAnalyzer(clusteringWeights(cfg), clusteringThresholds(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to build clustering analyzer: %w", err)
	}

	// Clustering engine and run coordinator
	eng := engine.New(
		observationRepo,
		clusterRepo,
		faceAnalyzer,
		clusteringAnalyzer,
		clustering.CosineDistance,
		engine.Params{
			Clustering: clustering.Params{
				Eps:        cfg.ClusterEps,
				MinSamples: cfg.ClusterMinSamples,
			},
			EmbeddingDim: cfg.EmbeddingDim,
			Selection: engine.SelectionParams{
				QualityThreshold: cfg.RepQualityThreshold,
				QualityWeight:    cfg.RepQualityWeight,
				ProximityWeight:  cfg.RepProximityWeight,
				MinConfidence:    cfg.RepMinConfidence,
				MinSizeScore:     cfg.RepMinSizeScore,
			},
		},
		logger,
	)
	coordinator := engine.NewCoordinator(eng, cfg.RunRetention, logger)

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Coordinator:     coordinator,
		ClusterRepo:     clusterRepo,
		DB:              pool,
		JanitorInterval: cfg.RunJanitorInterval,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}

func faceWeights(cfg *config.Config) quality.FaceWeights {
	return quality.FaceWeights{
		Blur:       cfg.FaceBlurWeight,
		Lighting:   cfg.FaceLightingWeight,
		Size:       cfg.FaceSizeWeight,
		Aspect:     cfg.FaceAspectWeight,
		Confidence: cfg.FaceConfidenceWeight,
	}
}

func faceThresholds(cfg *config.Config) quality.FaceThresholds {
	thr := quality.DefaultFaceThresholds()
	thr.BlurBlurry = cfg.FaceBlurBlurry
	thr.BlurGood = cfg.FaceBlurGood
	thr.BlurExcellent = cfg.FaceBlurExcellent
	thr.BrightnessMin = cfg.FaceBrightnessMin
	thr.BrightnessMax = cfg.FaceBrightnessMax
	thr.ContrastMin = cfg.FaceContrastMin
	thr.ClippingMax = cfg.FaceClippingMax
	thr.GoodQuality = cfg.FaceGoodQuality
	thr.LabelExcellent = cfg.LabelExcellent
	thr.LabelGood = cfg.LabelGood
	thr.LabelFair = cfg.LabelFair
	return thr
}

func clusteringWeights(cfg *config.Config) quality.ClusteringWeights {
	return quality.ClusteringWeights{
		Silhouette:    cfg.CqSilhouetteWeight,
		DaviesBouldin: cfg.CqDaviesBouldinWeight,
		Noise:         cfg.CqNoiseWeight,
		Compactness:   cfg.CqCompactnessWeight,
	}
}

func clusteringThresholds(cfg *config.Config) quality.ClusteringThresholds {
	thr := quality.DefaultClusteringThresholds()
	thr.LabelExcellent = cfg.LabelExcellent
	thr.LabelGood = cfg.LabelGood
	thr.LabelFair = cfg.LabelFair
	return thr
}
