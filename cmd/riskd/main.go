package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"edurisk-engine/internal/cfg"
	"edurisk-engine/internal/dataset"
	"edurisk-engine/internal/engine"
	"edurisk-engine/internal/metrics"
	"edurisk-engine/internal/ml"
	"edurisk-engine/internal/notify"
	"edurisk-engine/internal/storage"
	"edurisk-engine/internal/training"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("storage initialization failed")
	}
	defer store.Close()

	hub := notify.NewHub()
	defer hub.Close()
	sink := notify.MultiSink{notify.LogSink{}, hub}

	eng, err := engine.New(c.RiskThresholds(), store, sink, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("engine initialization failed")
	}

	restoreArtifact(store, eng)

	pipeline := training.New(trainingConfig(c), mw)
	source := datasetSource(c)

	var wg sync.WaitGroup
	if source != nil {
		scheduler := training.NewScheduler(c.RetrainInterval, pipeline, source, publishFunc(store, eng))
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Run(ctx)
		}()
	} else {
		log.Warn().Msg("no dataset source configured, periodic retraining disabled")
	}

	startMetricsServer(ctx, c, hub)

	waitForShutdown(ctx, cancel, &wg)
}

// restoreArtifact installs the last published artifact so the engine can
// score immediately after a restart. A missing artifact is not fatal: the
// engine rejects predictions until the first training run publishes one.
func restoreArtifact(store *storage.Store, eng *engine.Engine) {
	artifact, err := store.CurrentArtifact()
	if err != nil {
		log.Error().Err(err).Msg("failed to load published artifact")
		return
	}
	if artifact == nil {
		log.Warn().Msg("no published artifact found, predictions unavailable until first training run")
		return
	}
	if err := eng.Swap(artifact); err != nil {
		log.Error().Err(err).Str("version", artifact.Version).Msg("stored artifact rejected")
	}
}

func trainingConfig(c cfg.Settings) training.Config {
	return training.Config{
		SplitRatio:           c.SplitRatio,
		Seed:                 c.TrainingSeed,
		MinAccuracy:          c.MinValidationAccuracy,
		AllowUnknownCategory: c.AllowUnknownCategory,
		Forest: ml.ForestConfig{
			Trees:          c.TreeCount,
			MaxDepth:       c.MaxTreeDepth,
			MinSamplesLeaf: c.MinSamplesLeaf,
			Seed:           c.TrainingSeed,
		},
		Thresholds: c.RiskThresholds(),
	}
}

// datasetSource picks where retrains pull labeled history from: the record
// API when configured, otherwise a local CSV export.
func datasetSource(c cfg.Settings) training.DatasetSource {
	if c.RecordsBaseURL != "" {
		return dataset.NewClient(c.RecordsBaseURL, c.RecordsAPIKey, c.RESTTimeout)
	}
	if c.DatasetPath != "" {
		return csvSource{path: c.DatasetPath}
	}
	return nil
}

type csvSource struct {
	path string
}

func (s csvSource) FetchTrainingDataset(_ context.Context) (*dataset.Dataset, error) {
	return dataset.LoadCSV(s.path)
}

// publishFunc persists the artifact first, then swaps it into the engine, so
// a restart always restores what the engine is currently serving.
func publishFunc(store *storage.Store, eng *engine.Engine) training.PublishFunc {
	return func(a *ml.Artifact) error {
		if err := store.PublishArtifact(a); err != nil {
			return fmt.Errorf("persist artifact: %w", err)
		}
		return eng.Swap(a)
	}
}

// startMetricsServer serves /health, /metrics and the notification websocket
// feed on the metrics port.
func startMetricsServer(ctx context.Context, c cfg.Settings, hub *notify.Hub) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/ws/notifications", hub)

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
