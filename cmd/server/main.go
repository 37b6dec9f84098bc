package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/repcoach/internal/annotate"
	"github.com/kdimtricp/repcoach/internal/api"
	"github.com/kdimtricp/repcoach/internal/config"
	"github.com/kdimtricp/repcoach/internal/database"
	"github.com/kdimtricp/repcoach/internal/emitter"
	"github.com/kdimtricp/repcoach/internal/exercise"
	"github.com/kdimtricp/repcoach/internal/pipeline"
	"github.com/kdimtricp/repcoach/internal/pose"
	"github.com/kdimtricp/repcoach/internal/storage"
	"github.com/kdimtricp/repcoach/internal/workout"
)

const (
	shutdownTimeout    = 10 * time.Second
	poseWatchdogPeriod = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	profiles, err := exercise.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		return err
	}

	snapshots, err := storage.NewLocalStorage(cfg.SnapshotDir)
	if err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		return err
	}
	repo := database.NewWorkoutRepo(db)

	annotator, err := annotate.New()
	if err != nil {
		return err
	}

	var estimator pose.Estimator
	var poseMonitor api.PoseMonitor
	if cfg.Pose.Enabled() {
		worker, err := pose.NewWorkerEstimator(pose.WorkerConfig{
			Command:    cfg.Pose.Command,
			Args:       cfg.Pose.Args,
			Confidence: cfg.Pose.Confidence,
			Timeout:    cfg.Pose.Timeout,
		})
		if err != nil {
			return err
		}
		if err := worker.Start(ctx); err != nil {
			return err
		}
		defer worker.Close()
		go worker.Watch(ctx, poseWatchdogPeriod)
		estimator = worker
		poseMonitor = worker
	} else {
		slog.Warn("POSE_WORKER_CMD not set, frame uploads are disabled; clients must send landmarks")
	}

	var publisher workout.Publisher
	var mqttEmitter *emitter.MQTTEmitter
	if cfg.MQTT.Enabled() {
		mqttEmitter = emitter.NewMQTTEmitter(emitter.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		})
		if err := mqttEmitter.Connect(ctx); err != nil {
			// The client keeps retrying in the background.
			slog.Warn("mqtt broker unavailable at startup", "error", err)
		}
		defer mqttEmitter.Disconnect()
		publisher = mqttEmitter
	}

	sessions := workout.NewService(pipeline.New(estimator, annotator, profiles), repo, publisher, workout.Config{})

	app := &api.App{
		Sessions:     sessions,
		History:      repo,
		Storage:      snapshots,
		Emitter:      mqttEmitter,
		Pose:         poseMonitor,
		MaxFrameSize: cfg.MaxFrameSize,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server starting",
		"port", cfg.Port,
		"db_type", cfg.Database.Type,
		"snapshot_dir", cfg.SnapshotDir,
		"pose_worker", cfg.Pose.Enabled(),
		"mqtt", cfg.MQTT.Enabled(),
		"max_frame_size", cfg.MaxFrameSize,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)
	sessions.Close(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
