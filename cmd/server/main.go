// Package main is the entry point for the Qumatch service: the HTTP API and
// background jobs around the quantum substring matcher.
//
// Startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open and migrate the run database
//  4. Construct the execution backends (local simulator, provider client)
//  5. Register background jobs with the scheduler
//  6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/qumatch/internal/clients/ibmq"
	"github.com/aristath/qumatch/internal/config"
	"github.com/aristath/qumatch/internal/database"
	"github.com/aristath/qumatch/internal/database/repositories"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/events"
	"github.com/aristath/qumatch/internal/reliability"
	"github.com/aristath/qumatch/internal/scheduler"
	"github.com/aristath/qumatch/internal/server"
	"github.com/aristath/qumatch/internal/sim"
	"github.com/aristath/qumatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting Qumatch")

	// Run database
	runsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "runs.db"),
		Profile: database.ProfileHistory,
		Name:    "runs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open run database")
	}
	defer runsDB.Close()
	if err := runsDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate run database")
	}
	repo := repositories.NewRunRepository(runsDB.Conn(), log)

	// Event bus
	eventBus := events.NewManager(log)
	defer eventBus.Close()

	// Execution backends. The local simulator is always available; the
	// provider client only when a token is configured.
	local := sim.New(log)
	backends := map[string]domain.Backend{local.Name(): local}
	if cfg.IBMQ.Enabled() {
		hw := ibmq.NewClient(cfg.IBMQ, cfg.Backend, log)
		if hw.Name() != local.Name() {
			backends[hw.Name()] = hw
		}
		log.Info().Str("backend", hw.Name()).Msg("Provider backend configured")
	} else {
		log.Info().Msg("No provider token configured, local simulator only")
	}

	// Artifact storage is optional.
	var artifacts *reliability.ArtifactService
	if cfg.Artifacts.Enabled() {
		store, err := reliability.NewObjectStore(
			cfg.Artifacts.AccountID,
			cfg.Artifacts.AccessKeyID,
			cfg.Artifacts.SecretAccessKey,
			cfg.Artifacts.Bucket,
			log,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize object store, artifact uploads disabled")
		} else {
			artifacts = reliability.NewArtifactService(store, log)
			log.Info().Msg("Artifact storage initialized")
		}
	}

	// Background jobs
	sched := scheduler.New(log)
	processJob := scheduler.NewProcessRunsJob(repo, backends, eventBus, artifacts, log)
	if err := sched.AddJob("@every 5s", processJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register run processor")
	}
	maintenanceJob := scheduler.NewMaintenanceJob(map[string]*database.DB{"runs": runsDB}, log)
	if err := sched.AddJob("0 0 2 * * *", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}
	if artifacts != nil {
		rotationJob := scheduler.NewArtifactRotationJob(artifacts, cfg.Artifacts.RetentionDays, log)
		if err := sched.AddJob("0 30 2 * * *", rotationJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to register artifact rotation job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:      log,
		Config:   cfg,
		RunsDB:   runsDB,
		Repo:     repo,
		EventBus: eventBus,
		Backends: backends,
		Port:     cfg.Port,
		DevMode:  cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Qumatch stopped")
}
