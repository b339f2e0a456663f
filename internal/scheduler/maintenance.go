package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/database"
	"github.com/aristath/qumatch/internal/reliability"
)

// MaintenanceJob keeps the databases healthy: integrity check plus a WAL
// checkpoint so the log file cannot grow without bound.
type MaintenanceJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewMaintenanceJob creates the database maintenance job
func NewMaintenanceJob(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name implements Job
func (j *MaintenanceJob) Name() string { return "maintenance" }

// Run implements Job
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for name, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("Health check failed")
			return err
		}
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Error().Err(err).Str("database", name).Msg("WAL checkpoint failed")
			return err
		}
		j.log.Debug().Str("database", name).Msg("Database maintenance completed")
	}
	return nil
}

// ArtifactRotationJob prunes old run artifacts from object storage
type ArtifactRotationJob struct {
	artifacts     *reliability.ArtifactService
	retentionDays int
	log           zerolog.Logger
}

// NewArtifactRotationJob creates the artifact rotation job
func NewArtifactRotationJob(artifacts *reliability.ArtifactService, retentionDays int, log zerolog.Logger) *ArtifactRotationJob {
	return &ArtifactRotationJob{
		artifacts:     artifacts,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "artifact_rotation").Logger(),
	}
}

// Name implements Job
func (j *ArtifactRotationJob) Name() string { return "artifact_rotation" }

// Run implements Job
func (j *ArtifactRotationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	return j.artifacts.RotateOldArtifacts(ctx, j.retentionDays)
}
