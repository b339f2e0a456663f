package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/database/repositories"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/events"
	"github.com/aristath/qumatch/internal/modules/interpret"
	"github.com/aristath/qumatch/internal/modules/superpose"
	"github.com/aristath/qumatch/internal/reliability"
)

// ProcessRunsJob drains pending runs: it decodes the stored circuit, executes
// it on the requested backend, interprets the counts and records the outcome.
// One failed run does not stop the batch.
type ProcessRunsJob struct {
	repo        *repositories.RunRepository
	backends    map[string]domain.Backend
	interpreter *interpret.Interpreter
	eventBus    *events.Manager
	artifacts   *reliability.ArtifactService // nil when artifact storage is not configured
	batchSize   int
	log         zerolog.Logger
}

// NewProcessRunsJob creates the pending-run execution job
func NewProcessRunsJob(
	repo *repositories.RunRepository,
	backends map[string]domain.Backend,
	eventBus *events.Manager,
	artifacts *reliability.ArtifactService,
	log zerolog.Logger,
) *ProcessRunsJob {
	return &ProcessRunsJob{
		repo:        repo,
		backends:    backends,
		interpreter: interpret.New(log),
		eventBus:    eventBus,
		artifacts:   artifacts,
		batchSize:   10,
		log:         log.With().Str("job", "process_runs").Logger(),
	}
}

// Name implements Job
func (j *ProcessRunsJob) Name() string { return "process_runs" }

// Run implements Job
func (j *ProcessRunsJob) Run() error {
	pending, err := j.repo.ListByStatus(domain.RunStatusPending, j.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending runs: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	j.log.Info().Int("count", len(pending)).Msg("Processing pending runs")
	for i := range pending {
		run := &pending[i]
		if err := j.processRun(run); err != nil {
			j.log.Error().Err(err).Str("run_id", run.ID).Msg("Run failed")
			if dbErr := j.repo.Fail(run.ID, err); dbErr != nil {
				j.log.Error().Err(dbErr).Str("run_id", run.ID).Msg("Failed to record run failure")
			}
			j.eventBus.EmitTyped("scheduler", &events.RunFailedData{RunID: run.ID, Reason: err.Error()})
		}
	}
	return nil
}

func (j *ProcessRunsJob) processRun(run *domain.Run) error {
	backend, ok := j.backends[run.Request.Backend]
	if !ok {
		return fmt.Errorf("%w: no backend named %q", domain.ErrBackendUnavailable, run.Request.Backend)
	}

	blob, err := j.repo.CircuitBlob(run.ID)
	if err != nil {
		return err
	}
	qc, err := circuit.Decode(blob)
	if err != nil {
		return fmt.Errorf("%w: stored circuit is corrupt: %v", domain.ErrInvalidInput, err)
	}

	if err := j.repo.MarkSubmitted(run.ID, ""); err != nil {
		return err
	}
	j.eventBus.EmitTyped("scheduler", &events.RunSubmittedData{RunID: run.ID, Backend: backend.Name()})

	result, err := backend.Execute(context.Background(), qc, run.Request.Shots)
	if err != nil {
		return err
	}
	if result.JobID != "" {
		if err := j.repo.MarkSubmitted(run.ID, result.JobID); err != nil {
			return err
		}
	}

	n, d := len(run.Request.X), run.Request.Length
	indexWidth := 0
	if run.Request.Mode == domain.ModeSFSC {
		indexWidth = superpose.IndexWidth(n, d)
	}
	interp, err := j.interpreter.Interpret(result, run.Request.Mode, n, d, indexWidth)
	if err != nil {
		return err
	}

	if err := j.repo.Complete(run.ID, result, interp); err != nil {
		return err
	}

	top, topP := topOutcome(interp.Outcomes)
	j.eventBus.EmitTyped("scheduler", &events.RunCompletedData{
		RunID:          run.ID,
		TopOutcome:     top,
		TopProbability: topP,
		NoMatchWeight:  interp.NoMatchWeight,
		Entropy:        interp.Entropy,
	})

	if j.artifacts != nil {
		run.Result = result
		run.Interpretation = interp
		if err := j.artifacts.UploadRunArtifacts(context.Background(), run, qc.QASM()); err != nil {
			// Artifact storage is best-effort; the run itself succeeded.
			j.log.Warn().Err(err).Str("run_id", run.ID).Msg("Artifact upload failed")
		}
	}

	j.log.Info().
		Str("run_id", run.ID).
		Str("backend", backend.Name()).
		Str("top_outcome", top).
		Float64("top_probability", topP).
		Msg("Run completed")
	return nil
}

func topOutcome(outcomes map[string]float64) (string, float64) {
	best, bestP := "", -1.0
	for key, p := range outcomes {
		if p > bestP || (p == bestP && key < best) {
			best, bestP = key, p
		}
	}
	if bestP < 0 {
		return "", 0
	}
	return best, bestP
}
