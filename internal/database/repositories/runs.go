// Package repositories holds the SQL persistence layer for run records.
package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/domain"
)

// RunRepository persists runs and their outcomes.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

const timeLayout = time.RFC3339Nano

// Create inserts a new pending run together with its serialized circuit.
func (r *RunRepository) Create(run *domain.Run, circuitBlob []byte) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = domain.RunStatusPending
	}

	_, err := r.db.Exec(`
		INSERT INTO runs (id, created_at, updated_at, x, y, length, position, mode, shots, backend, qubits, depth, circuit, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, now.Format(timeLayout), now.Format(timeLayout),
		run.Request.X, run.Request.Y, run.Request.Length, run.Request.Position,
		string(run.Request.Mode), run.Request.Shots, run.Request.Backend,
		run.Qubits, run.Depth, circuitBlob, string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	r.log.Debug().Str("run_id", run.ID).Str("mode", string(run.Request.Mode)).Msg("Run created")
	return nil
}

// Get returns one run by id.
func (r *RunRepository) Get(id string) (*domain.Run, error) {
	row := r.db.QueryRow(`
		SELECT id, created_at, updated_at, x, y, length, position, mode, shots, backend,
		       qubits, depth, status, job_id, error, counts, interpretation
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

// CircuitBlob returns the serialized circuit of one run.
func (r *RunRepository) CircuitBlob(id string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRow(`SELECT circuit FROM runs WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load circuit for run %s: %w", id, err)
	}
	return blob, nil
}

// List returns the most recent runs.
func (r *RunRepository) List(limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(`
		SELECT id, created_at, updated_at, x, y, length, position, mode, shots, backend,
		       qubits, depth, status, job_id, error, counts, interpretation
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListByStatus returns the oldest runs in the given status, for pickup by the
// execution job.
func (r *RunRepository) ListByStatus(status domain.RunStatus, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(`
		SELECT id, created_at, updated_at, x, y, length, position, mode, shots, backend,
		       qubits, depth, status, job_id, error, counts, interpretation
		FROM runs WHERE status = ? ORDER BY created_at ASC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s runs: %w", status, err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// MarkSubmitted records the provider job id and moves the run to submitted.
func (r *RunRepository) MarkSubmitted(id, jobID string) error {
	return r.update(id, `UPDATE runs SET status = ?, job_id = ?, updated_at = ? WHERE id = ?`,
		string(domain.RunStatusSubmitted), jobID, time.Now().UTC().Format(timeLayout), id)
}

// Complete stores the raw counts and the interpretation and moves the run to
// completed.
func (r *RunRepository) Complete(id string, result *domain.MeasurementResult, interp *domain.Interpretation) error {
	countsJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal counts for run %s: %w", id, err)
	}
	interpJSON, err := json.Marshal(interp)
	if err != nil {
		return fmt.Errorf("failed to marshal interpretation for run %s: %w", id, err)
	}
	return r.update(id, `UPDATE runs SET status = ?, counts = ?, interpretation = ?, error = NULL, updated_at = ? WHERE id = ?`,
		string(domain.RunStatusCompleted), string(countsJSON), string(interpJSON),
		time.Now().UTC().Format(timeLayout), id)
}

// Fail records the failure reason.
func (r *RunRepository) Fail(id string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	return r.update(id, `UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(domain.RunStatusFailed), msg, time.Now().UTC().Format(timeLayout), id)
}

// CountByStatus returns run counts grouped by status.
func (r *RunRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *RunRepository) update(id, query string, args ...interface{}) error {
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var createdAt, updatedAt, mode, status string
	var jobID, errMsg, countsJSON, interpJSON sql.NullString

	err := row.Scan(
		&run.ID, &createdAt, &updatedAt,
		&run.Request.X, &run.Request.Y, &run.Request.Length, &run.Request.Position,
		&mode, &run.Request.Shots, &run.Request.Backend,
		&run.Qubits, &run.Depth, &status, &jobID, &errMsg, &countsJSON, &interpJSON,
	)
	if err != nil {
		return nil, err
	}

	run.Request.Mode = domain.Mode(mode)
	run.Status = domain.RunStatus(status)
	run.JobID = jobID.String
	run.Error = errMsg.String
	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		run.CreatedAt = t
	}
	if t, err := time.Parse(timeLayout, updatedAt); err == nil {
		run.UpdatedAt = t
	}
	if countsJSON.Valid && countsJSON.String != "" {
		var res domain.MeasurementResult
		if err := json.Unmarshal([]byte(countsJSON.String), &res); err != nil {
			return nil, fmt.Errorf("corrupt counts for run %s: %w", run.ID, err)
		}
		run.Result = &res
	}
	if interpJSON.Valid && interpJSON.String != "" {
		var interp domain.Interpretation
		if err := json.Unmarshal([]byte(interpJSON.String), &interp); err != nil {
			return nil, fmt.Errorf("corrupt interpretation for run %s: %w", run.ID, err)
		}
		run.Interpretation = &interp
	}
	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]domain.Run, error) {
	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
