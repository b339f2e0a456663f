package reliability

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/domain"
)

// ArtifactService archives completed runs: the QASM export, the raw counts
// with their interpretation, and a metadata index with checksums. Keys are
// runs/<run-id>/<file>.
type ArtifactService struct {
	store *ObjectStore
	log   zerolog.Logger
}

// ArtifactMetadata indexes the files uploaded for one run
type ArtifactMetadata struct {
	RunID      string            `json:"run_id"`
	Mode       string            `json:"mode"`
	Backend    string            `json:"backend"`
	UploadedAt time.Time         `json:"uploaded_at"`
	Checksums  map[string]string `json:"checksums"` // filename -> sha256
}

// NewArtifactService creates an artifact service
func NewArtifactService(store *ObjectStore, log zerolog.Logger) *ArtifactService {
	return &ArtifactService{
		store: store,
		log:   log.With().Str("service", "artifacts").Logger(),
	}
}

// UploadRunArtifacts archives one completed run
func (s *ArtifactService) UploadRunArtifacts(ctx context.Context, run *domain.Run, qasm string) error {
	startTime := time.Now()

	resultJSON, err := json.MarshalIndent(struct {
		Request        domain.MatchRequest       `json:"request"`
		Result         *domain.MeasurementResult `json:"result"`
		Interpretation *domain.Interpretation    `json:"interpretation"`
		Qubits         int                       `json:"qubits"`
		Depth          int                       `json:"depth"`
	}{run.Request, run.Result, run.Interpretation, run.Qubits, run.Depth}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result for run %s: %w", run.ID, err)
	}

	files := map[string][]byte{
		"circuit.qasm": []byte(qasm),
		"result.json":  resultJSON,
	}

	metadata := ArtifactMetadata{
		RunID:      run.ID,
		Mode:       string(run.Request.Mode),
		Backend:    run.Request.Backend,
		UploadedAt: time.Now().UTC(),
		Checksums:  make(map[string]string, len(files)),
	}
	for name, content := range files {
		metadata.Checksums[name] = fmt.Sprintf("sha256:%x", sha256.Sum256(content))
	}

	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for run %s: %w", run.ID, err)
	}
	files["metadata.json"] = metadataJSON

	for name, content := range files {
		key := fmt.Sprintf("runs/%s/%s", run.ID, name)
		if err := s.store.Upload(ctx, key, bytes.NewReader(content)); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("run_id", run.ID).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Run artifacts uploaded")
	return nil
}

// RotateOldArtifacts deletes run artifacts older than the retention period.
// retentionDays of 0 keeps everything.
func (s *ArtifactService) RotateOldArtifacts(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}

	objects, err := s.store.List(ctx, "runs/")
	if err != nil {
		return fmt.Errorf("failed to list run artifacts: %w", err)
	}

	cutoff := time.Duration(retentionDays) * 24 * time.Hour
	now := time.Now()
	deleted := 0
	for _, obj := range objects {
		if obj.Key == nil || !strings.HasPrefix(*obj.Key, "runs/") {
			continue
		}
		if ObjectAge(obj, now) > cutoff {
			if err := s.store.Delete(ctx, *obj.Key); err != nil {
				s.log.Error().Err(err).Str("key", *obj.Key).Msg("Failed to delete old artifact")
				continue
			}
			deleted++
		}
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("retention_days", retentionDays).
		Msg("Artifact rotation completed")
	return nil
}
