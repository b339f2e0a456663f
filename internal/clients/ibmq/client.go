// Package ibmq is the hardware execution adapter: it submits assembled
// circuits to the IBM Quantum runtime as OpenQASM and polls for counts.
package ibmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/config"
	"github.com/aristath/qumatch/internal/domain"
)

// Client talks to the IBM Quantum runtime REST API. It implements
// domain.Backend, so the execution pipeline cannot tell it apart from the
// local simulator.
type Client struct {
	baseURL      string
	token        string
	backend      string
	pollInterval time.Duration
	jobTimeout   time.Duration
	client       *http.Client
	log          zerolog.Logger
}

// NewClient creates a runtime client for one provider backend
func NewClient(cfg config.IBMQConfig, backend string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.APIURL, "/"),
		token:        cfg.APIToken,
		backend:      backend,
		pollInterval: cfg.PollInterval,
		jobTimeout:   cfg.JobTimeout,
		client:       &http.Client{Timeout: 30 * time.Second},
		log:          log.With().Str("client", "ibmq").Str("backend", backend).Logger(),
	}
}

// Name implements domain.Backend
func (c *Client) Name() string { return c.backend }

// Execute implements domain.Backend: submit, poll until terminal, fetch
// counts. The deadline is min(ctx, configured job timeout); on expiry the job
// is cancelled on the provider side before returning.
func (c *Client) Execute(ctx context.Context, qc *circuit.Circuit, shots int) (*domain.MeasurementResult, error) {
	if !qc.Frozen() {
		return nil, fmt.Errorf("%w: circuit must be frozen before submission", domain.ErrInvalidInput)
	}
	if shots <= 0 {
		return nil, fmt.Errorf("%w: shots must be positive", domain.ErrInvalidInput)
	}

	qasm := qc.QASM()

	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	jobID, err := c.submit(ctx, qasm, shots)
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("job_id", jobID).Int("shots", shots).Msg("Job submitted")

	if err := c.waitForCompletion(ctx, jobID); err != nil {
		return nil, err
	}

	counts, err := c.results(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &domain.MeasurementResult{
		Counts:    normalizeCounts(counts, qc.Cbits()),
		Shots:     shots,
		BackendID: c.backend,
		JobID:     jobID,
	}, nil
}

// Cancel asks the provider to stop a job. Used on timeout so queue slots are
// not leaked.
func (c *Client) Cancel(jobID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 means the job already reached a terminal state; nothing to leak.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("cancel for job %s returned status %d", jobID, resp.StatusCode)
	}
	return nil
}

func (c *Client) submit(ctx context.Context, qasm string, shots int) (string, error) {
	body, err := json.Marshal(jobRequest{
		ProgramID: "sampler",
		Backend:   c.backend,
		Params:    jobParams{Circuits: []string{qasm}, Shots: shots},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: provider returned status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: submission rejected with status %d: %s", domain.ErrInvalidInput, resp.StatusCode, msg)
	}

	var job jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("%w: malformed submission response: %v", domain.ErrBackendUnavailable, err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("%w: submission response has no job id", domain.ErrBackendUnavailable)
	}
	return job.ID, nil
}

func (c *Client) waitForCompletion(ctx context.Context, jobID string) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.status(ctx, jobID)
		if err != nil {
			// The deadline can expire while a poll is in flight, which
			// surfaces as a request error rather than on ctx.Done().
			// That is still a timeout, not a provider failure.
			if ctx.Err() != nil {
				return c.abort(jobID)
			}
			return err
		}

		switch status.Status {
		case statusCompleted:
			return nil
		case statusFailed:
			reason := status.Reason
			c.log.Warn().Str("job_id", jobID).Str("reason", reason).Msg("Job failed on provider")
			if strings.Contains(strings.ToLower(reason), "transpil") {
				return fmt.Errorf("%w: %s", domain.ErrTranspilation, reason)
			}
			return fmt.Errorf("%w: job failed: %s", domain.ErrBackendUnavailable, reason)
		case statusCancelled:
			return fmt.Errorf("%w: job was cancelled", domain.ErrBackendUnavailable)
		case statusQueued, statusRunning:
		default:
			c.log.Debug().Str("job_id", jobID).Str("status", status.Status).Msg("Unknown job status, continuing to poll")
		}

		select {
		case <-ctx.Done():
			return c.abort(jobID)
		case <-ticker.C:
		}
	}
}

// abort cancels a timed-out job on the provider side and reports the timeout
func (c *Client) abort(jobID string) error {
	if err := c.Cancel(jobID); err != nil {
		c.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to cancel timed-out job")
	}
	return fmt.Errorf("%w: job %s did not finish in time", domain.ErrJobTimeout, jobID)
}

func (c *Client) status(ctx context.Context, jobID string) (*jobStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status query returned %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	var status jobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: malformed status response: %v", domain.ErrBackendUnavailable, err)
	}
	return &status, nil
}

func (c *Client) results(ctx context.Context, jobID string) (map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID+"/results", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: results query returned %d", domain.ErrBackendUnavailable, resp.StatusCode)
	}

	var results jobResultsResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: malformed results response: %v", domain.ErrBackendUnavailable, err)
	}
	if len(results.Counts) == 0 {
		return nil, fmt.Errorf("%w: job %s returned no counts", domain.ErrBackendUnavailable, jobID)
	}
	return results.Counts, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// normalizeCounts converts hex outcome keys ("0x2e") to zero-padded binary
// strings so the interpreter sees one key format regardless of backend.
func normalizeCounts(counts map[string]int, cbits int) map[string]int {
	out := make(map[string]int, len(counts))
	for key, count := range counts {
		if strings.HasPrefix(key, "0x") || strings.HasPrefix(key, "0X") {
			if v, err := strconv.ParseUint(key[2:], 16, 64); err == nil {
				bin := strconv.FormatUint(v, 2)
				if pad := cbits - len(bin); pad > 0 {
					bin = strings.Repeat("0", pad) + bin
				}
				out[bin] += count
				continue
			}
		}
		out[strings.ReplaceAll(key, " ", "")] += count
	}
	return out
}
