package ibmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/config"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/pkg/logger"
)

// fakeProvider is a minimal runtime API: one job, scripted status sequence.
type fakeProvider struct {
	statuses     []string
	reason       string
	counts       map[string]int
	statusDelay  time.Duration
	cancelStatus int
	polls        atomic.Int32
	cancels      atomic.Int32
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req jobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Params.Circuits) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(jobResponse{ID: "job-1"})
	})
	mux.HandleFunc("GET /jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		if f.statusDelay > 0 {
			time.Sleep(f.statusDelay)
		}
		i := int(f.polls.Add(1)) - 1
		if i >= len(f.statuses) {
			i = len(f.statuses) - 1
		}
		_ = json.NewEncoder(w).Encode(jobStatusResponse{ID: "job-1", Status: f.statuses[i], Reason: f.reason})
	})
	mux.HandleFunc("GET /jobs/job-1/results", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jobResultsResponse{Counts: f.counts})
	})
	mux.HandleFunc("DELETE /jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		f.cancels.Add(1)
		code := f.cancelStatus
		if code == 0 {
			code = http.StatusNoContent
		}
		w.WriteHeader(code)
	})
	return mux
}

func testClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	return NewClient(config.IBMQConfig{
		APIURL:       url,
		APIToken:     "test-token",
		PollInterval: 5 * time.Millisecond,
		JobTimeout:   timeout,
	}, "ibm_brisbane", logger.New(logger.Config{Level: "error"}))
}

func frozenCircuit(t *testing.T) *circuit.Circuit {
	t.Helper()
	qc := circuit.New()
	r := qc.AllocRegister("q", 1)
	qc.H(r.Qubit(0))
	qc.Measure(r.Qubit(0), 0)
	require.NoError(t, qc.Freeze())
	return qc
}

func TestExecuteHappyPath(t *testing.T) {
	provider := &fakeProvider{
		statuses: []string{statusQueued, statusRunning, statusCompleted},
		counts:   map[string]int{"0": 500, "1": 524},
	}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	c := testClient(t, srv.URL, time.Minute)
	res, err := c.Execute(context.Background(), frozenCircuit(t), 1024)
	require.NoError(t, err)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, "ibm_brisbane", res.BackendID)
	assert.Equal(t, map[string]int{"0": 500, "1": 524}, res.Counts)
}

func TestExecuteNormalizesHexKeys(t *testing.T) {
	provider := &fakeProvider{
		statuses: []string{statusCompleted},
		counts:   map[string]int{"0x0": 400, "0x1": 624},
	}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	c := testClient(t, srv.URL, time.Minute)
	res, err := c.Execute(context.Background(), frozenCircuit(t), 1024)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"0": 400, "1": 624}, res.Counts)
}

func TestExecuteTranspilationFailure(t *testing.T) {
	provider := &fakeProvider{
		statuses: []string{statusFailed},
		reason:   "transpilation failed: circuit exceeds coupling map",
	}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	c := testClient(t, srv.URL, time.Minute)
	_, err := c.Execute(context.Background(), frozenCircuit(t), 1024)
	assert.ErrorIs(t, err, domain.ErrTranspilation)
}

func TestExecuteTimeoutCancelsJob(t *testing.T) {
	provider := &fakeProvider{statuses: []string{statusQueued}}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	c := testClient(t, srv.URL, 30*time.Millisecond)
	_, err := c.Execute(context.Background(), frozenCircuit(t), 1024)
	require.ErrorIs(t, err, domain.ErrJobTimeout)
	assert.Equal(t, int32(1), provider.cancels.Load())
}

func TestExecuteTimeoutDuringStatusPoll(t *testing.T) {
	// The deadline expires while a status request is in flight, so the
	// failure surfaces from the HTTP layer rather than on ctx.Done(). It
	// must still classify as a timeout and cancel the job.
	provider := &fakeProvider{
		statuses:    []string{statusQueued},
		statusDelay: 200 * time.Millisecond,
	}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	c := testClient(t, srv.URL, 30*time.Millisecond)
	_, err := c.Execute(context.Background(), frozenCircuit(t), 1024)
	require.ErrorIs(t, err, domain.ErrJobTimeout)
	assert.NotErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Equal(t, int32(1), provider.cancels.Load())
}

func TestCancelChecksResponseStatus(t *testing.T) {
	provider := &fakeProvider{cancelStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	c := testClient(t, srv.URL, time.Minute)
	assert.Error(t, c.Cancel("job-1"))

	// A job that already finished is not a cancellation failure.
	provider.cancelStatus = http.StatusNotFound
	assert.NoError(t, c.Cancel("job-1"))
}

func TestExecuteUnreachableProvider(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1", time.Second)
	_, err := c.Execute(context.Background(), frozenCircuit(t), 1024)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
}

func TestExecuteRejectsUnfrozenCircuit(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:1", time.Second)
	_, err := c.Execute(context.Background(), circuit.New(), 1024)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestNormalizeCountsPadding(t *testing.T) {
	counts := normalizeCounts(map[string]int{"0x5": 10, "11 01": 5}, 4)
	assert.Equal(t, map[string]int{"0101": 10, "1101": 5}, counts)
}
