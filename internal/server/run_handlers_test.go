package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qumatch/internal/config"
	"github.com/aristath/qumatch/internal/database"
	"github.com/aristath/qumatch/internal/database/repositories"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/events"
	"github.com/aristath/qumatch/internal/sim"
	"github.com/aristath/qumatch/pkg/logger"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "runs.db"),
		Profile: database.ProfileHistory,
		Name:    "runs",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewManager(log)
	t.Cleanup(bus.Close)

	local := sim.New(log)
	return New(Config{
		Log:      log,
		Config:   &config.Config{Shots: 1024, Backend: sim.BackendName},
		RunsDB:   db,
		Repo:     repositories.NewRunRepository(db.Conn(), log),
		EventBus: bus,
		Backends: map[string]domain.Backend{local.Name(): local},
		Port:     0,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestMatchNowSynchronous(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/match", domain.MatchRequest{
		X: "0110", Y: "1100", Length: 2, Mode: domain.ModeSFSC,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Interpretation)
	assert.InDelta(t, 1.0, run.Interpretation.Outcomes["1"], 1e-9)
	// Defaults filled in from config.
	assert.Equal(t, 1024, run.Request.Shots)
	assert.Equal(t, sim.BackendName, run.Request.Backend)
}

func TestMatchNowRecordsRun(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/match", domain.MatchRequest{
		X: "0110", Y: "0110", Length: 2, Mode: domain.ModeFPM,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))

	rec = doJSON(t, s, http.MethodGet, "/api/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, domain.RunStatusCompleted, stored.Status)
	require.NotNil(t, stored.Interpretation)
	assert.InDelta(t, 1.0, stored.Interpretation.Outcomes["1"], 1e-9)
}

func TestMatchNowSurvivesHistoryFailure(t *testing.T) {
	s := setupServer(t)
	// Persistence is best effort; a broken history store must not turn a
	// successful execution into an error response.
	require.NoError(t, s.runsDB.Close())

	rec := doJSON(t, s, http.MethodPost, "/api/match", domain.MatchRequest{
		X: "01", Y: "01", Length: 1, Mode: domain.ModeFPM,
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCreateRunQueuesPending(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/runs", domain.MatchRequest{
		X: "0110", Y: "0110", Length: 2, Mode: domain.ModeFPM,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Greater(t, run.Qubits, 0)

	rec = doJSON(t, s, http.MethodGet, "/api/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)
}

func TestCreateRunRejectsInvalidRequest(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/runs", domain.MatchRequest{
		X: "0110", Y: "0110", Length: 3, Mode: domain.ModeFPM,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunQASM(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/runs", domain.MatchRequest{
		X: "01", Y: "01", Length: 1, Mode: domain.ModeFPM,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var run domain.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))

	rec = doJSON(t, s, http.MethodGet, "/api/runs/"+run.ID+"/qasm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "OPENQASM 2.0;"))
}

func TestGetMissingRun(t *testing.T) {
	s := setupServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBackends(t *testing.T) {
	s := setupServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/backends", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Backends []string `json:"backends"`
		Default  string   `json:"default"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{sim.BackendName}, resp.Backends)
	assert.Equal(t, sim.BackendName, resp.Default)
}

func TestBoundsEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/bounds?n=8&d=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 192, resp["qubit_bound"])
	assert.Equal(t, 432, resp["depth_bound"])
	assert.Equal(t, 3, resp["index_width"])

	rec = doJSON(t, s, http.MethodGet, "/api/bounds?n=7&d=4", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchNowUnknownBackend(t *testing.T) {
	s := setupServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/match", domain.MatchRequest{
		X: "01", Y: "01", Length: 1, Mode: domain.ModeFPM, Backend: "ibm_atlantis",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteErrorStatusMapping(t *testing.T) {
	s := setupServer(t)
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{domain.ErrTranspilation, http.StatusBadGateway},
		{domain.ErrJobTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.writeError(rec, tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
	}
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
