package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/events"
	"github.com/aristath/qumatch/internal/modules/assembler"
	"github.com/aristath/qumatch/internal/modules/interpret"
	"github.com/aristath/qumatch/internal/modules/superpose"
	"github.com/aristath/qumatch/pkg/bitstring"
)

// handleCreateRun validates and assembles a run, then queues it for the
// execution job. Assembly happens before the row is written, so a request
// that cannot produce a circuit is rejected immediately instead of failing
// later in the background.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	asm, err := s.assembler.Assemble(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	blob, err := circuit.Encode(asm.Circuit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	run := &domain.Run{
		ID:      uuid.New().String(),
		Request: req,
		Status:  domain.RunStatusPending,
		Qubits:  asm.Qubits(),
		Depth:   asm.Depth(),
	}
	if err := s.repo.Create(run, blob); err != nil {
		s.writeError(w, err)
		return
	}

	s.eventBus.EmitTyped("server", &events.RunQueuedData{
		RunID:  run.ID,
		Mode:   string(req.Mode),
		Qubits: run.Qubits,
		Depth:  run.Depth,
	})
	s.writeJSON(w, http.StatusCreated, run)
}

// handleMatchNow assembles and executes a run synchronously. Intended for the
// local simulator; hardware backends can take minutes and should go through
// the queue instead.
func (s *Server) handleMatchNow(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	backend, ok := s.backends[req.Backend]
	if !ok {
		s.writeError(w, fmt.Errorf("%w: no backend named %q", domain.ErrBackendUnavailable, req.Backend))
		return
	}

	asm, err := s.assembler.Assemble(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := backend.Execute(r.Context(), asm.Circuit, req.Shots)
	if err != nil {
		s.writeError(w, err)
		return
	}

	interp, err := interpret.New(s.log).Interpret(result, req.Mode, asm.N, asm.D, asm.IndexWidth)
	if err != nil {
		s.writeError(w, err)
		return
	}

	run := &domain.Run{
		ID:             uuid.New().String(),
		Request:        req,
		Status:         domain.RunStatusCompleted,
		Qubits:         asm.Qubits(),
		Depth:          asm.Depth(),
		Result:         result,
		Interpretation: interp,
	}
	// Persistence is best effort here; the caller already has the result.
	// Any failure still needs a trace, or the history silently diverges
	// from what was served.
	if blob, err := circuit.Encode(asm.Circuit); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to encode circuit for run history")
	} else if err := s.repo.Create(run, blob); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record synchronous run")
	} else if err := s.repo.Complete(run.ID, result, interp); err != nil {
		s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to mark synchronous run completed")
	}

	s.writeJSON(w, http.StatusOK, run)
}

// handleListRuns returns recent runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := s.repo.List(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one run with its result, if any
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.repo.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleGetRunQASM exports the stored circuit as OpenQASM 2.0
func (s *Server) handleGetRunQASM(w http.ResponseWriter, r *http.Request) {
	blob, err := s.repo.CircuitBlob(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	qc, err := circuit.Decode(blob)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(qc.QASM()))
}

// handleListBackends returns the configured execution backends
func (s *Server) handleListBackends(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backends": names,
		"default":  s.cfg.Backend,
	})
}

// handleBounds reports the closed-form resource bounds for given input sizes,
// so callers can budget hardware before queueing anything
func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || !bitstring.IsPowerOfTwo(n) {
		s.writeError(w, fmt.Errorf("%w: n must be a power of two", domain.ErrInvalidInput))
		return
	}
	d, err := strconv.Atoi(r.URL.Query().Get("d"))
	if err != nil || !bitstring.IsPowerOfTwo(d) || d > n {
		s.writeError(w, fmt.Errorf("%w: d must be a power of two no larger than n", domain.ErrInvalidInput))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int{
		"qubit_bound":  assembler.QubitCount(n, d),
		"depth_bound":  assembler.DepthBound(n),
		"volume_bound": assembler.VolumeBound(n),
		"index_width":  superpose.IndexWidth(n, d),
	})
}

// decodeRequest parses the request body and fills in configured defaults
func (s *Server) decodeRequest(r *http.Request) (domain.MatchRequest, error) {
	var req domain.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidInput, err)
	}
	if req.Shots == 0 {
		req.Shots = s.cfg.Shots
	}
	if req.Backend == "" {
		req.Backend = s.cfg.Backend
	}
	if req.Mode == "" {
		req.Mode = domain.ModeSFSC
	}
	return req, nil
}
