// Package domain holds the shared models, error values and interfaces of the
// matching pipeline.
package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/pkg/bitstring"
)

// Mode selects which matching circuit is assembled.
type Mode string

const (
	// ModeFPM tests equality of the first d bits of x and y.
	ModeFPM Mode = "FPM"
	// ModeFFP tests equality of x[p:p+d] against y[0:d] for a fixed p.
	ModeFFP Mode = "FFP"
	// ModeSFSC tests equality of y[0:d] against every window of x in
	// superposition over the window offset.
	ModeSFSC Mode = "SFSC"
)

// ParseMode parses a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFPM, ModeFFP, ModeSFSC:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
}

// MatchRequest is the caller-supplied description of one run. It is immutable
// for the lifetime of the run.
type MatchRequest struct {
	X        string `json:"x"`
	Y        string `json:"y"`
	Length   int    `json:"length"`   // d, power of two, 1 <= d <= n
	Position int    `json:"position"` // FFP only, in [0, n-d]
	Mode     Mode   `json:"mode"`
	Shots    int    `json:"shots"`
	Backend  string `json:"backend"`
}

// Validate checks the request against the construction invariants. All
// violations map to ErrInvalidInput so callers can reject before any circuit
// is built or any job submitted.
func (r MatchRequest) Validate() error {
	x, _, err := bitstring.ParsePair(r.X, r.Y)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	n := x.Len()
	if !bitstring.IsPowerOfTwo(r.Length) {
		return fmt.Errorf("%w: length %d is not a power of two", ErrInvalidInput, r.Length)
	}
	if r.Length > n {
		return fmt.Errorf("%w: length %d exceeds input size %d", ErrInvalidInput, r.Length, n)
	}
	switch r.Mode {
	case ModeFPM, ModeSFSC:
	case ModeFFP:
		if r.Position < 0 || r.Position > n-r.Length {
			return fmt.Errorf("%w: position %d outside [0, %d]", ErrInvalidInput, r.Position, n-r.Length)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, r.Mode)
	}
	if r.Shots < 0 {
		return fmt.Errorf("%w: negative shot count %d", ErrInvalidInput, r.Shots)
	}
	return nil
}

// N returns the input length. Only meaningful after Validate.
func (r MatchRequest) N() int { return len(r.X) }

// MeasurementResult maps observed classical bitstrings to occurrence counts.
// Keys follow the usual convention of highest classical bit first, so the
// flag bit (c[0]) is the last character. Read-only once produced.
type MeasurementResult struct {
	Counts    map[string]int `json:"counts"`
	Shots     int            `json:"shots"`
	BackendID string         `json:"backend_id"`
	JobID     string         `json:"job_id,omitempty"`
}

// Interpretation is the normalized match distribution derived from a
// MeasurementResult.
type Interpretation struct {
	Mode Mode `json:"mode"`

	// Outcomes maps an outcome key to its probability. Keys are "0"/"1"
	// for FPM and FFP, and decimal offsets plus OutcomeOutOfRange for
	// SFSC. For SFSC probabilities are normalized over flag-1 shots.
	Outcomes map[string]float64 `json:"outcomes"`

	// NoMatchWeight is the fraction of shots whose flag bit was 0
	// (SFSC only). It is reported rather than folded into Outcomes so no
	// measurement mass is silently dropped.
	NoMatchWeight float64 `json:"no_match_weight,omitempty"`

	// Entropy of the outcome distribution in nats, as a quick sanity
	// signal for how concentrated the result is.
	Entropy float64 `json:"entropy"`
}

// OutcomeOutOfRange collects SFSC index values above n-d that are reachable
// only through the rounding of the index register width.
const OutcomeOutOfRange = "out_of_range"

// Backend executes a frozen circuit and returns raw counts. Implementations
// must honor ctx cancellation while waiting on provider queues.
type Backend interface {
	Name() string
	Execute(ctx context.Context, qc *circuit.Circuit, shots int) (*MeasurementResult, error)
}

// RunStatus tracks a run through the execution pipeline.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded execution: the request, the realized circuit metrics
// and, once available, the raw counts and their interpretation.
type Run struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Request   MatchRequest `json:"request"`
	Status    RunStatus    `json:"status"`

	Qubits int `json:"qubits"`
	Depth  int `json:"depth"`

	JobID          string             `json:"job_id,omitempty"`
	Error          string             `json:"error,omitempty"`
	Result         *MeasurementResult `json:"result,omitempty"`
	Interpretation *Interpretation    `json:"interpretation,omitempty"`
}
