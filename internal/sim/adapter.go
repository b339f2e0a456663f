package sim

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/qumatch/internal/circuit"
	"github.com/aristath/qumatch/internal/domain"
)

// DefaultMaxQubits caps the amplitude vector at 2^24 entries (256 MiB).
const DefaultMaxQubits = 24

// BackendName identifies the local adapter in results and run records.
const BackendName = "local_statevector"

// Adapter implements domain.Backend on top of the statevector simulator.
// Counts are derived from exact probabilities by largest-remainder rounding,
// so a probability-1 outcome yields every shot deterministically.
type Adapter struct {
	log       zerolog.Logger
	maxQubits int
}

// New creates an adapter with the default qubit cap.
func New(log zerolog.Logger) *Adapter {
	return &Adapter{
		log:       log.With().Str("client", BackendName).Logger(),
		maxQubits: DefaultMaxQubits,
	}
}

// Name implements domain.Backend.
func (a *Adapter) Name() string { return BackendName }

// Execute implements domain.Backend.
func (a *Adapter) Execute(ctx context.Context, qc *circuit.Circuit, shots int) (*domain.MeasurementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !qc.Frozen() {
		return nil, fmt.Errorf("%w: circuit must be frozen before execution", domain.ErrInvalidInput)
	}
	if shots <= 0 {
		return nil, fmt.Errorf("%w: shots must be positive", domain.ErrInvalidInput)
	}
	if len(qc.Bindings()) == 0 {
		return nil, fmt.Errorf("%w: circuit has no measurements", domain.ErrInvalidInput)
	}

	state, err := Run(qc, a.maxQubits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	probs := state.ClassicalProbabilities(qc.Bindings())
	counts := quantize(probs, shots)

	a.log.Debug().
		Int("qubits", qc.Qubits()).
		Int("shots", shots).
		Int("outcomes", len(counts)).
		Msg("Simulated circuit")
	return &domain.MeasurementResult{
		Counts:    counts,
		Shots:     shots,
		BackendID: BackendName,
	}, nil
}

// quantize distributes shots proportionally to the outcome probabilities
// using largest-remainder apportionment, keeping the total exact.
func quantize(probs map[string]float64, shots int) map[string]int {
	keys := make([]string, 0, len(probs))
	raw := make([]float64, 0, len(probs))
	for key, p := range probs {
		keys = append(keys, key)
		raw = append(raw, p)
	}
	if sum := floats.Sum(raw); sum > 0 {
		floats.Scale(1/sum, raw)
	}

	counts := make(map[string]int, len(keys))
	type remainder struct {
		key  string
		frac float64
	}
	assigned := 0
	remainders := make([]remainder, 0, len(keys))
	for i, key := range keys {
		exact := raw[i] * float64(shots)
		whole := int(exact)
		counts[key] = whole
		assigned += whole
		remainders = append(remainders, remainder{key: key, frac: exact - float64(whole)})
	}
	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].frac != remainders[j].frac {
			return remainders[i].frac > remainders[j].frac
		}
		return remainders[i].key < remainders[j].key
	})
	for i := 0; assigned < shots && i < len(remainders); i++ {
		counts[remainders[i].key]++
		assigned++
	}
	for key, c := range counts {
		if c == 0 {
			delete(counts, key)
		}
	}
	return counts
}
