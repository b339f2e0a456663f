// Package interpret normalizes raw measurement counts into the match
// distribution for a run.
package interpret

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/qumatch/internal/domain"
)

// Interpreter maps measurement bitstrings onto match hypotheses: a boolean
// for FPM/FFP, a window offset for SFSC. Count keys follow the highest-bit-
// first convention, so the flag (classical bit 0) is the rightmost character
// and index bit i sits at position 1+i from the right.
type Interpreter struct {
	log zerolog.Logger
}

// New creates an interpreter.
func New(log zerolog.Logger) *Interpreter {
	return &Interpreter{log: log.With().Str("component", "interpreter").Logger()}
}

// Interpret turns counts into a probability distribution over outcomes.
//
// For SFSC the distribution is normalized over flag-1 shots: offsets up to
// n-d keep their decimal key, larger offsets (reachable only because the
// index width is rounded up) are pooled under OutcomeOutOfRange rather than
// dropped. The flag-0 fraction is reported as NoMatchWeight.
func (it *Interpreter) Interpret(res *domain.MeasurementResult, mode domain.Mode, n, d, indexWidth int) (*domain.Interpretation, error) {
	if res == nil || len(res.Counts) == 0 {
		return nil, fmt.Errorf("%w: empty measurement result", domain.ErrInvalidInput)
	}

	total := 0
	for key, count := range res.Counts {
		if count < 0 {
			return nil, fmt.Errorf("%w: negative count for %q", domain.ErrInvalidInput, key)
		}
		total += count
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: all counts are zero", domain.ErrInvalidInput)
	}

	out := &domain.Interpretation{Mode: mode, Outcomes: make(map[string]float64)}

	switch mode {
	case domain.ModeFPM, domain.ModeFFP:
		for key, count := range res.Counts {
			flag, err := bitAt(key, 0)
			if err != nil {
				return nil, err
			}
			out.Outcomes[strconv.Itoa(flag)] += float64(count) / float64(total)
		}

	case domain.ModeSFSC:
		matched := 0
		matchCounts := make(map[string]int)
		for key, count := range res.Counts {
			flag, err := bitAt(key, 0)
			if err != nil {
				return nil, err
			}
			if flag == 0 {
				continue
			}
			matched += count
			j, err := indexValue(key, indexWidth)
			if err != nil {
				return nil, err
			}
			bucket := strconv.Itoa(j)
			if j > n-d {
				bucket = domain.OutcomeOutOfRange
			}
			matchCounts[bucket] += count
		}
		out.NoMatchWeight = float64(total-matched) / float64(total)
		for bucket, count := range matchCounts {
			out.Outcomes[bucket] = float64(count) / float64(matched)
		}

	default:
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, mode)
	}

	out.Entropy = distributionEntropy(out.Outcomes)
	it.log.Debug().
		Str("mode", string(mode)).
		Int("shots", total).
		Float64("entropy", out.Entropy).
		Msg("Interpreted measurement result")
	return out, nil
}

// bitAt reads classical bit cbit from a highest-bit-first key. Keys shorter
// than the classical register are treated as zero-padded on the left, which
// is how providers elide leading zeros.
func bitAt(key string, cbit int) (int, error) {
	pos := len(key) - 1 - cbit
	if pos < 0 {
		return 0, nil
	}
	switch key[pos] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	}
	return 0, fmt.Errorf("%w: measurement key %q is not binary", domain.ErrInvalidInput, key)
}

// indexValue decodes the offset register from classical bits 1..width.
func indexValue(key string, width int) (int, error) {
	j := 0
	for i := 0; i < width; i++ {
		bit, err := bitAt(key, 1+i)
		if err != nil {
			return 0, err
		}
		j |= bit << i
	}
	return j, nil
}

// distributionEntropy computes the Shannon entropy of the outcome map in
// nats. gonum's Entropy expects a normalized distribution.
func distributionEntropy(outcomes map[string]float64) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	probs := make([]float64, 0, len(outcomes))
	for _, p := range outcomes {
		probs = append(probs, p)
	}
	if sum := floats.Sum(probs); sum > 0 {
		floats.Scale(1/sum, probs)
	}
	return stat.Entropy(probs)
}
