package assembler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/modules/interpret"
	"github.com/aristath/qumatch/internal/sim"
	"github.com/aristath/qumatch/pkg/bitstring"
	"github.com/aristath/qumatch/pkg/logger"
)

func newAssembler() *Assembler {
	return New(logger.New(logger.Config{Level: "error"}))
}

// runAndInterpret assembles, simulates and interprets one request.
func runAndInterpret(t *testing.T, req domain.MatchRequest) (*Assembly, *domain.Interpretation) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	asm, err := newAssembler().Assemble(req)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	res, err := sim.New(log).Execute(context.Background(), asm.Circuit, req.Shots)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out, err := interpret.New(log).Interpret(res, req.Mode, asm.N, asm.D, asm.IndexWidth)
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	return asm, out
}

func TestAssembleFPM(t *testing.T) {
	tests := []struct {
		name string
		x, y string
		d    int
		want string
	}{
		{name: "matching prefix", x: "0110", y: "0100", d: 2, want: "1"},
		{name: "mismatching prefix", x: "0110", y: "1000", d: 2, want: "0"},
		{name: "full-length match", x: "0110", y: "0110", d: 4, want: "1"},
		{name: "single-bit mismatch", x: "10", y: "01", d: 1, want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out := runAndInterpret(t, domain.MatchRequest{
				X: tt.x, Y: tt.y, Length: tt.d, Mode: domain.ModeFPM, Shots: 1024,
			})
			if p := out.Outcomes[tt.want]; math.Abs(p-1) > 1e-9 {
				t.Errorf("Outcomes = %v, want all mass on %q", out.Outcomes, tt.want)
			}
		})
	}
}

func TestAssembleFFP(t *testing.T) {
	_, out := runAndInterpret(t, domain.MatchRequest{
		X: "0110", Y: "1100", Length: 2, Position: 1, Mode: domain.ModeFFP, Shots: 1024,
	})
	if p := out.Outcomes["1"]; math.Abs(p-1) > 1e-9 {
		t.Errorf("Outcomes = %v, want all mass on \"1\"", out.Outcomes)
	}
}

// Bits outside the compared window must not influence the verdict.
func TestAssembleFFPWindowIndependence(t *testing.T) {
	base := domain.MatchRequest{
		X: "0110", Y: "1100", Length: 2, Position: 1, Mode: domain.ModeFFP, Shots: 1024,
	}
	variant := base
	variant.X = "0111" // differs only at position 3, outside [1, 3)

	_, outA := runAndInterpret(t, base)
	_, outB := runAndInterpret(t, variant)
	if math.Abs(outA.Outcomes["1"]-outB.Outcomes["1"]) > 1e-9 {
		t.Errorf("verdict changed with out-of-window bit: %v vs %v", outA.Outcomes, outB.Outcomes)
	}
}

func TestAssembleSFSCSingleMatch(t *testing.T) {
	const x, y, d = "0110", "1100", 2

	// The classical matcher is the ground truth for where the mass lands.
	offsets := bitstring.MatchOffsets(x, y, d)
	if len(offsets) != 1 {
		t.Fatalf("MatchOffsets(%q, %q, %d) = %v, want exactly one offset", x, y, d, offsets)
	}
	want := strconv.Itoa(offsets[0])

	asm, out := runAndInterpret(t, domain.MatchRequest{
		X: x, Y: y, Length: d, Mode: domain.ModeSFSC, Shots: 1024,
	})
	if asm.IndexWidth != 2 {
		t.Fatalf("IndexWidth = %d, want 2", asm.IndexWidth)
	}
	if p := out.Outcomes[want]; math.Abs(p-1) > 1e-9 {
		t.Errorf("Outcomes = %v, want all matched mass on offset %s", out.Outcomes, want)
	}
	// Three of the four superposed offsets miss.
	if math.Abs(out.NoMatchWeight-0.75) > 1e-9 {
		t.Errorf("NoMatchWeight = %v, want 0.75", out.NoMatchWeight)
	}
}

// Offset 3 exceeds n-d but is addressable because the index width rounds up;
// its mass must land in the out-of-range bucket, not disappear.
func TestAssembleSFSCOutOfRangeBucket(t *testing.T) {
	const x, y, d = "0110", "0000", 2
	if offsets := bitstring.MatchOffsets(x, y, d); len(offsets) != 0 {
		t.Fatalf("MatchOffsets(%q, %q, %d) = %v, want no in-range offset", x, y, d, offsets)
	}

	_, out := runAndInterpret(t, domain.MatchRequest{
		X: x, Y: y, Length: d, Mode: domain.ModeSFSC, Shots: 1024,
	})
	if p := out.Outcomes[domain.OutcomeOutOfRange]; math.Abs(p-1) > 1e-9 {
		t.Errorf("Outcomes = %v, want all matched mass out of range", out.Outcomes)
	}
}

func TestAssembleSFSCFullLengthWindow(t *testing.T) {
	asm, out := runAndInterpret(t, domain.MatchRequest{
		X: "01", Y: "01", Length: 2, Mode: domain.ModeSFSC, Shots: 1024,
	})
	if asm.IndexWidth != 0 {
		t.Fatalf("IndexWidth = %d, want 0", asm.IndexWidth)
	}
	if p := out.Outcomes["0"]; math.Abs(p-1) > 1e-9 {
		t.Errorf("Outcomes = %v, want all mass on offset 0", out.Outcomes)
	}
	if out.NoMatchWeight != 0 {
		t.Errorf("NoMatchWeight = %v, want 0", out.NoMatchWeight)
	}
}

func TestAssembleFreezesCircuit(t *testing.T) {
	asm, err := newAssembler().Assemble(domain.MatchRequest{
		X: "0110", Y: "0110", Length: 2, Mode: domain.ModeFPM, Shots: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !asm.Circuit.Frozen() {
		t.Error("assembled circuit is not frozen")
	}
	asm.Circuit.X(0)
	if asm.Circuit.Err() == nil {
		t.Error("mutation after freeze did not record an error")
	}
}

func TestAssembleRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  domain.MatchRequest
	}{
		{name: "length not a power of two", req: domain.MatchRequest{X: "0110", Y: "0110", Length: 3, Mode: domain.ModeFPM}},
		{name: "length exceeds input", req: domain.MatchRequest{X: "01", Y: "01", Length: 4, Mode: domain.ModeFPM}},
		{name: "position out of range", req: domain.MatchRequest{X: "0110", Y: "0110", Length: 2, Position: 3, Mode: domain.ModeFFP}},
		{name: "unknown mode", req: domain.MatchRequest{X: "01", Y: "01", Length: 1, Mode: "GREP"}},
		{name: "unequal lengths", req: domain.MatchRequest{X: "0110", Y: "01", Length: 2, Mode: domain.ModeFPM}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := newAssembler().Assemble(tt.req); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

// Realized circuits must stay inside the published closed-form bounds.
func TestAssembleWithinResourceBounds(t *testing.T) {
	zeros := func(n int) string { return strings.Repeat("0", n) }
	asmr := newAssembler()

	for _, n := range []int{2, 4, 8, 16} {
		for d := 1; d <= n; d *= 2 {
			for _, mode := range []domain.Mode{domain.ModeFPM, domain.ModeFFP, domain.ModeSFSC} {
				t.Run(fmt.Sprintf("%s_n%d_d%d", mode, n, d), func(t *testing.T) {
					asm, err := asmr.Assemble(domain.MatchRequest{
						X: zeros(n), Y: zeros(n), Length: d, Mode: mode, Shots: 1,
					})
					if err != nil {
						t.Fatalf("Assemble() error = %v", err)
					}
					if q, bound := asm.Qubits(), QubitCount(n, d); q > bound {
						t.Errorf("qubits = %d, bound = %d", q, bound)
					}
					if dep, bound := asm.Depth(), DepthBound(n); dep > bound {
						t.Errorf("depth = %d, bound = %d", dep, bound)
					}
				})
			}
		}
	}
}

func TestBoundFormulas(t *testing.T) {
	tests := []struct {
		n, d       int
		wantQubits int
		wantDepth  int
	}{
		{n: 2, d: 2, wantQubits: 19, wantDepth: 16},
		{n: 4, d: 2, wantQubits: 62, wantDepth: 128},
		{n: 8, d: 4, wantQubits: 192, wantDepth: 432},
		{n: 16, d: 16, wantQubits: 552, wantDepth: 1024},
	}
	for _, tt := range tests {
		if got := QubitCount(tt.n, tt.d); got != tt.wantQubits {
			t.Errorf("QubitCount(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.wantQubits)
		}
		if got := DepthBound(tt.n); got != tt.wantDepth {
			t.Errorf("DepthBound(%d) = %d, want %d", tt.n, got, tt.wantDepth)
		}
	}
	if got := VolumeBound(8); got != 8424 {
		t.Errorf("VolumeBound(8) = %d, want 8424", got)
	}
}
