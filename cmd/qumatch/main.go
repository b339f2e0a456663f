// Package main is the qumatch command line interface: assemble a matching
// circuit, run it on the local simulator or on provider hardware, and print
// the match distribution.
//
// Usage:
//
//	qumatch [flags] <text> <pattern> <window-length>
//
// Examples:
//
//	qumatch -l 01100110 00110011 4
//	qumatch -l -m FFP -p 2 0110 1000 2
//	qumatch -t $IBMQ_API_TOKEN 0110 1100 2
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/aristath/qumatch/internal/clients/ibmq"
	"github.com/aristath/qumatch/internal/config"
	"github.com/aristath/qumatch/internal/domain"
	"github.com/aristath/qumatch/internal/modules/assembler"
	"github.com/aristath/qumatch/internal/modules/interpret"
	"github.com/aristath/qumatch/internal/sim"
	"github.com/aristath/qumatch/pkg/bitstring"
	"github.com/aristath/qumatch/pkg/logger"
)

func main() {
	var (
		mode     = flag.String("m", "SFSC", "matching mode: FPM, FFP or SFSC")
		position = flag.Int("p", 0, "window position (FFP only)")
		backend  = flag.String("b", "ibm_brisbane", "provider backend name")
		local    = flag.Bool("l", false, "run on the local statevector simulator")
		token    = flag.String("t", "", "provider API token (or IBMQ_API_TOKEN)")
		shots    = flag.Int("shots", 1024, "number of shots")
		pad      = flag.Bool("pad", false, "zero-pad inputs up to the next power of two")
		emitQASM = flag.Bool("qasm", false, "print the OpenQASM source instead of executing")
		logLevel = flag.String("log", "warn", "log level")
	)
	flag.Parse()

	if flag.NArg() != 3 {
		fmt.Fprintln(os.Stderr, "usage: qumatch [flags] <text> <pattern> <window-length>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := logger.New(logger.Config{Level: *logLevel, Pretty: true})

	x, y := flag.Arg(0), flag.Arg(1)
	d, err := strconv.Atoi(flag.Arg(2))
	if err != nil {
		fatal("window length must be an integer: %v", err)
	}
	if *pad {
		x = bitstring.Pad(x, '0')
		y = bitstring.Pad(y, '0')
		if len(y) < len(x) {
			for len(y) < len(x) {
				y += "0"
			}
		}
	}

	parsedMode, err := domain.ParseMode(*mode)
	if err != nil {
		fatal("%v", err)
	}

	req := domain.MatchRequest{
		X:        x,
		Y:        y,
		Length:   d,
		Position: *position,
		Mode:     parsedMode,
		Shots:    *shots,
		Backend:  *backend,
	}

	asm, err := assembler.New(log).Assemble(req)
	if err != nil {
		fatal("assembly failed: %v", err)
	}

	n := asm.N
	fmt.Printf("mode=%s n=%d d=%d qubits=%d (bound %d) depth=%d (bound %d)\n",
		req.Mode, n, asm.D,
		asm.Qubits(), assembler.QubitCount(n, asm.D),
		asm.Depth(), assembler.DepthBound(n))

	if *emitQASM {
		fmt.Print(asm.Circuit.QASM())
		return
	}

	var exec domain.Backend
	if *local || *backend == sim.BackendName {
		exec = sim.New(log)
	} else {
		apiToken := *token
		if apiToken == "" {
			apiToken = os.Getenv("IBMQ_API_TOKEN")
		}
		if apiToken == "" {
			fatal("a provider token is required for backend %q (-t or IBMQ_API_TOKEN)", *backend)
		}
		exec = ibmq.NewClient(config.IBMQConfig{
			APIURL:       getEnv("IBMQ_API_URL", "https://api.quantum-computing.ibm.com/runtime"),
			APIToken:     apiToken,
			PollInterval: 5 * time.Second,
			JobTimeout:   10 * time.Minute,
		}, *backend, log)
	}

	result, err := exec.Execute(context.Background(), asm.Circuit, req.Shots)
	if err != nil {
		fatal("execution failed: %v", err)
	}

	interp, err := interpret.New(log).Interpret(result, req.Mode, n, asm.D, asm.IndexWidth)
	if err != nil {
		fatal("interpretation failed: %v", err)
	}

	printInterpretation(interp, result)
}

func printInterpretation(interp *domain.Interpretation, result *domain.MeasurementResult) {
	fmt.Printf("backend=%s shots=%d\n", result.BackendID, result.Shots)

	keys := make([]string, 0, len(interp.Outcomes))
	for key := range interp.Outcomes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return interp.Outcomes[keys[i]] > interp.Outcomes[keys[j]]
	})

	switch interp.Mode {
	case domain.ModeSFSC:
		fmt.Printf("no-match weight: %.4f\n", interp.NoMatchWeight)
		for _, key := range keys {
			label := "offset " + key
			if key == domain.OutcomeOutOfRange {
				label = key
			}
			fmt.Printf("  %-14s %.4f\n", label, interp.Outcomes[key])
		}
	default:
		for _, key := range keys {
			verdict := "no match"
			if key == "1" {
				verdict = "match"
			}
			fmt.Printf("  %-10s %.4f\n", verdict, interp.Outcomes[key])
		}
	}
	fmt.Printf("entropy: %.4f nats\n", interp.Entropy)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "qumatch: "+format+"\n", args...)
	os.Exit(1)
}
