package ibmq

// jobRequest is the submission payload for the runtime sampler
type jobRequest struct {
	ProgramID string    `json:"program_id"`
	Backend   string    `json:"backend"`
	Params    jobParams `json:"params"`
}

// jobParams carries the circuit and execution options
type jobParams struct {
	Circuits []string `json:"circuits"` // OpenQASM 2.0 sources
	Shots    int      `json:"shots"`
}

// jobResponse is returned on submission
type jobResponse struct {
	ID string `json:"id"`
}

// Job states reported by the provider
const (
	statusQueued    = "Queued"
	statusRunning   = "Running"
	statusCompleted = "Completed"
	statusFailed    = "Failed"
	statusCancelled = "Cancelled"
)

// jobStatusResponse is returned while polling
type jobStatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"` // failure detail, e.g. transpilation errors
}

// jobResultsResponse holds the measurement outcome of a completed job. Keys
// are classical bitstrings, or hex strings ("0x2e") depending on the backend.
type jobResultsResponse struct {
	Counts map[string]int `json:"counts"`
}
