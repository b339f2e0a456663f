package events

// RunQueuedData contains data for RunQueued events
type RunQueuedData struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Qubits int    `json:"qubits"`
	Depth  int    `json:"depth"`
}

// EventType returns the event type for RunQueuedData
func (d *RunQueuedData) EventType() EventType {
	return RunQueued
}

// RunSubmittedData contains data for RunSubmitted events
type RunSubmittedData struct {
	RunID   string `json:"run_id"`
	JobID   string `json:"job_id,omitempty"`
	Backend string `json:"backend"`
}

// EventType returns the event type for RunSubmittedData
func (d *RunSubmittedData) EventType() EventType {
	return RunSubmitted
}

// RunCompletedData contains data for RunCompleted events
type RunCompletedData struct {
	RunID          string  `json:"run_id"`
	TopOutcome     string  `json:"top_outcome"`
	TopProbability float64 `json:"top_probability"`
	NoMatchWeight  float64 `json:"no_match_weight,omitempty"`
	Entropy        float64 `json:"entropy"`
}

// EventType returns the event type for RunCompletedData
func (d *RunCompletedData) EventType() EventType {
	return RunCompleted
}

// RunFailedData contains data for RunFailed events
type RunFailedData struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
}

// EventType returns the event type for RunFailedData
func (d *RunFailedData) EventType() EventType {
	return RunFailed
}

// BackendHealthChangedData contains data for BackendHealthChanged events
type BackendHealthChangedData struct {
	Backend string `json:"backend"`
	Healthy bool   `json:"healthy"`
}

// EventType returns the event type for BackendHealthChangedData
func (d *BackendHealthChangedData) EventType() EventType {
	return BackendHealthChanged
}
