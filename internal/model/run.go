package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the lifecycle state of one supervised engine run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusExited  RunStatus = "exited"
	RunStatusFailed  RunStatus = "failed"
	RunStatusStopped RunStatus = "stopped"
)

// Run is the persisted record of one engine process from start to exit.
type Run struct {
	ID             string     `json:"id"`
	Binary         string     `json:"binary"`
	Args           []string   `json:"args"`
	PID            *int       `json:"pid,omitempty"`
	Status         RunStatus  `json:"status"`
	ExitCode       *int       `json:"exitCode,omitempty"`
	LastLine       string     `json:"lastLine,omitempty"`
	TranscriptPath string     `json:"transcriptPath,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
}

// ArgsToJSON converts Args to a JSON string for storage.
func (r *Run) ArgsToJSON() (string, error) {
	if r.Args == nil {
		return "[]", nil
	}
	data, err := json.Marshal(r.Args)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ArgsFromJSON parses a stored JSON string into Args.
func (r *Run) ArgsFromJSON(data string) error {
	if data == "" {
		r.Args = nil
		return nil
	}
	return json.Unmarshal([]byte(data), &r.Args)
}

// Duration returns how long the run lasted, or has lasted so far.
func (r *Run) Duration() time.Duration {
	if r.EndedAt != nil {
		return r.EndedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// IsActive reports whether the run is still marked running.
func (r *Run) IsActive() bool {
	return r.Status == RunStatusRunning
}
