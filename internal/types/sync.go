package types

import (
	"fmt"
	"time"
)

// SyncState is the lifecycle state of a human sync request
type SyncState string

const (
	SyncOpen     SyncState = "open"
	SyncAnswered SyncState = "answered"
	SyncExpired  SyncState = "expired"
)

// IsValid checks if the sync state value is valid
func (s SyncState) IsValid() bool {
	switch s {
	case SyncOpen, SyncAnswered, SyncExpired:
		return true
	}
	return false
}

// IsTerminal reports whether the state permits no further transitions
func (s SyncState) IsTerminal() bool {
	return s == SyncAnswered || s == SyncExpired
}

// HumanSyncRequest pauses the pipeline to ask a human a disambiguating
// question. Questions always enumerate concrete options; an expired request
// surfaces as a blocked task, never as a silent default answer.
type HumanSyncRequest struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	Question   string     `json:"question"`
	Options    []string   `json:"options"`
	State      SyncState  `json:"state"`
	Response   string     `json:"response,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Validate checks sync request invariants
func (r *HumanSyncRequest) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if r.Question == "" {
		return fmt.Errorf("question is required")
	}
	if len(r.Options) < 2 {
		return fmt.Errorf("at least 2 options are required (got %d)", len(r.Options))
	}
	if !r.State.IsValid() {
		return fmt.Errorf("invalid sync state: %s", r.State)
	}
	if r.State == SyncAnswered && r.Response == "" {
		return fmt.Errorf("answered request must carry a response")
	}
	return nil
}
