package types

import (
	"errors"
	"fmt"
)

// Phase identifies the pipeline stage that last completed. Every
// user-visible failure carries the task ID and phase so a retry can resume
// with context.
type Phase string

const (
	PhaseIntake   Phase = "intake"
	PhaseClassify Phase = "classify"
	PhasePrepare  Phase = "prepare"
	PhaseGate     Phase = "gate"
	PhaseSync     Phase = "human_sync"
	PhaseEmit     Phase = "emit"
)

// Sentinel errors for the closed failure taxonomy. Components wrap these
// with fmt.Errorf("%w") so callers can branch with errors.Is without string
// matching.
var (
	// ErrOracleUnavailable means the LLM oracle could not be reached or
	// timed out. Always recovered locally (heuristic classification,
	// deterministic scoring); never surfaced as a task failure.
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrArchiveUnavailable means the archive could not serve a call.
	// Recovered for reads as empty history; fatal for required writes.
	ErrArchiveUnavailable = errors.New("archive unavailable")
)

// QualityBlockedError is the expected terminal state of a preparation
// attempt whose package scored below the gate threshold.
type QualityBlockedError struct {
	TaskID  string
	Score   int
	Reasons []string
}

func (e *QualityBlockedError) Error() string {
	return fmt.Sprintf("task %s blocked by quality gate (score=%d): %v", e.TaskID, e.Score, e.Reasons)
}

// HumanSyncExpiredError means the human never responded within the bounded
// wait. The task is blocked and requires a manual restart; the pipeline
// must not resume with a default guess.
type HumanSyncExpiredError struct {
	TaskID    string
	RequestID string
}

func (e *HumanSyncExpiredError) Error() string {
	return fmt.Sprintf("task %s blocked: human sync request %s expired without a response", e.TaskID, e.RequestID)
}

// MalformedReportError rejects an execution report naming the specific
// field that is missing or invalid. Nothing is recorded for a malformed
// report — partial feedback records are worse than none.
type MalformedReportError struct {
	Field  string
	Detail string
}

func (e *MalformedReportError) Error() string {
	return fmt.Sprintf("malformed execution report: field %q: %s", e.Field, e.Detail)
}

// PhaseError annotates a failure with the task and the last phase that
// completed before it.
type PhaseError struct {
	TaskID    string
	LastPhase Phase
	Err       error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("task %s failed after phase %s: %v", e.TaskID, e.LastPhase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
