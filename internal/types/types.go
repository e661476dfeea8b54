package types

import (
	"fmt"
	"strings"
	"time"
)

// Task represents a classified development request
type Task struct {
	ID                   string               `json:"id"`
	RawRequest           string               `json:"raw_request"`
	TaskType             TaskType             `json:"task_type"`
	Confidence           float64              `json:"confidence"`
	ClassificationMethod ClassificationMethod `json:"classification_method"`
	ProjectPath          string               `json:"project_path"`
	CreatedAt            time.Time            `json:"created_at"`
}

// Validate checks if the task has valid field values
func (t *Task) Validate() error {
	if strings.TrimSpace(t.RawRequest) == "" {
		return fmt.Errorf("raw_request is required")
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("confidence must be between 0 and 1 (got %.2f)", t.Confidence)
	}
	if !t.TaskType.IsValid() {
		return fmt.Errorf("invalid task type: %s", t.TaskType)
	}
	if !t.ClassificationMethod.IsValid() {
		return fmt.Errorf("invalid classification method: %s", t.ClassificationMethod)
	}
	return nil
}

// TaskType categorizes the kind of development work being requested
type TaskType string

const (
	TaskCode          TaskType = "code"
	TaskTesting       TaskType = "testing"
	TaskConfiguration TaskType = "configuration"
	TaskDocumentation TaskType = "documentation"
	TaskUnknown       TaskType = "unknown"
)

// IsValid checks if the task type value is valid
func (t TaskType) IsValid() bool {
	switch t {
	case TaskCode, TaskTesting, TaskConfiguration, TaskDocumentation, TaskUnknown:
		return true
	}
	return false
}

// Priority returns the tie-breaking rank for a task type. Lower wins.
// When heuristic scoring produces equal evidence for two types, the
// classifier picks the lower rank so identical inputs always classify
// identically.
func (t TaskType) Priority() int {
	switch t {
	case TaskCode:
		return 0
	case TaskTesting:
		return 1
	case TaskConfiguration:
		return 2
	case TaskDocumentation:
		return 3
	default:
		return 4
	}
}

// ClassificationMethod records how a task type was decided
type ClassificationMethod string

const (
	MethodHeuristic ClassificationMethod = "heuristic"
	MethodLLM       ClassificationMethod = "llm"
)

// IsValid checks if the classification method value is valid
func (m ClassificationMethod) IsValid() bool {
	return m == MethodHeuristic || m == MethodLLM
}

// Tier indicates how strongly a discovered file is predicted to matter
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// IsValid checks if the tier value is valid
func (t Tier) IsValid() bool {
	switch t {
	case TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// MustReadEntry is one file a ContextPackage predicts the executor needs.
// Reason is mandatory: an entry without a reason is exactly the over-broad
// inclusion failure mode this system exists to suppress.
type MustReadEntry struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Tier   Tier   `json:"tier"`
}

// Pattern is a project convention discovered by the extractors
type Pattern struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Architecture is a structural summary of the target project
type Architecture struct {
	EntryPoints []string `json:"entry_points,omitempty"`
	Layers      []string `json:"layers,omitempty"`
	ModulePath  string   `json:"module_path,omitempty"`
	KeyDeps     []string `json:"key_deps,omitempty"`
}

// ContextPackage is the bundled output of one preparation attempt.
// Packages are append-only artifacts: re-preparation creates a new package
// with a new ID so feedback can always be traced to the exact inputs an
// executor saw. A prior package is never mutated.
type ContextPackage struct {
	ID                 string            `json:"id"`
	TaskID             string            `json:"task_id"`
	MustRead           []MustReadEntry   `json:"must_read"`
	Patterns           []Pattern         `json:"patterns,omitempty"`
	Architecture       *Architecture     `json:"architecture,omitempty"`
	History            HistoricalContext `json:"history"`
	AcceptanceCriteria []string          `json:"acceptance_criteria"`
	QualityScore       *int              `json:"quality_score,omitempty"` // nil until scored
	CreatedAt          time.Time         `json:"created_at"`
}

// Validate enforces package invariants at assembly time
func (p *ContextPackage) Validate() error {
	if p.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	for i, entry := range p.MustRead {
		if entry.Path == "" {
			return fmt.Errorf("must_read[%d]: path is required", i)
		}
		if strings.TrimSpace(entry.Reason) == "" {
			return fmt.Errorf("must_read[%d] (%s): reason is required", i, entry.Path)
		}
		if !entry.Tier.IsValid() {
			return fmt.Errorf("must_read[%d] (%s): invalid tier %q", i, entry.Path, entry.Tier)
		}
	}
	if p.QualityScore != nil && (*p.QualityScore < 0 || *p.QualityScore > 100) {
		return fmt.Errorf("quality_score must be between 0 and 100 (got %d)", *p.QualityScore)
	}
	return nil
}

// PreviousAttempt is one prior execution surfaced from the archive
type PreviousAttempt struct {
	TaskDescription string   `json:"task_description"`
	Outcome         string   `json:"outcome"`
	Lesson          string   `json:"lesson,omitempty"`
	KeyFiles        []string `json:"key_files,omitempty"`
}

// RelatedDecision is a design decision recorded for the project
type RelatedDecision struct {
	Title     string `json:"title"`
	Rationale string `json:"rationale"`
}

// PatternObservation records how a convention fared on a past task
type PatternObservation struct {
	Pattern         string `json:"pattern"`
	ProjectPath     string `json:"project_path"`
	ObservedOutcome string `json:"observed_outcome"`
}

// CoModification records two files that historically change together
type CoModification struct {
	FileA             string `json:"file_a"`
	FileB             string `json:"file_b"`
	CoOccurrenceCount int    `json:"co_occurrence_count"`
}

// HistoricalContext is a read-only view over the archive at retrieval time.
// It is never persisted as its own record, only embedded in a ContextPackage.
// Any subset of fields may be empty: partial history degrades package
// richness, it does not fail preparation.
type HistoricalContext struct {
	PreviousAttempts       []PreviousAttempt    `json:"previous_attempts,omitempty"`
	RelatedDecisions       []RelatedDecision    `json:"related_decisions,omitempty"`
	PatternHistory         []PatternObservation `json:"pattern_history,omitempty"`
	CoModificationPatterns []CoModification     `json:"co_modification_patterns,omitempty"`
}

// IsEmpty reports whether retrieval found nothing at all
func (h HistoricalContext) IsEmpty() bool {
	return len(h.PreviousAttempts) == 0 &&
		len(h.RelatedDecisions) == 0 &&
		len(h.PatternHistory) == 0 &&
		len(h.CoModificationPatterns) == 0
}
