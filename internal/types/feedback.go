package types

import (
	"fmt"
	"strings"
	"time"
)

// ExecutionReport is the sole output contract of the external executor.
// It arrives as JSON and is validated by the feedback recorder before
// anything is written to the archive.
type ExecutionReport struct {
	TaskID            string     `json:"task_id"`
	ContextPackageID  string     `json:"context_package_id"`
	FilesRead         []string   `json:"files_read"`
	FilesModified     []string   `json:"files_modified"`
	Success           bool       `json:"success"`
	CompilationPassed bool       `json:"compilation_passed"`
	Notes             string     `json:"notes,omitempty"`
	Learnings         []Learning `json:"learnings,omitempty"`
}

// Outcome captures what actually happened during execution
type Outcome struct {
	Success               bool     `json:"success"`
	FilesActuallyModified []string `json:"files_actually_modified"`
	FilesActuallyRead     []string `json:"files_actually_read"`
	CompilationPassed     bool     `json:"compilation_passed"`
}

// MustReadAccuracy compares the predicted mustRead set against the files
// actually touched. Missed and Unnecessary are disjoint by construction:
// together they partition the symmetric difference of predicted vs actual.
type MustReadAccuracy struct {
	Predicted   []string `json:"predicted"`
	Actual      []string `json:"actual"`
	Missed      []string `json:"missed"`
	Unnecessary []string `json:"unnecessary"`
}

// Accuracy wraps the per-dimension accuracy deltas
type Accuracy struct {
	MustRead MustReadAccuracy `json:"must_read_accuracy"`
}

// LearningType categorizes a free-text learning from the executor
type LearningType string

const (
	LearningInsight    LearningType = "insight"
	LearningCorrection LearningType = "correction"
	LearningPattern    LearningType = "pattern"
	LearningWarning    LearningType = "warning"
)

// IsValid checks if the learning type value is valid
func (l LearningType) IsValid() bool {
	switch l {
	case LearningInsight, LearningCorrection, LearningPattern, LearningWarning:
		return true
	}
	return false
}

// Learning is one piece of free-text knowledge reported by the executor
type Learning struct {
	Type    LearningType `json:"type"`
	Content string       `json:"content"`
	Tags    []string     `json:"tags,omitempty"`
}

// ExecutionFeedback joins a ContextPackage to its real-world outcome.
// Created once per execution and immutable afterwards; this record is the
// sole mechanism by which the system improves over time.
type ExecutionFeedback struct {
	TaskID           string     `json:"task_id"`
	ContextPackageID string     `json:"context_package_id"`
	TaskType         TaskType   `json:"task_type"`
	Outcome          Outcome    `json:"outcome"`
	Accuracy         Accuracy   `json:"accuracy"`
	Learnings        []Learning `json:"learnings,omitempty"`
	RecordedAt       time.Time  `json:"recorded_at"`
}

// Validate checks feedback invariants before the archive write
func (f *ExecutionFeedback) Validate() error {
	if f.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if f.ContextPackageID == "" {
		return fmt.Errorf("context_package_id is required")
	}
	seen := make(map[string]bool, len(f.Accuracy.MustRead.Missed))
	for _, path := range f.Accuracy.MustRead.Missed {
		seen[path] = true
	}
	for _, path := range f.Accuracy.MustRead.Unnecessary {
		if seen[path] {
			return fmt.Errorf("file %q appears in both missed and unnecessary", path)
		}
	}
	for i, l := range f.Learnings {
		if !l.Type.IsValid() {
			return fmt.Errorf("learnings[%d]: invalid type %q", i, l.Type)
		}
		if strings.TrimSpace(l.Content) == "" {
			return fmt.Errorf("learnings[%d]: content is required", i)
		}
	}
	return nil
}

// InsightCategory buckets insight recommendations
type InsightCategory string

const (
	InsightCategoryAccuracy    InsightCategory = "accuracy"
	InsightCategoryReliability InsightCategory = "reliability"
	InsightCategoryProcess     InsightCategory = "process"
)

// Insight is a derived recommendation over the feedback corpus. It is a
// report, not a fact: recomputed on demand and never persisted as ground
// truth.
type Insight struct {
	Recommendation   string          `json:"recommendation"`
	SupportingMetric Metric          `json:"supporting_metric"`
	Category         InsightCategory `json:"category"`
}

// Metric is a named value backing an insight
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}
