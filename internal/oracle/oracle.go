// Package oracle wraps the external LLM judgment service used for task
// classification and quality scoring. The oracle is strictly optional:
// every caller has a local, always-available fallback, and oracle failure
// or timeout is a normal, handled outcome rather than a task failure.
package oracle

import (
	"context"

	"github.com/rgardiner/groundwork/internal/types"
)

// ClassifyRequest carries the raw request and the heuristic candidate as a
// prior for the oracle to confirm or override.
type ClassifyRequest struct {
	RawRequest          string
	HeuristicType       types.TaskType
	HeuristicConfidence float64
}

// Classification is the oracle's verdict on a request's task type
type Classification struct {
	Type       types.TaskType
	Confidence float64
}

// QualityRequest asks the oracle to judge an assembled context package
type QualityRequest struct {
	RawRequest         string
	TaskType           types.TaskType
	MustReadPaths      []string
	AcceptanceCriteria []string
	EvaluationCriteria string
}

// QualityJudgment is the oracle's score for a context package
type QualityJudgment struct {
	Score     int // 0-100
	Rationale string
}

// Oracle is the stateless classifier/scorer interface. Implementations
// must return an error wrapping types.ErrOracleUnavailable on any
// transport-level failure so callers can take the documented degraded
// path with errors.Is.
type Oracle interface {
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)
	ScoreQuality(ctx context.Context, req QualityRequest) (*QualityJudgment, error)
}
