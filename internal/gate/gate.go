// Package gate scores an assembled context package and decides whether it
// may be handed to execution. The gate is hard: a blocked package is never
// emitted. Scoring is deterministic by default; an optional oracle
// judgment refines the score but any oracle failure falls back to the
// deterministic rules.
package gate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rgardiner/groundwork/internal/oracle"
	"github.com/rgardiner/groundwork/internal/types"
)

// DefaultThreshold is the pass/block cutoff when none is configured
const DefaultThreshold = 70

// Fixed component weights. They must sum to 100.
const (
	weightCompleteness  = 40
	weightRelevance     = 35
	weightActionability = 25
)

// Result is the gate's verdict on one package
type Result struct {
	Score   int
	Passed  bool
	Reasons []string // populated with deficiencies when blocked
}

// Gate scores context packages
type Gate struct {
	threshold int
	oracle    oracle.Oracle // nil means deterministic-only
	logger    *zap.Logger
}

// Config holds gate configuration
type Config struct {
	Threshold int           // pass/block cutoff (default: DefaultThreshold)
	Oracle    oracle.Oracle // Optional: blends an LLM judgment into the score
	Logger    *zap.Logger
}

// New creates a quality gate
func New(cfg *Config) *Gate {
	if cfg == nil {
		cfg = &Config{}
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{threshold: threshold, oracle: cfg.Oracle, logger: logger}
}

// Evaluate scores the package and returns the verdict. The deterministic
// score is always computed; when an oracle is configured and reachable its
// judgment is averaged in, and on oracle failure the deterministic score
// stands unchanged.
func (g *Gate) Evaluate(ctx context.Context, task *types.Task, pkg *types.ContextPackage) Result {
	score, reasons := g.deterministicScore(task, pkg)

	if g.oracle != nil {
		judgment, err := g.oracle.ScoreQuality(ctx, oracle.QualityRequest{
			RawRequest:         task.RawRequest,
			TaskType:           task.TaskType,
			MustReadPaths:      mustReadPaths(pkg),
			AcceptanceCriteria: pkg.AcceptanceCriteria,
		})
		if err != nil {
			g.logger.Warn("oracle quality judgment unavailable, using deterministic score",
				zap.String("package_id", pkg.ID), zap.Error(err))
		} else {
			score = (score + judgment.Score) / 2
			if judgment.Score < g.threshold && judgment.Rationale != "" {
				reasons = append(reasons, "oracle: "+judgment.Rationale)
			}
		}
	}

	passed := score >= g.threshold
	if passed {
		reasons = nil
	}

	g.logger.Info("quality gate evaluated",
		zap.String("package_id", pkg.ID),
		zap.Int("score", score),
		zap.Int("threshold", g.threshold),
		zap.Bool("passed", passed))
	return Result{Score: score, Passed: passed, Reasons: reasons}
}

// deterministicScore applies the fixed-weight rules. Same package in,
// same score out.
func (g *Gate) deterministicScore(task *types.Task, pkg *types.ContextPackage) (int, []string) {
	var reasons []string

	// Completeness: are the mandatory sections non-empty
	completeness := 0
	if len(pkg.MustRead) > 0 {
		completeness += 15
	} else {
		reasons = append(reasons, "no must-read files discovered")
	}
	if len(pkg.AcceptanceCriteria) > 0 {
		completeness += 15
	} else {
		reasons = append(reasons, "no acceptance criteria")
	}
	if len(pkg.Patterns) > 0 || (pkg.Architecture != nil && len(pkg.Architecture.Layers)+len(pkg.Architecture.EntryPoints) > 0) {
		completeness += 10
	} else {
		reasons = append(reasons, "no patterns or architecture detail")
	}

	// Relevance: proportion of must-read entries whose reason is tied to
	// the task type rather than generic
	relevance := 0
	if len(pkg.MustRead) > 0 {
		tied := 0
		for _, entry := range pkg.MustRead {
			if reasonTiedToTask(entry.Reason, task.TaskType) {
				tied++
			}
		}
		relevance = weightRelevance * tied / len(pkg.MustRead)
		if tied < len(pkg.MustRead) {
			reasons = append(reasons, fmt.Sprintf("%d of %d must-read reasons not tied to the %s task",
				len(pkg.MustRead)-tied, len(pkg.MustRead), task.TaskType))
		}
	} else {
		reasons = append(reasons, "relevance unassessable without must-read entries")
	}

	// Actionability: criteria present and task-type-appropriate
	actionability := 0
	if len(pkg.AcceptanceCriteria) > 0 {
		actionability += 15
		if criteriaFitTaskType(pkg.AcceptanceCriteria, task.TaskType) {
			actionability += 10
		} else {
			reasons = append(reasons, fmt.Sprintf("acceptance criteria do not address %s work", task.TaskType))
		}
	}

	return completeness + relevance + actionability, reasons
}

// reasonTiedToTask reports whether a must-read reason references the task
// type's strategy or concrete request keywords, as opposed to being
// boilerplate.
func reasonTiedToTask(reason string, taskType types.TaskType) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, string(taskType)) || strings.Contains(lower, "keyword")
}

// taskTypeMarkers name the vocabulary acceptance criteria should use per
// task type.
var taskTypeMarkers = map[types.TaskType][]string{
	types.TaskDocumentation: {"document", "readme", "docs", "describe", "explain"},
	types.TaskTesting:       {"test", "coverage", "pass", "assert"},
	types.TaskConfiguration: {"config", "environment", "deploy", "build", "setting"},
	types.TaskCode:          {"compile", "implement", "function", "behavior", "build", "pass"},
	types.TaskUnknown:       {"complete", "verify"},
}

func criteriaFitTaskType(criteria []string, taskType types.TaskType) bool {
	markers := taskTypeMarkers[taskType]
	for _, criterion := range criteria {
		lower := strings.ToLower(criterion)
		for _, m := range markers {
			if strings.Contains(lower, m) {
				return true
			}
		}
	}
	return false
}

func mustReadPaths(pkg *types.ContextPackage) []string {
	paths := make([]string, len(pkg.MustRead))
	for i, e := range pkg.MustRead {
		paths[i] = e.Path
	}
	return paths
}
