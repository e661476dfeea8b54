// Package insight aggregates the feedback corpus into actionable
// recommendations and failure-mode statistics. Insights are reports, not
// facts: they are recomputed on demand, never persisted as ground truth,
// and nothing here applies a remediation automatically — self-modification
// from aggregate statistics compounds errors without review.
package insight

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/types"
)

// corpusLimit bounds how much feedback one aggregation reads
const corpusLimit = 500

// thresholds for emitting recommendations
const (
	lowSuccessRate      = 0.5
	highUnnecessaryRate = 0.3
	highMissedRate      = 0.3
)

// Stats summarizes the feedback corpus
type Stats struct {
	TotalFeedback       int            `json:"total_feedback"`
	SuccessRate         float64        `json:"success_rate"`
	MeanUnnecessaryRate float64        `json:"mean_unnecessary_rate"`
	MeanMissedRate      float64        `json:"mean_missed_rate"`
	FailureHistogram    map[string]int `json:"failure_histogram"`
}

// Failure categories. The histogram is a closed set populated by explicit
// checks on the outcome, so every failure has a named bucket by
// construction.
const (
	failureCompilation = "compilation_failed"
	failureExecution   = "execution_failed"
)

// Generator aggregates feedback into insights
type Generator struct {
	archive archive.Archive
	logger  *zap.Logger
}

// New creates an insight generator
func New(store archive.Archive, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{archive: store, logger: logger}
}

// Generate reads the project's feedback corpus and derives insights
func (g *Generator) Generate(ctx context.Context, projectPath string) ([]types.Insight, *Stats, error) {
	records, err := g.archive.Search(ctx, "", archive.Filter{
		ProjectPath: projectPath,
		Kind:        archive.KindFeedback,
		Limit:       corpusLimit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read feedback corpus: %w", err)
	}

	stats := &Stats{FailureHistogram: make(map[string]int)}
	var successes int
	var unnecessarySum, missedSum float64
	var rated int

	for _, rec := range records {
		var fb types.ExecutionFeedback
		if err := json.Unmarshal(rec.Payload, &fb); err != nil {
			g.logger.Warn("skipping unreadable feedback record",
				zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}
		stats.TotalFeedback++

		if fb.Outcome.Success {
			successes++
		} else if !fb.Outcome.CompilationPassed {
			stats.FailureHistogram[failureCompilation]++
		} else {
			stats.FailureHistogram[failureExecution]++
		}

		if predicted := len(fb.Accuracy.MustRead.Predicted); predicted > 0 {
			unnecessarySum += float64(len(fb.Accuracy.MustRead.Unnecessary)) / float64(predicted)
			rated++
		}
		if actual := len(fb.Accuracy.MustRead.Actual); actual > 0 {
			missedSum += float64(len(fb.Accuracy.MustRead.Missed)) / float64(actual)
		}
	}

	if stats.TotalFeedback == 0 {
		return nil, stats, nil
	}
	stats.SuccessRate = float64(successes) / float64(stats.TotalFeedback)
	if rated > 0 {
		stats.MeanUnnecessaryRate = unnecessarySum / float64(rated)
	}
	stats.MeanMissedRate = missedSum / float64(stats.TotalFeedback)

	var insights []types.Insight
	if stats.SuccessRate < lowSuccessRate {
		insights = append(insights, types.Insight{
			Recommendation: "fewer than half of executions succeed; review blocked-task reasons and consider raising the quality gate threshold",
			SupportingMetric: types.Metric{
				Name:  "success_rate",
				Value: stats.SuccessRate,
			},
			Category: types.InsightCategoryReliability,
		})
	}
	if stats.MeanUnnecessaryRate > highUnnecessaryRate {
		insights = append(insights, types.Insight{
			Recommendation: "must-read predictions include many files executors never touch; raise the discovery minimum relevance threshold",
			SupportingMetric: types.Metric{
				Name:  "mean_unnecessary_rate",
				Value: stats.MeanUnnecessaryRate,
			},
			Category: types.InsightCategoryAccuracy,
		})
	}
	if stats.MeanMissedRate > highMissedRate {
		insights = append(insights, types.Insight{
			Recommendation: "executors frequently touch files discovery missed; widen discovery patterns or lower the relevance threshold",
			SupportingMetric: types.Metric{
				Name:  "mean_missed_rate",
				Value: stats.MeanMissedRate,
			},
			Category: types.InsightCategoryAccuracy,
		})
	}
	if compilationFailures := stats.FailureHistogram[failureCompilation]; compilationFailures > 0 &&
		float64(compilationFailures)/float64(stats.TotalFeedback) > 0.2 {
		insights = append(insights, types.Insight{
			Recommendation: "compilation failures dominate the failure histogram; add build-affecting files to acceptance criteria checks",
			SupportingMetric: types.Metric{
				Name:  "compilation_failure_count",
				Value: float64(compilationFailures),
			},
			Category: types.InsightCategoryProcess,
		})
	}

	g.logger.Info("insights generated",
		zap.String("project", projectPath),
		zap.Int("corpus", stats.TotalFeedback),
		zap.Int("insights", len(insights)))
	return insights, stats, nil
}
