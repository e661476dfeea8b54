// Package learning retrieves historical context from the archive: what
// happened on similar tasks before, which decisions and conventions are on
// record for this project, and which files change together.
//
// Retrieval is strictly best-effort. The four sub-queries run concurrently
// and any subset may fail or come back empty; the result is a partial
// HistoricalContext, never an error. An unreachable archive degrades to
// empty history.
package learning

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/types"
)

// per-query result caps keep the context package bounded
const (
	maxPreviousAttempts = 5
	maxDecisions        = 5
	maxPatternHistory   = 10
	maxCoModifications  = 10
)

// Retriever queries the archive for historical context
type Retriever struct {
	archive archive.Archive
	logger  *zap.Logger
}

// New creates a retriever
func New(store archive.Archive, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{archive: store, logger: logger}
}

// Retrieve assembles historical context for a task. Every query is scoped
// to the task's project path; cross-project results are a correctness
// defect and the archive interface enforces the filter.
func (r *Retriever) Retrieve(ctx context.Context, task *types.Task) types.HistoricalContext {
	var history types.HistoricalContext

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		history.PreviousAttempts = r.previousAttempts(gctx, task)
		return nil
	})
	g.Go(func() error {
		history.RelatedDecisions = r.relatedDecisions(gctx, task)
		return nil
	})
	g.Go(func() error {
		history.PatternHistory = r.patternHistory(gctx, task)
		return nil
	})
	g.Go(func() error {
		history.CoModificationPatterns = r.coModifications(gctx, task)
		return nil
	})

	// Sub-queries swallow their own failures, so Wait only propagates
	// context cancellation, and partial history is still returned.
	_ = g.Wait()

	r.logger.Debug("historical context retrieved",
		zap.String("task_id", task.ID),
		zap.Int("previous_attempts", len(history.PreviousAttempts)),
		zap.Int("related_decisions", len(history.RelatedDecisions)),
		zap.Int("pattern_history", len(history.PatternHistory)),
		zap.Int("co_modifications", len(history.CoModificationPatterns)))
	return history
}

// previousAttempts searches feedback records for semantically similar
// requests and maps them to attempt summaries.
func (r *Retriever) previousAttempts(ctx context.Context, task *types.Task) []types.PreviousAttempt {
	records, err := r.archive.Search(ctx, task.RawRequest, archive.Filter{
		ProjectPath: task.ProjectPath,
		Kind:        archive.KindFeedback,
		Limit:       maxPreviousAttempts,
	})
	if err != nil {
		r.logger.Warn("previous-attempt query degraded to empty", zap.Error(err))
		return nil
	}

	var attempts []types.PreviousAttempt
	for _, rec := range records {
		var fb types.ExecutionFeedback
		if err := json.Unmarshal(rec.Payload, &fb); err != nil {
			r.logger.Warn("skipping unreadable feedback record",
				zap.String("record_id", rec.ID), zap.Error(err))
			continue
		}

		outcome := "failed"
		if fb.Outcome.Success {
			outcome = "succeeded"
		}
		lesson := ""
		for _, l := range fb.Learnings {
			if l.Type == types.LearningCorrection || l.Type == types.LearningWarning {
				lesson = l.Content
				break
			}
			if lesson == "" {
				lesson = l.Content
			}
		}

		attempts = append(attempts, types.PreviousAttempt{
			TaskDescription: descriptionFromTags(rec.Tags),
			Outcome:         outcome,
			Lesson:          lesson,
			KeyFiles:        fb.Outcome.FilesActuallyModified,
		})
	}
	return attempts
}

func (r *Retriever) relatedDecisions(ctx context.Context, task *types.Task) []types.RelatedDecision {
	records, err := r.archive.Search(ctx, "", archive.Filter{
		ProjectPath: task.ProjectPath,
		Kind:        archive.KindDecision,
		Limit:       maxDecisions,
	})
	if err != nil {
		r.logger.Warn("decision query degraded to empty", zap.Error(err))
		return nil
	}
	var decisions []types.RelatedDecision
	for _, rec := range records {
		var d types.RelatedDecision
		if err := json.Unmarshal(rec.Payload, &d); err != nil {
			continue
		}
		decisions = append(decisions, d)
	}
	return decisions
}

func (r *Retriever) patternHistory(ctx context.Context, task *types.Task) []types.PatternObservation {
	records, err := r.archive.Search(ctx, "", archive.Filter{
		ProjectPath: task.ProjectPath,
		Kind:        archive.KindPattern,
		Limit:       maxPatternHistory,
	})
	if err != nil {
		r.logger.Warn("pattern-history query degraded to empty", zap.Error(err))
		return nil
	}
	var observations []types.PatternObservation
	for _, rec := range records {
		var o types.PatternObservation
		if err := json.Unmarshal(rec.Payload, &o); err != nil {
			continue
		}
		// Defense in depth: the interface filter already scopes by
		// project, but a mis-tagged payload must not leak through either.
		if o.ProjectPath != "" && o.ProjectPath != task.ProjectPath {
			continue
		}
		observations = append(observations, o)
	}
	return observations
}

func (r *Retriever) coModifications(ctx context.Context, task *types.Task) []types.CoModification {
	records, err := r.archive.Search(ctx, "", archive.Filter{
		ProjectPath: task.ProjectPath,
		Kind:        archive.KindCoModification,
		Limit:       maxCoModifications,
	})
	if err != nil {
		r.logger.Warn("co-modification query degraded to empty", zap.Error(err))
		return nil
	}
	var comods []types.CoModification
	for _, rec := range records {
		var c types.CoModification
		if err := json.Unmarshal(rec.Payload, &c); err != nil {
			continue
		}
		comods = append(comods, c)
	}
	return comods
}

// descriptionFromTags recovers the original request text stored in the
// record tags under the "request:" prefix, if present.
func descriptionFromTags(tags []string) string {
	for _, t := range tags {
		if len(t) > 8 && t[:8] == "request:" {
			return t[8:]
		}
	}
	return ""
}
