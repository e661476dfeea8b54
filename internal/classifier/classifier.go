// Package classifier turns a raw development request into a typed Task.
// The keyword heuristic always runs and always succeeds; if an oracle is
// configured its judgment is adopted when reachable. Classification never
// blocks or fails because the oracle is down.
package classifier

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rgardiner/groundwork/internal/oracle"
	"github.com/rgardiner/groundwork/internal/types"
)

// Classifier classifies requests using heuristics with optional oracle
// augmentation
type Classifier struct {
	oracle oracle.Oracle // nil means heuristic-only
	logger *zap.Logger
}

// Config holds classifier configuration
type Config struct {
	Oracle oracle.Oracle // Optional: enables LLM-augmented classification
	Logger *zap.Logger
}

// New creates a classifier
func New(cfg *Config) *Classifier {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{oracle: cfg.Oracle, logger: logger}
}

// Classify produces a Task for a raw request. The returned task is
// heuristic-classified when there is no oracle or the oracle fails;
// adopting the oracle result marks the method llm.
func (c *Classifier) Classify(ctx context.Context, rawRequest, projectPath string) (*types.Task, error) {
	heuristicType, heuristicConfidence := HeuristicClassify(rawRequest)

	task := &types.Task{
		ID:                   uuid.NewString(),
		RawRequest:           rawRequest,
		TaskType:             heuristicType,
		Confidence:           heuristicConfidence,
		ClassificationMethod: types.MethodHeuristic,
		ProjectPath:          projectPath,
		CreatedAt:            time.Now().UTC(),
	}

	if c.oracle != nil {
		result, err := c.oracle.Classify(ctx, oracle.ClassifyRequest{
			RawRequest:          rawRequest,
			HeuristicType:       heuristicType,
			HeuristicConfidence: heuristicConfidence,
		})
		if err != nil {
			// Oracle failure is a normal outcome: keep the heuristic
			// result and note the degradation.
			c.logger.Warn("oracle classification unavailable, keeping heuristic result",
				zap.String("task_id", task.ID),
				zap.String("heuristic_type", string(heuristicType)),
				zap.Error(err))
		} else {
			task.TaskType = result.Type
			task.Confidence = result.Confidence
			task.ClassificationMethod = types.MethodLLM
		}
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	c.logger.Info("request classified",
		zap.String("task_id", task.ID),
		zap.String("type", string(task.TaskType)),
		zap.Float64("confidence", task.Confidence),
		zap.String("method", string(task.ClassificationMethod)))
	return task, nil
}

// Reclassify re-runs classification for an existing task, keeping its ID.
// The task's type, confidence, and method are replaced as a unit.
func (c *Classifier) Reclassify(ctx context.Context, task *types.Task) (*types.Task, error) {
	fresh, err := c.Classify(ctx, task.RawRequest, task.ProjectPath)
	if err != nil {
		return nil, err
	}
	fresh.ID = task.ID
	fresh.CreatedAt = task.CreatedAt
	return fresh, nil
}
