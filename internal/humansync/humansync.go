// Package humansync pauses the pipeline to ask a human a disambiguating
// question. The lifecycle is a small state machine:
//
//	idle → question_generated → awaiting_response → {answered | expired}
//
// Questions always enumerate concrete options derived from the ambiguity
// (candidate task types, remediation choices) rather than being
// open-ended. Expiry is terminal and distinct from cancellation: an
// expired request surfaces as a blocked task, never as a silent default
// that resumes the pipeline.
//
// Requests persist to the archive as append-only records. A state change
// appends a new record for the same request ID; readers take the newest.
// This lets `groundwork respond` resolve a question from a different
// process than the one that asked it.
package humansync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/types"
)

// DefaultAwaitTimeout bounds the in-process wait for a response
const DefaultAwaitTimeout = 10 * time.Minute

// pollInterval is how often Await re-reads the archive
const pollInterval = 2 * time.Second

// Manager runs the human sync lifecycle
type Manager struct {
	archive      archive.Archive
	logger       *zap.Logger
	awaitTimeout time.Duration
}

// Config holds manager configuration
type Config struct {
	Archive      archive.Archive
	Logger       *zap.Logger
	AwaitTimeout time.Duration // bounded wait (default: DefaultAwaitTimeout)
}

// NewManager creates a human sync manager
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil || cfg.Archive == nil {
		return nil, fmt.Errorf("archive is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.AwaitTimeout
	if timeout <= 0 {
		timeout = DefaultAwaitTimeout
	}
	return &Manager{archive: cfg.Archive, logger: logger, awaitTimeout: timeout}, nil
}

// OpenForLowConfidence generates a classification question. The options
// are the candidate task types the heuristic considered plausible.
func (m *Manager) OpenForLowConfidence(ctx context.Context, task *types.Task, candidates []types.TaskType) (*types.HumanSyncRequest, error) {
	options := make([]string, 0, len(candidates))
	for _, c := range candidates {
		options = append(options, string(c))
	}
	question := fmt.Sprintf(
		"The request %q could not be confidently classified (confidence %.2f). Which task type applies?",
		truncate(task.RawRequest, 120), task.Confidence)
	return m.open(ctx, task, question, options)
}

// OpenForGateBlocks generates a remediation question after the quality
// gate blocked the same task twice.
func (m *Manager) OpenForGateBlocks(ctx context.Context, task *types.Task, reasons []string) (*types.HumanSyncRequest, error) {
	question := fmt.Sprintf(
		"Preparation for task %s was blocked twice by the quality gate (%v). How should it proceed?",
		task.ID, reasons)
	options := []string{
		"narrow the request to specific files or modules",
		"supply acceptance criteria for the request",
		"reclassify the task and retry preparation",
		"abandon this preparation attempt",
	}
	return m.open(ctx, task, question, options)
}

// open creates and persists a request in the open state
func (m *Manager) open(ctx context.Context, task *types.Task, question string, options []string) (*types.HumanSyncRequest, error) {
	req := &types.HumanSyncRequest{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Question:  question,
		Options:   options,
		State:     types.SyncOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sync request: %w", err)
	}
	if err := m.persist(ctx, task.ProjectPath, req); err != nil {
		return nil, err
	}
	m.logger.Info("human sync question generated",
		zap.String("task_id", task.ID),
		zap.String("request_id", req.ID),
		zap.Int("options", len(options)))
	return req, nil
}

// Respond resolves an open request with one of its options. Terminal
// requests reject further transitions.
func (m *Manager) Respond(ctx context.Context, projectPath, requestID, response string) (*types.HumanSyncRequest, error) {
	req, err := m.Latest(ctx, projectPath, requestID)
	if err != nil {
		return nil, err
	}
	if req.State.IsTerminal() {
		return nil, fmt.Errorf("sync request %s is already %s", requestID, req.State)
	}
	valid := false
	for _, opt := range req.Options {
		if opt == response {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("response %q is not one of the offered options", response)
	}

	now := time.Now().UTC()
	req.State = types.SyncAnswered
	req.Response = response
	req.ResolvedAt = &now
	if err := m.persist(ctx, projectPath, req); err != nil {
		return nil, err
	}
	m.logger.Info("human sync request answered",
		zap.String("request_id", req.ID), zap.String("response", response))
	return req, nil
}

// Expire marks an open request expired. Expiry is terminal and must be
// distinguishable downstream from an answer or a cancellation.
func (m *Manager) Expire(ctx context.Context, projectPath, requestID string) (*types.HumanSyncRequest, error) {
	req, err := m.Latest(ctx, projectPath, requestID)
	if err != nil {
		return nil, err
	}
	if req.State.IsTerminal() {
		return nil, fmt.Errorf("sync request %s is already %s", requestID, req.State)
	}
	now := time.Now().UTC()
	req.State = types.SyncExpired
	req.ResolvedAt = &now
	if err := m.persist(ctx, projectPath, req); err != nil {
		return nil, err
	}
	m.logger.Warn("human sync request expired", zap.String("request_id", req.ID))
	return req, nil
}

// Await blocks until the request is answered, the bounded wait elapses, or
// the context is canceled. On timeout the request is expired and a
// HumanSyncExpiredError is returned; the caller surfaces the task as
// blocked.
func (m *Manager) Await(ctx context.Context, projectPath string, req *types.HumanSyncRequest) (*types.HumanSyncRequest, error) {
	deadline := time.NewTimer(m.awaitTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancellation is not expiry: leave the request open so a
			// later respond still works.
			return nil, ctx.Err()
		case <-deadline.C:
			if _, err := m.Expire(ctx, projectPath, req.ID); err != nil {
				m.logger.Warn("failed to persist sync expiry", zap.Error(err))
			}
			return nil, &types.HumanSyncExpiredError{TaskID: req.TaskID, RequestID: req.ID}
		case <-ticker.C:
			latest, err := m.Latest(ctx, projectPath, req.ID)
			if err != nil {
				continue // transient archive trouble; the deadline still bounds us
			}
			if latest.State == types.SyncAnswered {
				return latest, nil
			}
			if latest.State == types.SyncExpired {
				return nil, &types.HumanSyncExpiredError{TaskID: req.TaskID, RequestID: req.ID}
			}
		}
	}
}

// Latest returns the current state of a request by ID
func (m *Manager) Latest(ctx context.Context, projectPath, requestID string) (*types.HumanSyncRequest, error) {
	records, err := m.archive.Search(ctx, "", archive.Filter{
		ProjectPath: projectPath,
		Kind:        archive.KindHumanSync,
		Tag:         "sync:" + requestID,
		Limit:       1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sync request %s not found", requestID)
	}
	var req types.HumanSyncRequest
	if err := json.Unmarshal(records[0].Payload, &req); err != nil {
		return nil, fmt.Errorf("unreadable sync record %s: %w", records[0].ID, err)
	}
	return &req, nil
}

// Open returns open requests for the project, newest first
func (m *Manager) Open(ctx context.Context, projectPath string) ([]*types.HumanSyncRequest, error) {
	records, err := m.archive.Search(ctx, "", archive.Filter{
		ProjectPath: projectPath,
		Kind:        archive.KindHumanSync,
	})
	if err != nil {
		return nil, err
	}

	// Newest record per request ID wins; records arrive newest first.
	seen := make(map[string]bool)
	var open []*types.HumanSyncRequest
	for _, rec := range records {
		var req types.HumanSyncRequest
		if err := json.Unmarshal(rec.Payload, &req); err != nil {
			continue
		}
		if seen[req.ID] {
			continue
		}
		seen[req.ID] = true
		if req.State == types.SyncOpen {
			open = append(open, &req)
		}
	}
	return open, nil
}

// persist appends the request's current state to the archive
func (m *Manager) persist(ctx context.Context, projectPath string, req *types.HumanSyncRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal sync request: %w", err)
	}
	_, err = m.archive.Store(ctx, &archive.Record{
		Kind:        archive.KindHumanSync,
		Payload:     payload,
		Tags:        []string{"sync:" + req.ID, "task:" + req.TaskID},
		ProjectPath: projectPath,
	})
	if err != nil {
		return fmt.Errorf("failed to persist sync request: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
