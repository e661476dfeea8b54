// Package prepare sequences one preparation attempt: classify the
// request, fan out discovery, extraction, and learning retrieval, join
// the results into a ContextPackage, and gate it before release.
//
// One attempt, one accepted package. On a gate block the orchestrator
// re-runs discovery once with an adjusted strategy; if still blocked it
// raises a human sync question instead of looping. A blocked package is
// never emitted.
package prepare

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/classifier"
	"github.com/rgardiner/groundwork/internal/discovery"
	"github.com/rgardiner/groundwork/internal/extract"
	"github.com/rgardiner/groundwork/internal/gate"
	"github.com/rgardiner/groundwork/internal/humansync"
	"github.com/rgardiner/groundwork/internal/learning"
	"github.com/rgardiner/groundwork/internal/types"
)

// DefaultConfidenceFloor is the classification confidence below which a
// human is asked to disambiguate.
const DefaultConfidenceFloor = 0.5

// mustReadLimit bounds the package's file list across all tiers
const mustReadLimit = 15

// Result is the outcome of one preparation attempt
type Result struct {
	Task    *types.Task
	Package *types.ContextPackage // nil when the attempt is blocked
	Gate    gate.Result
	Sync    *types.HumanSyncRequest // non-nil when escalated to a human
	Phase   types.Phase             // last completed phase
}

// Orchestrator wires the pipeline components for preparation attempts
type Orchestrator struct {
	classifier *classifier.Classifier
	discoverer *discovery.Discoverer
	extractor  *extract.Extractor
	retriever  *learning.Retriever
	gate       *gate.Gate
	sync       *humansync.Manager
	archive    archive.Archive
	logger     *zap.Logger

	confidenceFloor float64
	waitForHuman    bool
}

// Config holds orchestrator configuration. All components are explicit
// dependencies so tests can substitute deterministic fakes.
type Config struct {
	Classifier *classifier.Classifier
	Discoverer *discovery.Discoverer
	Extractor  *extract.Extractor
	Retriever  *learning.Retriever
	Gate       *gate.Gate
	Sync       *humansync.Manager
	Archive    archive.Archive
	Logger     *zap.Logger

	ConfidenceFloor float64 // default: DefaultConfidenceFloor
	// WaitForHuman makes Prepare block (bounded) on an open sync question
	// instead of returning immediately with the question open.
	WaitForHuman bool
}

// New creates a preparation orchestrator
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	for name, missing := range map[string]bool{
		"classifier": cfg.Classifier == nil,
		"discoverer": cfg.Discoverer == nil,
		"extractor":  cfg.Extractor == nil,
		"retriever":  cfg.Retriever == nil,
		"gate":       cfg.Gate == nil,
		"sync":       cfg.Sync == nil,
		"archive":    cfg.Archive == nil,
	} {
		if missing {
			return nil, fmt.Errorf("%s is required", name)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	floor := cfg.ConfidenceFloor
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	return &Orchestrator{
		classifier:      cfg.Classifier,
		discoverer:      cfg.Discoverer,
		extractor:       cfg.Extractor,
		retriever:       cfg.Retriever,
		gate:            cfg.Gate,
		sync:            cfg.Sync,
		archive:         cfg.Archive,
		logger:          logger,
		confidenceFloor: floor,
		waitForHuman:    cfg.WaitForHuman,
	}, nil
}

// Prepare runs one preparation attempt for a raw request. Errors carry
// the task ID and the last completed phase so a retry can resume context.
func (o *Orchestrator) Prepare(ctx context.Context, rawRequest, projectPath string) (*Result, error) {
	result := &Result{Phase: types.PhaseIntake}

	// Classify. Never fails due to oracle unavailability.
	task, err := o.classifier.Classify(ctx, rawRequest, projectPath)
	if err != nil {
		return result, &types.PhaseError{TaskID: "", LastPhase: types.PhaseIntake, Err: err}
	}
	result.Task = task
	result.Phase = types.PhaseClassify
	o.persistTask(ctx, task)

	// Ambiguous classification goes to a human before any discovery work.
	if task.Confidence < o.confidenceFloor {
		return o.escalateLowConfidence(ctx, result, task)
	}

	return o.prepareClassified(ctx, result, task)
}

// prepareClassified runs the post-classification phases for a task
func (o *Orchestrator) prepareClassified(ctx context.Context, result *Result, task *types.Task) (*Result, error) {
	pkg, err := o.assemble(ctx, task, discovery.ModeNormal)
	if err != nil {
		return result, &types.PhaseError{TaskID: task.ID, LastPhase: result.Phase, Err: err}
	}
	result.Phase = types.PhasePrepare

	verdict := o.gate.Evaluate(ctx, task, pkg)
	if !verdict.Passed {
		// One bounded retry with an adjusted discovery strategy, then
		// escalation. Not a loop.
		mode := retryMode(verdict)
		o.logger.Info("quality gate blocked, re-running discovery once",
			zap.String("task_id", task.ID),
			zap.Int("score", verdict.Score),
			zap.Int("mode", int(mode)))

		pkg, err = o.assemble(ctx, task, mode)
		if err != nil {
			return result, &types.PhaseError{TaskID: task.ID, LastPhase: result.Phase, Err: err}
		}
		verdict = o.gate.Evaluate(ctx, task, pkg)
	}
	result.Phase = types.PhaseGate
	result.Gate = verdict

	if !verdict.Passed {
		return o.escalateGateBlocks(ctx, result, task, verdict)
	}

	// Emit: score the package, persist it, hand it out.
	score := verdict.Score
	pkg.QualityScore = &score
	if err := o.persistPackage(ctx, task, pkg); err != nil {
		return result, &types.PhaseError{TaskID: task.ID, LastPhase: types.PhaseGate, Err: err}
	}
	result.Package = pkg
	result.Phase = types.PhaseEmit

	o.logger.Info("context package emitted",
		zap.String("task_id", task.ID),
		zap.String("package_id", pkg.ID),
		zap.Int("quality_score", score),
		zap.Int("must_read", len(pkg.MustRead)))
	return result, nil
}

// assemble fans out discovery, extraction, and retrieval, then joins the
// results into a validated package. Extractor and retriever failures
// degrade the package; a discovery failure fails the attempt because a
// package without file predictions is not worth gating.
func (o *Orchestrator) assemble(ctx context.Context, task *types.Task, mode discovery.Mode) (*types.ContextPackage, error) {
	index, err := discovery.BuildIndex(ctx, task.ProjectPath, o.discoverer.ExcludePaths())
	if err != nil {
		return nil, fmt.Errorf("failed to index project: %w", err)
	}

	var (
		candidates []discovery.Candidate
		patterns   []types.Pattern
		arch       *types.Architecture
		history    types.HistoricalContext
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var dErr error
		candidates, dErr = o.discoverer.Discover(gctx, task, index, mode)
		return dErr
	})
	g.Go(func() error {
		var pErr error
		patterns, pErr = o.extractor.Patterns(gctx, index)
		if pErr != nil {
			o.logger.Warn("pattern extraction degraded", zap.Error(pErr))
			patterns = nil
		}
		return nil
	})
	g.Go(func() error {
		var aErr error
		arch, aErr = o.extractor.Architecture(gctx, index)
		if aErr != nil {
			o.logger.Warn("architecture extraction degraded", zap.Error(aErr))
			arch = nil
		}
		return nil
	})
	g.Go(func() error {
		history = o.retriever.Retrieve(gctx, task)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}

	pkg := &types.ContextPackage{
		ID:                 uuid.NewString(),
		TaskID:             task.ID,
		MustRead:           mustReadFromCandidates(candidates),
		Patterns:           patterns,
		Architecture:       arch,
		History:            history,
		AcceptanceCriteria: acceptanceCriteria(task),
		CreatedAt:          time.Now().UTC(),
	}
	if err := pkg.Validate(); err != nil {
		return nil, fmt.Errorf("package failed assembly validation: %w", err)
	}
	return pkg, nil
}

// escalateLowConfidence opens a sync question offering candidate types
func (o *Orchestrator) escalateLowConfidence(ctx context.Context, result *Result, task *types.Task) (*Result, error) {
	candidates := classifier.TopCandidates(task.RawRequest, 3)
	req, err := o.sync.OpenForLowConfidence(ctx, task, candidates)
	if err != nil {
		return result, &types.PhaseError{TaskID: task.ID, LastPhase: types.PhaseClassify, Err: err}
	}
	result.Sync = req
	result.Phase = types.PhaseSync

	if !o.waitForHuman {
		return result, nil
	}

	answered, err := o.sync.Await(ctx, task.ProjectPath, req)
	if err != nil {
		return result, &types.PhaseError{TaskID: task.ID, LastPhase: types.PhaseSync, Err: err}
	}
	// The human's answer is authoritative: adopt the chosen type at full
	// floor confidence and continue the attempt.
	task.TaskType = types.TaskType(answered.Response)
	task.Confidence = o.confidenceFloor
	o.persistTask(ctx, task)
	return o.prepareClassified(ctx, result, task)
}

// escalateGateBlocks opens a remediation question after the second block
func (o *Orchestrator) escalateGateBlocks(ctx context.Context, result *Result, task *types.Task, verdict gate.Result) (*Result, error) {
	req, err := o.sync.OpenForGateBlocks(ctx, task, verdict.Reasons)
	if err != nil {
		return result, &types.PhaseError{TaskID: task.ID, LastPhase: types.PhaseGate, Err: err}
	}
	result.Sync = req
	result.Phase = types.PhaseSync
	return result, &types.PhaseError{
		TaskID:    task.ID,
		LastPhase: types.PhaseSync,
		Err:       &types.QualityBlockedError{TaskID: task.ID, Score: verdict.Score, Reasons: verdict.Reasons},
	}
}

// retryMode picks how to adjust discovery after a block: widen when the
// package was too thin, tighten when relevance dragged the score down.
func retryMode(verdict gate.Result) discovery.Mode {
	for _, reason := range verdict.Reasons {
		if reason == "no must-read files discovered" {
			return discovery.ModeWiden
		}
	}
	return discovery.ModeTighten
}

// mustReadFromCandidates orders candidates into the bounded must-read
// list. Low-tier entries are excluded: they are exactly the marginal
// matches that bloat packages.
func mustReadFromCandidates(candidates []discovery.Candidate) []types.MustReadEntry {
	entries := make([]types.MustReadEntry, 0, len(candidates))
	for _, c := range candidates {
		if c.Tier == types.TierLow {
			continue
		}
		entries = append(entries, types.MustReadEntry{
			Path:   c.Path,
			Reason: c.Reason,
			Tier:   c.Tier,
		})
		if len(entries) == mustReadLimit {
			break
		}
	}
	return entries
}

// acceptanceCriteria generates task-type-appropriate criteria
func acceptanceCriteria(task *types.Task) []string {
	switch task.TaskType {
	case types.TaskCode:
		return []string{
			"the requested behavior is implemented and the project compiles",
			"existing tests pass without modification",
		}
	case types.TaskTesting:
		return []string{
			"new tests cover the behavior named in the request",
			"the full test suite passes",
		}
	case types.TaskConfiguration:
		return []string{
			"configuration loads without errors",
			"the build and deploy pipeline accepts the new settings",
		}
	case types.TaskDocumentation:
		return []string{
			"documentation accurately describes current behavior",
			"the README and related docs render without broken references",
		}
	default:
		return []string{
			"the request is completed as written and verified by a human",
		}
	}
}

// persistTask best-effort records the classified task for status reporting
func (o *Orchestrator) persistTask(ctx context.Context, task *types.Task) {
	payload, err := json.Marshal(task)
	if err != nil {
		o.logger.Warn("failed to marshal task", zap.Error(err))
		return
	}
	if _, err := o.archive.Store(ctx, &archive.Record{
		Kind:        archive.KindTask,
		Payload:     payload,
		Tags:        []string{"task:" + task.ID, "request:" + task.RawRequest},
		ProjectPath: task.ProjectPath,
	}); err != nil {
		o.logger.Warn("failed to persist task record", zap.Error(err))
	}
}

// persistPackage records the emitted package. Unlike the task record this
// write is required: feedback must always be traceable to the exact
// package an executor saw.
func (o *Orchestrator) persistPackage(ctx context.Context, task *types.Task, pkg *types.ContextPackage) error {
	payload, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("failed to marshal package: %w", err)
	}
	if _, err := o.archive.Store(ctx, &archive.Record{
		ID:          pkg.ID,
		Kind:        archive.KindContextPackage,
		Payload:     payload,
		Tags:        []string{"task:" + task.ID, "package:" + pkg.ID},
		ProjectPath: task.ProjectPath,
	}); err != nil {
		return fmt.Errorf("failed to persist context package: %w", err)
	}
	return nil
}
