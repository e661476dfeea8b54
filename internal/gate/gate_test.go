package gate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rgardiner/groundwork/internal/oracle"
	"github.com/rgardiner/groundwork/internal/types"
)

type fakeOracle struct {
	judgment *oracle.QualityJudgment
	err      error
}

func (f *fakeOracle) Classify(_ context.Context, _ oracle.ClassifyRequest) (*oracle.Classification, error) {
	return nil, fmt.Errorf("classify: %w", types.ErrOracleUnavailable)
}

func (f *fakeOracle) ScoreQuality(_ context.Context, _ oracle.QualityRequest) (*oracle.QualityJudgment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.judgment, nil
}

func gateTask() *types.Task {
	return &types.Task{
		ID:          "task-1",
		RawRequest:  "add a README",
		TaskType:    types.TaskDocumentation,
		ProjectPath: "/p",
		CreatedAt:   time.Now(),
	}
}

func richPackage() *types.ContextPackage {
	return &types.ContextPackage{
		ID:     "pkg-1",
		TaskID: "task-1",
		MustRead: []types.MustReadEntry{
			{Path: "README.md", Reason: "matches documentation pattern README*", Tier: types.TierHigh},
			{Path: "docs/guide.md", Reason: "matches documentation pattern docs/", Tier: types.TierHigh},
		},
		Patterns: []types.Pattern{
			{Name: "markdown documentation", Description: "3 markdown files document the project"},
		},
		AcceptanceCriteria: []string{
			"the README describes what the project does",
			"documentation builds without warnings",
		},
		CreatedAt: time.Now(),
	}
}

func TestEvaluateRichPackagePasses(t *testing.T) {
	g := New(nil)
	result := g.Evaluate(context.Background(), gateTask(), richPackage())

	if !result.Passed {
		t.Fatalf("Expected pass, got score %d with reasons %v", result.Score, result.Reasons)
	}
	if result.Score < DefaultThreshold {
		t.Errorf("Expected score >= %d, got %d", DefaultThreshold, result.Score)
	}
	if result.Reasons != nil {
		t.Errorf("Expected no reasons on a passing package, got %v", result.Reasons)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	g := New(nil)
	task := gateTask()
	pkg := richPackage()

	first := g.Evaluate(context.Background(), task, pkg)
	for i := 0; i < 20; i++ {
		again := g.Evaluate(context.Background(), task, pkg)
		if again.Score != first.Score || again.Passed != first.Passed {
			t.Fatalf("Run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestEvaluateEmptyPackageBlocksWithReasons(t *testing.T) {
	g := New(nil)
	pkg := &types.ContextPackage{ID: "pkg-1", TaskID: "task-1"}

	result := g.Evaluate(context.Background(), gateTask(), pkg)
	if result.Passed {
		t.Fatal("Expected an empty package to block")
	}
	if len(result.Reasons) == 0 {
		t.Fatal("Expected block reasons")
	}
	found := false
	for _, r := range result.Reasons {
		if r == "no must-read files discovered" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected missing must-read reason, got %v", result.Reasons)
	}
}

func TestEvaluateGenericReasonsLowerRelevance(t *testing.T) {
	g := New(nil)
	pkg := richPackage()
	pkg.MustRead = []types.MustReadEntry{
		{Path: "README.md", Reason: "looked important", Tier: types.TierHigh},
		{Path: "docs/guide.md", Reason: "matches documentation pattern docs/", Tier: types.TierHigh},
	}

	full := g.Evaluate(context.Background(), gateTask(), richPackage())
	degraded := g.Evaluate(context.Background(), gateTask(), pkg)
	if degraded.Score >= full.Score {
		t.Errorf("Expected generic reasons to lower the score: %d vs %d", degraded.Score, full.Score)
	}
}

func TestEvaluateOracleBlended(t *testing.T) {
	deterministic := New(nil).Evaluate(context.Background(), gateTask(), richPackage())

	g := New(&Config{Oracle: &fakeOracle{judgment: &oracle.QualityJudgment{Score: 0, Rationale: "files are off-topic"}}})
	blended := g.Evaluate(context.Background(), gateTask(), richPackage())

	want := deterministic.Score / 2
	if blended.Score != want {
		t.Errorf("Expected blended score %d, got %d", want, blended.Score)
	}
	if blended.Passed {
		t.Error("Expected a zero oracle judgment to block")
	}
	found := false
	for _, r := range blended.Reasons {
		if r == "oracle: files are off-topic" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected oracle rationale in reasons, got %v", blended.Reasons)
	}
}

func TestEvaluateOracleFailureFallsBack(t *testing.T) {
	deterministic := New(nil).Evaluate(context.Background(), gateTask(), richPackage())

	g := New(&Config{Oracle: &fakeOracle{err: fmt.Errorf("down: %w", types.ErrOracleUnavailable)}})
	result := g.Evaluate(context.Background(), gateTask(), richPackage())

	if result.Score != deterministic.Score || result.Passed != deterministic.Passed {
		t.Errorf("Expected deterministic fallback %+v, got %+v", deterministic, result)
	}
}

func TestCriteriaFitTaskType(t *testing.T) {
	if !criteriaFitTaskType([]string{"all tests pass"}, types.TaskTesting) {
		t.Error("Expected testing vocabulary to fit testing tasks")
	}
	if criteriaFitTaskType([]string{"the sky is blue"}, types.TaskCode) {
		t.Error("Expected unrelated criteria not to fit")
	}
}

func TestCustomThreshold(t *testing.T) {
	g := New(&Config{Threshold: 101})
	result := g.Evaluate(context.Background(), gateTask(), richPackage())
	if result.Passed {
		t.Error("Expected an unreachable threshold to block everything")
	}
}
