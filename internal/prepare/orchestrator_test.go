package prepare

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/classifier"
	"github.com/rgardiner/groundwork/internal/discovery"
	"github.com/rgardiner/groundwork/internal/extract"
	"github.com/rgardiner/groundwork/internal/gate"
	"github.com/rgardiner/groundwork/internal/humansync"
	"github.com/rgardiner/groundwork/internal/learning"
	"github.com/rgardiner/groundwork/internal/types"
)

// newTestOrchestrator wires the full pipeline with an in-memory archive
// and no oracle.
func newTestOrchestrator(t *testing.T) (*Orchestrator, *archive.SQLiteArchive) {
	t.Helper()
	store, err := archive.Open(&archive.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sync, err := humansync.NewManager(&humansync.Config{Archive: store})
	if err != nil {
		t.Fatalf("Failed to create sync manager: %v", err)
	}

	o, err := New(&Config{
		Classifier: classifier.New(nil),
		Discoverer: discovery.New(nil, nil),
		Extractor:  extract.New(nil),
		Retriever:  learning.New(store, nil),
		Gate:       gate.New(nil),
		Sync:       sync,
		Archive:    store,
	})
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}
	return o, store
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", rel, err)
	}
}

// seedProject lays out a small Go project with prose, source, and config.
func seedProject(t *testing.T) string {
	root := t.TempDir()
	writeProjectFile(t, root, "go.mod", "module example.com/demo\n\ngo 1.22\n")
	writeProjectFile(t, root, "cmd/demo/main.go", "package main\n\nfunc main() {}\n")
	writeProjectFile(t, root, "internal/server/server.go", "package server\n")
	writeProjectFile(t, root, "internal/server/server_test.go", "package server\n")
	writeProjectFile(t, root, "docs/overview.md", "# Overview\n")
	writeProjectFile(t, root, "CONTRIBUTING.md", "# Contributing\n")
	return root
}

func TestPrepareReadmeRequestEmitsWithoutSync(t *testing.T) {
	o, store := newTestOrchestrator(t)
	root := seedProject(t)

	result, err := o.Prepare(context.Background(), "add a README", root)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if result.Task.TaskType != types.TaskDocumentation {
		t.Errorf("Expected documentation task, got %s", result.Task.TaskType)
	}
	if result.Task.ClassificationMethod != types.MethodHeuristic {
		t.Errorf("Expected heuristic method, got %s", result.Task.ClassificationMethod)
	}
	if result.Sync != nil {
		t.Errorf("Expected no human sync, got %+v", result.Sync)
	}
	if result.Phase != types.PhaseEmit {
		t.Errorf("Expected emit phase, got %s", result.Phase)
	}

	pkg := result.Package
	if pkg == nil {
		t.Fatal("Expected an emitted package")
	}
	if pkg.QualityScore == nil || *pkg.QualityScore < gate.DefaultThreshold {
		t.Fatalf("Expected quality score >= %d, got %v", gate.DefaultThreshold, pkg.QualityScore)
	}
	if len(pkg.MustRead) == 0 {
		t.Fatal("Expected must-read entries")
	}
	for _, entry := range pkg.MustRead {
		if entry.Reason == "" {
			t.Errorf("Entry %s has no reason", entry.Path)
		}
		if entry.Tier == types.TierHigh && filepath.Ext(entry.Path) != ".md" {
			t.Errorf("Expected only prose files in high tier, got %s", entry.Path)
		}
	}
	if !pkg.History.IsEmpty() {
		t.Errorf("Expected empty history for a fresh project, got %+v", pkg.History)
	}
	if len(pkg.AcceptanceCriteria) == 0 {
		t.Error("Expected acceptance criteria")
	}

	// The emitted package must be retrievable for later feedback joins.
	rec, err := store.Get(context.Background(), pkg.ID)
	if err != nil {
		t.Fatalf("Expected persisted package record: %v", err)
	}
	if rec.Kind != archive.KindContextPackage {
		t.Errorf("Expected context_package record, got %s", rec.Kind)
	}
}

func TestPrepareLowConfidenceOpensSync(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	root := seedProject(t)

	result, err := o.Prepare(context.Background(), "hmm maybe improve things somehow", root)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	if result.Package != nil {
		t.Error("Expected no package for an ambiguous request")
	}
	if result.Sync == nil {
		t.Fatal("Expected a human sync request")
	}
	if result.Sync.State != types.SyncOpen {
		t.Errorf("Expected open sync request, got %s", result.Sync.State)
	}
	if len(result.Sync.Options) < 2 {
		t.Errorf("Expected at least 2 concrete options, got %v", result.Sync.Options)
	}
	if result.Phase != types.PhaseSync {
		t.Errorf("Expected human_sync phase, got %s", result.Phase)
	}
}

func TestPrepareEmptyProjectBlocksWithEscalation(t *testing.T) {
	o, store := newTestOrchestrator(t)
	root := t.TempDir() // nothing to discover

	result, err := o.Prepare(context.Background(), "fix the crash in the parser", root)
	if err == nil {
		t.Fatal("Expected a quality block error")
	}

	var blocked *types.QualityBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("Expected QualityBlockedError, got %v", err)
	}
	if blocked.TaskID != result.Task.ID {
		t.Errorf("Expected error to carry task ID %s, got %s", result.Task.ID, blocked.TaskID)
	}
	if len(blocked.Reasons) == 0 {
		t.Error("Expected block reasons")
	}

	var phase *types.PhaseError
	if !errors.As(err, &phase) {
		t.Fatalf("Expected PhaseError, got %v", err)
	}
	if phase.LastPhase != types.PhaseSync {
		t.Errorf("Expected human_sync as last phase, got %s", phase.LastPhase)
	}

	if result.Package != nil {
		t.Error("A blocked package must never be emitted")
	}
	if result.Sync == nil {
		t.Fatal("Expected a remediation sync request after the second block")
	}

	// No package record may exist for the blocked attempt.
	records, err := store.Search(context.Background(), "", archive.Filter{
		ProjectPath: root,
		Kind:        archive.KindContextPackage,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no persisted packages, got %d", len(records))
	}
}

func TestPrepareRecordsTask(t *testing.T) {
	o, store := newTestOrchestrator(t)
	root := seedProject(t)

	result, err := o.Prepare(context.Background(), "add a README", root)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	records, err := store.Search(context.Background(), "", archive.Filter{
		ProjectPath: root,
		Kind:        archive.KindTask,
		Tag:         "task:" + result.Task.ID,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("Expected a persisted task record")
	}
}

func TestNewRequiresAllComponents(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("Expected error for nil config")
	}
	if _, err := New(&Config{}); err == nil {
		t.Error("Expected error for missing components")
	}
}
