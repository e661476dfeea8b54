package archive

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rgardiner/groundwork/internal/types"
)

func openTestArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	a, err := Open(&Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestStoreAssignsIDAndDefaults(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	id, err := a.Store(ctx, &Record{
		Kind:        KindTask,
		ProjectPath: "/tmp/project",
	})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected an assigned ID")
	}

	rec, err := a.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Kind != KindTask {
		t.Errorf("Expected kind task, got %s", rec.Kind)
	}
	if string(rec.Payload) != "{}" {
		t.Errorf("Expected empty-object payload default, got %s", rec.Payload)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
}

func TestStoreRejectsIncompleteRecords(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	if _, err := a.Store(ctx, nil); err == nil {
		t.Error("Expected error for nil record")
	}
	if _, err := a.Store(ctx, &Record{ProjectPath: "/tmp/p"}); err == nil {
		t.Error("Expected error for missing kind")
	}
	if _, err := a.Store(ctx, &Record{Kind: KindTask}); err == nil {
		t.Error("Expected error for missing project path")
	}
}

func TestSearchRequiresProjectPath(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.Search(context.Background(), "anything", Filter{})
	if err == nil {
		t.Fatal("Expected error for filter without project path")
	}
}

func TestSearchProjectIsolation(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	store := func(projectPath, text string) {
		t.Helper()
		payload, _ := json.Marshal(map[string]string{"text": text})
		if _, err := a.Store(ctx, &Record{
			Kind:        KindFeedback,
			Payload:     payload,
			ProjectPath: projectPath,
		}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}
	store("/projects/alpha", "parser crash on empty input")
	store("/projects/beta", "parser crash on empty input")

	results, err := a.Search(ctx, "parser crash", Filter{ProjectPath: "/projects/alpha"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].ProjectPath != "/projects/alpha" {
		t.Errorf("Expected only alpha records, got %s", results[0].ProjectPath)
	}
}

func TestSearchKindAndTagFilters(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	recs := []*Record{
		{Kind: KindTask, ProjectPath: "/p", Tags: []string{"task:1"}},
		{Kind: KindFeedback, ProjectPath: "/p", Tags: []string{"task:1"}},
		{Kind: KindFeedback, ProjectPath: "/p", Tags: []string{"task:2"}},
	}
	for _, rec := range recs {
		if _, err := a.Store(ctx, rec); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	results, err := a.Search(ctx, "", Filter{ProjectPath: "/p", Kind: KindFeedback})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 feedback records, got %d", len(results))
	}

	results, err = a.Search(ctx, "", Filter{ProjectPath: "/p", Kind: KindFeedback, Tag: "task:2"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 tagged record, got %d", len(results))
	}
}

func TestSearchNewestFirst(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		_, err := a.Store(ctx, &Record{
			ID:          string(rune('a' + i)),
			Kind:        KindDecision,
			ProjectPath: "/p",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	results, err := a.Search(ctx, "", Filter{ProjectPath: "/p"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].ID != "c" || results[2].ID != "a" {
		t.Errorf("Expected newest-first order, got %s..%s", results[0].ID, results[2].ID)
	}
}

func TestSearchLimit(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := a.Store(ctx, &Record{Kind: KindPattern, ProjectPath: "/p"}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}
	}

	results, err := a.Search(ctx, "", Filter{ProjectPath: "/p", Limit: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected limit to cap results at 2, got %d", len(results))
	}
}

func TestGetNotFound(t *testing.T) {
	a := openTestArchive(t)

	if _, err := a.Get(context.Background(), "no-such-id"); err == nil {
		t.Fatal("Expected error for unknown ID")
	}
}

func TestStoreAfterCloseWrapsUnavailable(t *testing.T) {
	a := openTestArchive(t)
	_ = a.Close()

	_, err := a.Store(context.Background(), &Record{Kind: KindTask, ProjectPath: "/p"})
	if !errors.Is(err, types.ErrArchiveUnavailable) {
		t.Fatalf("Expected ErrArchiveUnavailable, got %v", err)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.db")
	a, err := Open(&Config{Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if _, err := a.Store(context.Background(), &Record{Kind: KindTask, ProjectPath: "/p"}); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
}

func TestFtsQueryQuotesTerms(t *testing.T) {
	got := ftsQuery(`fix the "parser" bug`)
	want := `"fix" OR "the" OR "parser" OR "bug"`
	if got != want {
		t.Errorf("ftsQuery = %s, want %s", got, want)
	}
	if ftsQuery("  ") != `""` {
		t.Errorf("Expected empty query fallback, got %s", ftsQuery("  "))
	}
}
