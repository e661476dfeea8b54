// Package feedback consumes execution reports from the external executor
// and turns them into archived ExecutionFeedback records. This write is
// the sole mechanism by which the system improves over time: a failed
// write is surfaced as feedback loss, never swallowed, and a malformed
// report is rejected naming the offending field rather than partially
// recorded.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rgardiner/groundwork/internal/archive"
	"github.com/rgardiner/groundwork/internal/types"
)

// Recorder validates reports and writes feedback to the archive
type Recorder struct {
	archive archive.Archive
	logger  *zap.Logger
}

// New creates a feedback recorder
func New(store archive.Archive, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{archive: store, logger: logger}
}

// Record validates the report, computes the accuracy deltas against the
// referenced context package, and appends the feedback to the archive.
func (r *Recorder) Record(ctx context.Context, projectPath string, report *types.ExecutionReport) (*types.ExecutionFeedback, error) {
	if err := validateReport(report); err != nil {
		return nil, err
	}

	// The referenced package must exist: feedback that cannot be traced
	// to the exact inputs the executor saw is useless for learning.
	pkg, err := r.loadPackage(ctx, report.ContextPackageID)
	if err != nil {
		return nil, err
	}
	if pkg.TaskID != report.TaskID {
		return nil, &types.MalformedReportError{
			Field:  "task_id",
			Detail: fmt.Sprintf("package %s belongs to task %s, not %s", report.ContextPackageID, pkg.TaskID, report.TaskID),
		}
	}

	predicted := make([]string, 0, len(pkg.MustRead))
	for _, entry := range pkg.MustRead {
		predicted = append(predicted, entry.Path)
	}
	// The actual set is everything the executor touched, read or modified.
	actual := union(report.FilesRead, report.FilesModified)

	taskType := r.lookupTaskType(ctx, projectPath, report.TaskID)

	fb := &types.ExecutionFeedback{
		TaskID:           report.TaskID,
		ContextPackageID: report.ContextPackageID,
		TaskType:         taskType,
		Outcome: types.Outcome{
			Success:               report.Success,
			FilesActuallyModified: report.FilesModified,
			FilesActuallyRead:     report.FilesRead,
			CompilationPassed:     report.CompilationPassed,
		},
		Accuracy: types.Accuracy{
			MustRead: types.MustReadAccuracy{
				Predicted:   predicted,
				Actual:      actual,
				Missed:      difference(actual, predicted),
				Unnecessary: difference(predicted, actual),
			},
		},
		Learnings:  report.Learnings,
		RecordedAt: time.Now().UTC(),
	}
	if err := fb.Validate(); err != nil {
		return nil, fmt.Errorf("computed feedback failed validation: %w", err)
	}

	payload, err := json.Marshal(fb)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback: %w", err)
	}

	tags := []string{
		"task:" + fb.TaskID,
		"package:" + fb.ContextPackageID,
		"type:" + string(fb.TaskType),
	}
	if request := r.lookupRequest(ctx, projectPath, report.TaskID); request != "" {
		tags = append(tags, "request:"+request)
	}

	if _, err := r.archive.Store(ctx, &archive.Record{
		Kind:        archive.KindFeedback,
		Payload:     payload,
		Tags:        tags,
		ProjectPath: projectPath,
	}); err != nil {
		// Feedback loss must be explicit for the caller, not logged away.
		return nil, fmt.Errorf("feedback for task %s was not recorded: %w", fb.TaskID, err)
	}

	r.logger.Info("execution feedback recorded",
		zap.String("task_id", fb.TaskID),
		zap.String("package_id", fb.ContextPackageID),
		zap.Bool("success", fb.Outcome.Success),
		zap.Int("missed", len(fb.Accuracy.MustRead.Missed)),
		zap.Int("unnecessary", len(fb.Accuracy.MustRead.Unnecessary)))
	return fb, nil
}

// validateReport rejects malformed reports naming the specific field
func validateReport(report *types.ExecutionReport) error {
	if report == nil {
		return &types.MalformedReportError{Field: "report", Detail: "report is nil"}
	}
	if strings.TrimSpace(report.TaskID) == "" {
		return &types.MalformedReportError{Field: "task_id", Detail: "missing"}
	}
	if strings.TrimSpace(report.ContextPackageID) == "" {
		return &types.MalformedReportError{Field: "context_package_id", Detail: "missing"}
	}
	for i, l := range report.Learnings {
		if !l.Type.IsValid() {
			return &types.MalformedReportError{
				Field:  fmt.Sprintf("learnings[%d].type", i),
				Detail: fmt.Sprintf("invalid value %q", l.Type),
			}
		}
		if strings.TrimSpace(l.Content) == "" {
			return &types.MalformedReportError{
				Field:  fmt.Sprintf("learnings[%d].content", i),
				Detail: "missing",
			}
		}
	}
	return nil
}

func (r *Recorder) loadPackage(ctx context.Context, packageID string) (*types.ContextPackage, error) {
	rec, err := r.archive.Get(ctx, packageID)
	if err != nil {
		return nil, &types.MalformedReportError{
			Field:  "context_package_id",
			Detail: fmt.Sprintf("package %s not found in archive: %v", packageID, err),
		}
	}
	var pkg types.ContextPackage
	if err := json.Unmarshal(rec.Payload, &pkg); err != nil {
		return nil, fmt.Errorf("unreadable package record %s: %w", packageID, err)
	}
	return &pkg, nil
}

// lookupTaskType finds the task record to tag feedback with its type.
// Best-effort: an unknown type only weakens future retrieval.
func (r *Recorder) lookupTaskType(ctx context.Context, projectPath, taskID string) types.TaskType {
	task := r.lookupTask(ctx, projectPath, taskID)
	if task == nil {
		return types.TaskUnknown
	}
	return task.TaskType
}

func (r *Recorder) lookupRequest(ctx context.Context, projectPath, taskID string) string {
	task := r.lookupTask(ctx, projectPath, taskID)
	if task == nil {
		return ""
	}
	return task.RawRequest
}

func (r *Recorder) lookupTask(ctx context.Context, projectPath, taskID string) *types.Task {
	records, err := r.archive.Search(ctx, "", archive.Filter{
		ProjectPath: projectPath,
		Kind:        archive.KindTask,
		Tag:         "task:" + taskID,
		Limit:       1,
	})
	if err != nil || len(records) == 0 {
		return nil
	}
	var task types.Task
	if err := json.Unmarshal(records[0].Payload, &task); err != nil {
		return nil
	}
	return &task
}

// union merges two path lists, deduplicated and sorted
func union(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, p := range a {
		set[p] = true
	}
	for _, p := range b {
		set[p] = true
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// difference returns elements of a not in b, sorted. Applied both ways it
// partitions the symmetric difference: no path can land in both halves.
func difference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, p := range b {
		inB[p] = true
	}
	var out []string
	seen := make(map[string]bool, len(a))
	for _, p := range a {
		if !inB[p] && !seen[p] {
			out = append(out, p)
			seen[p] = true
		}
	}
	sort.Strings(out)
	return out
}
