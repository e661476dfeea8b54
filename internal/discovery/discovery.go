// Package discovery finds candidate files relevant to a task, ranked into
// priority tiers. Each task type gets its own search strategy; all
// strategies share the same guard rails: the high tier is bounded to a
// small fixed count and nothing is included on stopword evidence alone.
// Over-broad inclusion was the dominant quality defect in predecessor
// systems and is actively suppressed here.
package discovery

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rgardiner/groundwork/internal/classifier"
	"github.com/rgardiner/groundwork/internal/types"
)

// patternWeight is the score for matching a strategy path pattern.
// keywordWeight is the per-token score for request keyword overlap.
const (
	patternWeight  = 2.0
	keywordWeight  = 1.0
	maxKeywordHits = 3
)

// Candidate is one ranked file
type Candidate struct {
	Path   string
	Score  float64
	Tier   types.Tier
	Reason string
}

// Mode adjusts strategy aggressiveness on a bounded gate retry
type Mode int

const (
	ModeNormal Mode = iota
	// ModeTighten raises the relevance bar; used when the gate blocked on
	// too much noise.
	ModeTighten
	// ModeWiden lowers the bar; used when the gate blocked on too little
	// coverage.
	ModeWiden
)

// Discoverer ranks project files for a task
type Discoverer struct {
	config *Config
	logger *zap.Logger
}

// New creates a discoverer
func New(cfg *Config, logger *zap.Logger) *Discoverer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{config: cfg, logger: logger}
}

// ExcludePaths returns the directory names indexing should skip
func (d *Discoverer) ExcludePaths() []string {
	return d.config.ExcludePaths
}

// Discover ranks the index's files for the task. Results are deterministic
// for identical inputs: score descending, then shorter path, then lexical.
func (d *Discoverer) Discover(ctx context.Context, task *types.Task, index *Index, mode Mode) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minRelevance := d.config.MinRelevance
	highLimit := d.config.HighTierLimit
	switch mode {
	case ModeTighten:
		minRelevance += patternWeight / 2
		if highLimit > 3 {
			highLimit = 3
		}
	case ModeWiden:
		minRelevance -= keywordWeight / 2
		if minRelevance < keywordWeight/2 {
			minRelevance = keywordWeight / 2
		}
		highLimit += 2
	}

	keywords := requestKeywords(task.RawRequest)
	strategy := strategyFor(task.TaskType, d.config)

	var candidates []Candidate
	for _, path := range index.Files {
		pattern, patternScore := strategy.match(path)
		kwHits := keywordOverlap(keywords, path)
		score := patternScore + float64(kwHits)*keywordWeight

		// The minimum relevance threshold is the over-broad-inclusion
		// guard: no pattern match and no keyword overlap means the file
		// does not belong in the package at all.
		if score < minRelevance {
			continue
		}

		candidates = append(candidates, Candidate{
			Path:   path,
			Score:  score,
			Reason: buildReason(task.TaskType, pattern, kwHits, keywords, path),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if len(candidates[i].Path) != len(candidates[j].Path) {
			return len(candidates[i].Path) < len(candidates[j].Path)
		}
		return candidates[i].Path < candidates[j].Path
	})

	if len(candidates) > d.config.MaxCandidates {
		candidates = candidates[:d.config.MaxCandidates]
	}

	for i := range candidates {
		switch {
		case i < highLimit && candidates[i].Score >= patternWeight:
			candidates[i].Tier = types.TierHigh
		case candidates[i].Score >= patternWeight:
			candidates[i].Tier = types.TierMedium
		default:
			candidates[i].Tier = types.TierLow
		}
	}

	d.logger.Debug("discovery completed",
		zap.String("task_id", task.ID),
		zap.String("task_type", string(task.TaskType)),
		zap.Int("candidates", len(candidates)),
		zap.Int("indexed_files", len(index.Files)))
	return candidates, nil
}

// requestKeywords extracts non-stopword tokens from the request. Stopwords
// never count as relevance evidence.
func requestKeywords(rawRequest string) map[string]bool {
	keywords := make(map[string]bool)
	for _, tok := range classifier.Tokenize(rawRequest) {
		if len(tok) >= 3 && !classifier.IsStopword(tok) {
			keywords[tok] = true
		}
	}
	return keywords
}

// keywordOverlap counts request keywords appearing in the path, capped so
// a keyword-stuffed path cannot dominate pattern evidence.
func keywordOverlap(keywords map[string]bool, path string) int {
	lower := strings.ToLower(path)
	hits := 0
	for kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
			if hits == maxKeywordHits {
				break
			}
		}
	}
	return hits
}

func buildReason(taskType types.TaskType, pattern string, kwHits int, keywords map[string]bool, path string) string {
	var parts []string
	if pattern != "" {
		parts = append(parts, "matches "+string(taskType)+" pattern "+pattern)
	}
	if kwHits > 0 {
		lower := strings.ToLower(path)
		var matched []string
		for kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		sort.Strings(matched)
		if len(matched) > maxKeywordHits {
			matched = matched[:maxKeywordHits]
		}
		parts = append(parts, "shares request keywords: "+strings.Join(matched, ", "))
	}
	return strings.Join(parts, "; ")
}

// strategy is a set of path patterns with a shared tier bias
type strategy struct {
	patterns []string
}

// match returns the first matching pattern and its score. Patterns ending
// in "/" match directory prefixes; others go through filepath.Match
// against the base name.
func (s strategy) match(path string) (string, float64) {
	base := filepath.Base(path)
	normalized := filepath.ToSlash(path)
	for _, p := range s.patterns {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(normalized, p) || strings.Contains(normalized, "/"+p) {
				return p, patternWeight
			}
			continue
		}
		if ok, _ := filepath.Match(p, base); ok {
			return p, patternWeight
		}
	}
	return "", 0
}

func strategyFor(taskType types.TaskType, cfg *Config) strategy {
	base := defaultPatterns[taskType]
	extra := cfg.ExtraPatterns[string(taskType)]
	patterns := make([]string, 0, len(base)+len(extra))
	patterns = append(patterns, base...)
	patterns = append(patterns, extra...)
	return strategy{patterns: patterns}
}

// defaultPatterns encodes the per-task-type search strategies.
// Documentation tasks weight top-level prose; testing tasks weight test
// trees; configuration tasks weight build/deploy manifests; code tasks
// weight source trees.
var defaultPatterns = map[types.TaskType][]string{
	types.TaskDocumentation: {
		"*.md", "*.rst", "*.txt", "README*", "CHANGELOG*", "LICENSE*",
		"docs/", "doc/",
	},
	types.TaskTesting: {
		"*_test.go", "*.test.*", "test/", "tests/", "testdata/", "spec/",
	},
	types.TaskConfiguration: {
		"*.yml", "*.yaml", "*.toml", "*.ini", "*.env", "Dockerfile",
		"Makefile", "*.mod", "config/", ".github/", "deploy/",
	},
	types.TaskCode: {
		"*.go", "*.py", "*.ts", "*.js", "*.rs", "cmd/", "internal/",
		"pkg/", "src/", "lib/",
	},
	types.TaskUnknown: {
		"README*", "*.go", "*.md",
	},
}
