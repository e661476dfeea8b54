package classifier

import (
	"sort"
	"strings"

	"github.com/rgardiner/groundwork/internal/types"
)

// HeuristicCeiling caps heuristic confidence. Keyword matching is known to
// be unreliable on nuanced requests, so a pure heuristic result can never
// claim more certainty than this.
const HeuristicCeiling = 0.75

// noMatchConfidence is reported when nothing in the rule table matches.
const noMatchConfidence = 0.2

// ruleTable maps task types to their trigger keywords. Keywords are
// matched on whole words, lowercased. This table is the entire heuristic:
// no I/O, fully reproducible, unit-testable without mocking the oracle.
var ruleTable = map[types.TaskType][]string{
	types.TaskCode: {
		"implement", "fix", "bug", "refactor", "function", "method",
		"feature", "endpoint", "api", "handler", "crash", "error",
	},
	types.TaskTesting: {
		"test", "tests", "testing", "coverage", "unit", "integration",
		"assert", "mock", "regression", "flaky",
	},
	types.TaskConfiguration: {
		"config", "configuration", "settings", "env", "environment",
		"deploy", "deployment", "ci", "pipeline", "docker", "makefile",
	},
	types.TaskDocumentation: {
		"document", "documentation", "docs", "readme", "comment",
		"changelog", "guide", "tutorial", "explain",
	},
}

// stopwords never count as keyword evidence, in either classification or
// discovery. Matching on these is how predecessor systems produced
// over-broad results.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "in": true,
	"on": true, "for": true, "and": true, "or": true, "is": true, "it": true,
	"this": true, "that": true, "with": true, "be": true, "as": true,
	"at": true, "by": true, "from": true, "we": true, "i": true,
	"please": true, "should": true, "would": true, "could": true,
	"file": true, "files": true,
}

// IsStopword reports whether a token carries no relevance signal
func IsStopword(token string) bool {
	return stopwords[strings.ToLower(token)]
}

// Tokenize splits request text into lowercase word tokens
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	return fields
}

// HeuristicClassify is the deterministic, always-available classification
// path. Confidence is proportional to matched-keyword density, capped at
// HeuristicCeiling. Ties between types are broken by the fixed priority
// order (code > testing > configuration > documentation > unknown) so
// identical inputs always classify identically.
func HeuristicClassify(text string) (types.TaskType, float64) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return types.TaskUnknown, noMatchConfidence
	}

	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if !IsStopword(tok) {
			present[tok] = true
		}
	}

	best := types.TaskUnknown
	bestMatches := 0
	for taskType, keywords := range ruleTable {
		matches := 0
		for _, kw := range keywords {
			if present[kw] {
				matches++
			}
		}
		if matches > bestMatches ||
			(matches == bestMatches && matches > 0 && taskType.Priority() < best.Priority()) {
			best = taskType
			bestMatches = matches
		}
	}

	if bestMatches == 0 {
		return types.TaskUnknown, noMatchConfidence
	}

	density := float64(bestMatches) / float64(len(tokens))
	confidence := 0.3 + density*1.5
	if confidence > HeuristicCeiling {
		confidence = HeuristicCeiling
	}
	return best, confidence
}

// TopCandidates returns up to n task types ranked by keyword evidence,
// ties broken by the fixed priority order. Used to derive concrete options
// for a human sync question when classification is ambiguous; types with
// zero evidence are omitted except unknown, which is always offered last.
func TopCandidates(text string, n int) []types.TaskType {
	tokens := Tokenize(text)
	present := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		if !IsStopword(tok) {
			present[tok] = true
		}
	}

	type scored struct {
		taskType types.TaskType
		matches  int
	}
	var ranked []scored
	for taskType, keywords := range ruleTable {
		matches := 0
		for _, kw := range keywords {
			if present[kw] {
				matches++
			}
		}
		if matches > 0 {
			ranked = append(ranked, scored{taskType, matches})
		}
	}
	if len(ranked) == 0 {
		// Nothing to rank: the human picks from every type.
		return []types.TaskType{
			types.TaskCode, types.TaskTesting, types.TaskConfiguration,
			types.TaskDocumentation, types.TaskUnknown,
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].matches != ranked[j].matches {
			return ranked[i].matches > ranked[j].matches
		}
		return ranked[i].taskType.Priority() < ranked[j].taskType.Priority()
	})

	candidates := make([]types.TaskType, 0, n)
	for _, s := range ranked {
		if len(candidates) == n-1 {
			break
		}
		candidates = append(candidates, s.taskType)
	}
	return append(candidates, types.TaskUnknown)
}
