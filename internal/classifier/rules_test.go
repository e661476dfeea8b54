package classifier

import (
	"testing"

	"github.com/rgardiner/groundwork/internal/types"
)

func TestHeuristicClassifyDocumentation(t *testing.T) {
	taskType, confidence := HeuristicClassify("add a README")
	if taskType != types.TaskDocumentation {
		t.Errorf("Expected documentation, got %s", taskType)
	}
	if confidence <= 0.2 {
		t.Errorf("Expected keyword evidence to lift confidence, got %.2f", confidence)
	}
}

func TestHeuristicClassifyCeiling(t *testing.T) {
	// A request saturated with code keywords must still cap at the ceiling.
	taskType, confidence := HeuristicClassify("fix bug implement refactor feature endpoint")
	if taskType != types.TaskCode {
		t.Errorf("Expected code, got %s", taskType)
	}
	if confidence != HeuristicCeiling {
		t.Errorf("Expected confidence %.2f, got %.2f", HeuristicCeiling, confidence)
	}
}

func TestHeuristicClassifyNoMatch(t *testing.T) {
	taskType, confidence := HeuristicClassify("lorem ipsum dolor sit amet")
	if taskType != types.TaskUnknown {
		t.Errorf("Expected unknown, got %s", taskType)
	}
	if confidence >= 0.5 {
		t.Errorf("Expected low confidence for no match, got %.2f", confidence)
	}
}

func TestHeuristicClassifyEmpty(t *testing.T) {
	taskType, _ := HeuristicClassify("   ")
	if taskType != types.TaskUnknown {
		t.Errorf("Expected unknown for empty input, got %s", taskType)
	}
}

func TestHeuristicClassifyDeterministic(t *testing.T) {
	// "test the config handler" has one keyword for each of three types;
	// the tie-break order must make repeated runs identical.
	const text = "test the config handler"
	firstType, firstConfidence := HeuristicClassify(text)
	for i := 0; i < 50; i++ {
		taskType, confidence := HeuristicClassify(text)
		if taskType != firstType || confidence != firstConfidence {
			t.Fatalf("Run %d diverged: %s/%.2f vs %s/%.2f",
				i, taskType, confidence, firstType, firstConfidence)
		}
	}
	// code outranks testing and configuration on ties
	if firstType != types.TaskCode {
		t.Errorf("Expected tie to resolve to code, got %s", firstType)
	}
}

func TestTokenizeDropsPunctuation(t *testing.T) {
	tokens := Tokenize("Fix the API, please!")
	want := []string{"fix", "the", "api", "please"}
	if len(tokens) != len(want) {
		t.Fatalf("Expected %d tokens, got %v", len(want), tokens)
	}
	for i, tok := range tokens {
		if tok != want[i] {
			t.Errorf("Token %d: expected %q, got %q", i, want[i], tok)
		}
	}
}

func TestIsStopword(t *testing.T) {
	if !IsStopword("the") || !IsStopword("The") {
		t.Error("Expected 'the' to be a stopword regardless of case")
	}
	if IsStopword("readme") {
		t.Error("Expected 'readme' to carry signal")
	}
}

func TestTopCandidatesAlwaysOffersUnknown(t *testing.T) {
	candidates := TopCandidates("update the deployment config and its tests", 3)
	if len(candidates) < 2 {
		t.Fatalf("Expected at least 2 candidates, got %v", candidates)
	}
	if candidates[len(candidates)-1] != types.TaskUnknown {
		t.Errorf("Expected unknown as the final option, got %v", candidates)
	}
	if candidates[0] != types.TaskConfiguration {
		t.Errorf("Expected configuration to rank first, got %v", candidates)
	}
}

func TestTopCandidatesNoEvidence(t *testing.T) {
	// With nothing to rank, every type is offered so the human can still
	// pick a concrete answer.
	candidates := TopCandidates("lorem ipsum", 3)
	if len(candidates) != 5 {
		t.Fatalf("Expected all 5 types with no evidence, got %v", candidates)
	}
	if candidates[len(candidates)-1] != types.TaskUnknown {
		t.Errorf("Expected unknown last, got %v", candidates)
	}
}
