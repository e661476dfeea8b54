package feedback

import (
	"testing"

	"pgregory.net/rapid"
)

// The missed/unnecessary pair must partition the symmetric difference of
// predicted and actual for any input: disjoint halves, nothing lost,
// nothing invented.
func TestAccuracyDeltasPartitionSymmetricDifference(t *testing.T) {
	pathGen := rapid.SliceOfN(rapid.SampledFrom([]string{
		"a.go", "b.go", "c.go", "d.md", "e.yaml", "f_test.go",
	}), 0, 6)

	rapid.Check(t, func(t *rapid.T) {
		predicted := pathGen.Draw(t, "predicted")
		actual := pathGen.Draw(t, "actual")

		missed := difference(actual, predicted)
		unnecessary := difference(predicted, actual)

		inMissed := make(map[string]bool, len(missed))
		for _, p := range missed {
			inMissed[p] = true
		}
		for _, p := range unnecessary {
			if inMissed[p] {
				t.Fatalf("path %q in both missed and unnecessary", p)
			}
		}

		symmetric := make(map[string]bool)
		inPredicted := make(map[string]bool, len(predicted))
		for _, p := range predicted {
			inPredicted[p] = true
		}
		inActual := make(map[string]bool, len(actual))
		for _, p := range actual {
			inActual[p] = true
		}
		for p := range inPredicted {
			if !inActual[p] {
				symmetric[p] = true
			}
		}
		for p := range inActual {
			if !inPredicted[p] {
				symmetric[p] = true
			}
		}

		if len(missed)+len(unnecessary) != len(symmetric) {
			t.Fatalf("partition size mismatch: %d+%d != %d", len(missed), len(unnecessary), len(symmetric))
		}
		for _, p := range append(append([]string{}, missed...), unnecessary...) {
			if !symmetric[p] {
				t.Fatalf("path %q outside the symmetric difference", p)
			}
		}
	})
}
