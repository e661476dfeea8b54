package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled patterns for stripping the formatting quirks LLMs wrap
// around JSON output. Compiling per call is measurably slower and these
// run on every oracle response.
var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json)?\\s*\n?([\\s\\S]*?)\n?```")
	objectRegex        = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
)

// parseJSONResponse extracts and unmarshals a JSON object from oracle
// output, tolerating code fences, surrounding prose, and trailing commas.
//
// Strategy sequence:
//  1. Direct parse
//  2. Strip code fences and retry
//  3. Extract the outermost object from mixed content and retry
//  4. Remove trailing commas and retry
func parseJSONResponse(text string, v interface{}) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty response")
	}

	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), v); err == nil {
			return nil
		}
		text = strings.TrimSpace(m[1])
	}

	if m := objectRegex.FindString(text); m != "" {
		if err := json.Unmarshal([]byte(m), v); err == nil {
			return nil
		}
		cleaned := trailingCommaRegex.ReplaceAllString(m, "$1")
		if err := json.Unmarshal([]byte(cleaned), v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON object in response (%d bytes)", len(text))
}
