package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classifyPayload struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

func TestParseJSONResponseDirect(t *testing.T) {
	var out classifyPayload
	err := parseJSONResponse(`{"type": "code", "confidence": 0.9}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "code", out.Type)
	assert.Equal(t, 0.9, out.Confidence)
}

func TestParseJSONResponseCodeFence(t *testing.T) {
	input := "```json\n{\"type\": \"testing\", \"confidence\": 0.8}\n```"
	var out classifyPayload
	err := parseJSONResponse(input, &out)
	require.NoError(t, err)
	assert.Equal(t, "testing", out.Type)
}

func TestParseJSONResponseBareFence(t *testing.T) {
	input := "```\n{\"type\": \"documentation\", \"confidence\": 0.7}\n```"
	var out classifyPayload
	err := parseJSONResponse(input, &out)
	require.NoError(t, err)
	assert.Equal(t, "documentation", out.Type)
}

func TestParseJSONResponseSurroundingProse(t *testing.T) {
	input := `Here is my assessment of the request:

{"type": "configuration", "confidence": 0.65}

Let me know if you need anything else.`
	var out classifyPayload
	err := parseJSONResponse(input, &out)
	require.NoError(t, err)
	assert.Equal(t, "configuration", out.Type)
}

func TestParseJSONResponseTrailingComma(t *testing.T) {
	input := `{"type": "code", "confidence": 0.9,}`
	var out classifyPayload
	err := parseJSONResponse(input, &out)
	require.NoError(t, err)
	assert.Equal(t, "code", out.Type)
}

func TestParseJSONResponseEmpty(t *testing.T) {
	var out classifyPayload
	err := parseJSONResponse("   ", &out)
	assert.Error(t, err)
}

func TestParseJSONResponseNoJSON(t *testing.T) {
	var out classifyPayload
	err := parseJSONResponse("I cannot answer that question.", &out)
	assert.Error(t, err)
}
