package prompt

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varvasar/double-adviser/internal/extract"
)

func TestBuild_WithText(t *testing.T) {
	p := Build(extract.Extraction{Text: "buy milk"}, json.RawMessage(`{"source":"clipboard"}`))

	assert.True(t, strings.HasPrefix(p, "Process the following input and produce a concise, actionable answer."))
	assert.True(t, strings.HasSuffix(p, "Input:\nbuy milk"))
	assert.NotContains(t, p, "clipboard", "metadata only appears in the fallback template")
	assert.False(t, IsFallback(p))
}

func TestBuild_FallbackEmbedsMeta(t *testing.T) {
	meta := json.RawMessage("{\n  \"source\": \"screenshot\",\n  \"timestamp\": 1700000000.25\n}")

	p := Build(extract.Extraction{}, meta)

	assert.True(t, IsFallback(p))
	assert.Contains(t, p, `No text found. Raw payload: {"source":"screenshot","timestamp":1700000000.25}`)
	assert.Contains(t, p, "suggest a next step")
}

func TestBuild_FallbackWithoutMeta(t *testing.T) {
	p := Build(extract.Extraction{Text: "   "}, nil)

	assert.True(t, strings.HasPrefix(p, "No text found. Raw payload: null"))
}

func TestBuild_Deterministic(t *testing.T) {
	meta := json.RawMessage(`{"source":"clipboard"}`)
	cases := []extract.Extraction{{Text: "x"}, {}}

	for _, ex := range cases {
		assert.Equal(t, Build(ex, meta), Build(ex, meta))
	}
}
