// Package prompt builds the single prompt string sent to the generation
// backend. Build is pure: the same extraction and metadata always produce the
// same prompt.
package prompt

import (
	"bytes"
	"encoding/json"

	"github.com/varvasar/double-adviser/internal/extract"
)

const (
	instruction = "Process the following input and produce a concise, actionable answer.\n\nInput:\n"

	noTextPrefix = "No text found. Raw payload: "
	noTextSuffix = "\n\nAcknowledge that no text was found and suggest a next step."
)

// Build returns the prompt for an extraction. When no text was extracted the
// fallback template embeds meta verbatim.
func Build(ex extract.Extraction, meta json.RawMessage) string {
	if !ex.Empty() {
		return instruction + ex.Text
	}
	return noTextPrefix + renderMeta(meta) + noTextSuffix
}

// IsFallback reports whether p was produced by the no-text template.
func IsFallback(p string) bool {
	return len(p) >= len(noTextPrefix) && p[:len(noTextPrefix)] == noTextPrefix
}

func renderMeta(meta json.RawMessage) string {
	if len(bytes.TrimSpace(meta)) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, meta); err != nil {
		return string(meta)
	}
	return buf.String()
}
