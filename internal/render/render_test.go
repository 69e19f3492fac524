package render

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varvasar/double-adviser/internal/history"
)

type staticSource []history.Entry

func (s staticSource) Snapshot() []history.Entry { return s }

var at = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func newRenderer(entries ...history.Entry) *Renderer {
	return New(staticSource(entries), Options{Backend: "echo", Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func TestHandleIndex_NewestFirstMarkdown(t *testing.T) {
	r := newRenderer(
		history.Entry{ID: 2, Timestamp: at, Prompt: "second", Result: "**bold** answer"},
		history.Entry{ID: 1, Timestamp: at, Prompt: "first", Result: "```\ncode\n```"},
	)

	rec := httptest.NewRecorder()
	r.HandleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.Contains(t, body, "<pre><code>code\n</code></pre>")
	assert.Contains(t, body, "2024-03-09 14:05:07")
	assert.Less(t, strings.Index(body, `id="block-2"`), strings.Index(body, `id="block-1"`))
}

func TestHandleIndex_EscapesRawHTML(t *testing.T) {
	r := newRenderer(history.Entry{ID: 1, Timestamp: at, Prompt: "<script>alert(1)</script>", Result: "ok"})

	rec := httptest.NewRecorder()
	r.HandleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, rec.Body.String(), "<script>alert(1)</script>")
}

func TestHandleIndex_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	newRenderer().HandleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nothing yet")
}

func TestBlock_Cached(t *testing.T) {
	r := newRenderer()
	e := history.Entry{ID: 7, Timestamp: at, Prompt: "p", Result: "r"}

	first := r.Block(e)
	e.Result = "changed"
	second := r.Block(e)

	assert.Equal(t, first, second)
}

func TestHandleJSON(t *testing.T) {
	r := newRenderer(history.Entry{ID: 1, Timestamp: at, Prompt: "p", Result: "r"})

	rec := httptest.NewRecorder()
	r.HandleJSON(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	var body struct {
		Entries []history.Entry `json:"entries"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "p", body.Entries[0].Prompt)
}
