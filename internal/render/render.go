// Package render serves the history as an HTML page and as JSON.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/varvasar/double-adviser/internal/history"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

const timeLayout = "2006-01-02 15:04:05"

// Source provides a consistent newest-first view of the history.
type Source interface {
	Snapshot() []history.Entry
}

// Options configures a Renderer.
type Options struct {
	// Backend names the active backend in the page header.
	Backend string
	// RefreshSeconds sets the page auto-refresh interval. Zero means 5.
	RefreshSeconds int
	Logger         *slog.Logger
}

// Renderer converts entries to HTML. Entries never change after they are
// appended, so rendered blocks are cached by id.
type Renderer struct {
	source  Source
	md      goldmark.Markdown
	cache   *cache.Cache
	backend string
	refresh int
	logger  *slog.Logger
}

// New returns a Renderer reading from source.
func New(source Source, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	refresh := opts.RefreshSeconds
	if refresh <= 0 {
		refresh = 5
	}
	return &Renderer{
		source:  source,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		cache:   cache.New(30*time.Minute, 10*time.Minute),
		backend: opts.Backend,
		refresh: refresh,
		logger:  logger,
	}
}

// Block is one entry ready for the template.
type Block struct {
	ID         int
	Time       string
	PromptHTML template.HTML
	ResultHTML template.HTML
}

type page struct {
	Entries        []Block
	Backend        string
	RefreshSeconds int
}

// Markdown converts Markdown to HTML. Raw HTML in the source is not passed
// through.
func (r *Renderer) Markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// Block renders one entry, using the cache when possible.
func (r *Renderer) Block(e history.Entry) Block {
	key := strconv.Itoa(e.ID)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(Block)
	}

	b := Block{ID: e.ID, Time: e.Timestamp.Format(timeLayout)}
	var err error
	if b.PromptHTML, err = r.Markdown(e.Prompt); err != nil {
		r.logger.Warn("render prompt", "id", e.ID, "error", err)
		b.PromptHTML = template.HTML("<pre>" + template.HTMLEscapeString(e.Prompt) + "</pre>")
	}
	if b.ResultHTML, err = r.Markdown(e.Result); err != nil {
		r.logger.Warn("render result", "id", e.ID, "error", err)
		b.ResultHTML = template.HTML("<pre>" + template.HTMLEscapeString(e.Result) + "</pre>")
	}

	r.cache.SetDefault(key, b)
	return b
}

// HandleIndex serves GET /.
func (r *Renderer) HandleIndex(w http.ResponseWriter, req *http.Request) {
	entries := r.source.Snapshot()
	p := page{
		Entries:        make([]Block, 0, len(entries)),
		Backend:        r.backend,
		RefreshSeconds: r.refresh,
	}
	for _, e := range entries {
		p.Entries = append(p.Entries, r.Block(e))
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p); err != nil {
		r.logger.Error("render index", "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// HandleJSON serves GET /api/history, newest first.
func (r *Renderer) HandleJSON(w http.ResponseWriter, req *http.Request) {
	entries := r.source.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"entries": entries, "count": len(entries)}); err != nil {
		r.logger.Warn("encode history", "error", err)
	}
}
