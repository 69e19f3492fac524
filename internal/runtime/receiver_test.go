package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/varvasar/double-adviser/internal/config"
)

type blankEngine struct{}

func (blankEngine) Recognize(context.Context, []byte) (string, error) { return "", nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			RequestTimeout: 5 * time.Second,
			RateLimit:      100,
			RateBurst:      100,
			StaticDir:      filepath.Join(t.TempDir(), "missing"),
		},
		Log:     config.LogConfig{Level: "info"},
		History: config.HistoryConfig{Dir: t.TempDir()},
		Backend: config.BackendConfig{Type: "echo", Timeout: 5 * time.Second, MaxPromptChars: 16000},
		OCR:     config.OCRConfig{Enabled: false},
		Extract: config.ExtractConfig{RawImageMaxChars: 8000},
	}
}

func newTestReceiver(t *testing.T, opts ...Option) *Receiver {
	t.Helper()
	opts = append([]Option{
		WithConfig(testConfig(t)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	r, err := New(opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Store().Close() })
	return r
}

func TestReceiver_New_RequiresConfig(t *testing.T) {
	_, err := New()
	if err == nil {
		t.Fatal("Expected error without config")
	}
}

func TestReceiver_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Type = "carrier-pigeon"
	if _, err := New(WithConfig(cfg)); err == nil {
		t.Fatal("Expected error for unknown backend type")
	}
}

func TestReceiver_EndToEnd(t *testing.T) {
	r := newTestReceiver(t)
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/process", "application/json",
		strings.NewReader(`{"type":"text","text":"buy milk","meta":{"source":"clipboard"}}`))
	if err != nil {
		t.Fatalf("POST /process: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var reply struct {
		Status        string `json:"status"`
		ID            int    `json:"id"`
		ResultPreview string `json:"result_preview"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatal(err)
	}
	if reply.Status != "ok" || reply.ID != 1 {
		t.Errorf("reply = %+v", reply)
	}
	if !strings.HasPrefix(reply.ResultPreview, "[LOCAL LLM MODE]") {
		t.Errorf("preview = %q", reply.ResultPreview)
	}

	page := get(t, srv.URL+"/")
	if !strings.Contains(page, "buy milk") {
		t.Error("index page does not show the entry")
	}

	var h health
	if err := json.Unmarshal([]byte(get(t, srv.URL+"/healthz")), &h); err != nil {
		t.Fatal(err)
	}
	if h.Entries != 1 || h.Backend != "echo" || h.OCR {
		t.Errorf("health = %+v", h)
	}

	if m := get(t, srv.URL+"/metrics"); !strings.Contains(m, `adviser_submissions_total{kind="text",outcome="ok"} 1`) {
		t.Errorf("metrics missing submission counter:\n%s", m)
	}

	log, err := os.ReadFile(r.Store().Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(log), "## Block 1 — ") {
		t.Errorf("log = %q", log)
	}
}

func TestReceiver_OCREngineOverride(t *testing.T) {
	r := newTestReceiver(t, WithOCREngine(blankEngine{}))
	if !r.extractor.OCR() {
		t.Error("Expected OCR extractor when an engine is supplied")
	}
}

func TestReceiver_StartAndShutdown(t *testing.T) {
	r := newTestReceiver(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if err := r.Start(ctx); err == nil {
		t.Error("Expected error on second Start")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := r.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	return string(body)
}
