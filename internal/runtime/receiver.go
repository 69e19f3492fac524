// Package runtime assembles the receiver from configuration: the history
// store, extractor, backend, ingest service, renderer and HTTP server.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/varvasar/double-adviser/internal/backend"
	"github.com/varvasar/double-adviser/internal/config"
	"github.com/varvasar/double-adviser/internal/extract"
	"github.com/varvasar/double-adviser/internal/history"
	"github.com/varvasar/double-adviser/internal/ingest"
	"github.com/varvasar/double-adviser/internal/metrics"
	"github.com/varvasar/double-adviser/internal/registration"
	"github.com/varvasar/double-adviser/internal/render"
	"github.com/varvasar/double-adviser/internal/server"
)

// Receiver owns every long-lived component of the receiving process.
type Receiver struct {
	cfg     *config.Config
	logger  *slog.Logger
	backend backend.Backend
	engine  extract.Engine
	metrics *metrics.Metrics

	store     *history.Store
	extractor extract.Extractor
	server    *server.Server

	mu      sync.Mutex
	started bool
}

// New builds a Receiver. Nothing listens until Start.
func New(opts ...Option) (*Receiver, error) {
	r := &Receiver{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if r.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithFileConfig)")
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}

	if err := r.initBackend(); err != nil {
		return nil, fmt.Errorf("init backend: %w", err)
	}
	r.initExtractor()

	store, err := history.Open(history.Options{Dir: r.cfg.History.Dir})
	if err != nil {
		return nil, err
	}
	r.store = store
	r.metrics.TrackHistoryLen(store.Len)

	r.initServer()

	r.logger.Info("receiver ready",
		slog.String("backend", r.backend.Name()),
		slog.Bool("ocr", r.extractor.OCR()),
		slog.String("history", store.Path()),
	)
	return r, nil
}

func (r *Receiver) initBackend() error {
	if r.backend != nil {
		return nil
	}
	registration.RegisterBuiltins()

	bc := r.cfg.Backend
	b, err := backend.New(backend.Config{
		Type:            bc.Type,
		APIKey:          bc.APIKey,
		Model:           bc.Model,
		BaseURL:         bc.BaseURL,
		Instructions:    bc.Instructions,
		MaxOutputTokens: bc.MaxOutputTokens,
		Timeout:         bc.Timeout,
		MaxPromptChars:  bc.MaxPromptChars,
	}, backend.WithLogger(r.logger), backend.WithObserver(r.metrics))
	if err != nil {
		return err
	}
	if bc.APIKey == "" && bc.Type != "echo" {
		r.logger.Warn("no API key configured; every request will record a credential notice", slog.String("backend", bc.Type))
	}
	r.backend = b
	return nil
}

func (r *Receiver) initExtractor() {
	opts := extract.Options{
		RawImageFallback: r.cfg.Extract.RawImageFallback,
		RawImageMaxChars: r.cfg.Extract.RawImageMaxChars,
		MaxPixels:        r.cfg.Extract.MaxPixels,
		OCRTimeout:       r.cfg.Extract.OCRTimeout,
		Logger:           r.logger,
	}

	engine := r.engine
	if engine == nil && r.cfg.OCR.Enabled {
		if extract.Available(r.cfg.OCR.TesseractPath) {
			engine = extract.NewTesseract(extract.TesseractConfig{
				Binary:      r.cfg.OCR.TesseractPath,
				Language:    r.cfg.OCR.Language,
				TessdataDir: r.cfg.OCR.TessdataDir,
				PSM:         r.cfg.OCR.PSM,
			}, nil, r.logger)
		} else {
			r.logger.Warn("OCR disabled: tesseract not found", slog.String("path", r.cfg.OCR.TesseractPath))
		}
	}

	if engine != nil {
		r.extractor = extract.NewOCR(engine, opts)
		return
	}
	r.extractor = extract.NewTextOnly(opts)
}

func (r *Receiver) initServer() {
	sc := r.cfg.Server
	r.server = server.New(server.Options{
		Host:           sc.Host,
		Port:           sc.Port,
		RequestTimeout: sc.RequestTimeout,
		Logger:         r.logger,
		Middleware:     []func(http.Handler) http.Handler{r.metrics.Middleware},
	})

	svc := ingest.NewService(r.extractor, r.backend, r.store, ingest.Options{Logger: r.logger, Metrics: r.metrics})
	limiter := server.NewHostRateLimiter(sc.RateLimit, sc.RateBurst)
	renderer := render.New(r.store, render.Options{Backend: r.backend.Name(), Logger: r.logger})

	router := r.server.Router
	router.With(limiter.Middleware).Method(http.MethodPost, "/process", ingest.NewHandler(svc, sc.MaxBodyBytes))
	router.Get("/", renderer.HandleIndex)
	router.Get("/api/history", renderer.HandleJSON)
	router.Get("/healthz", r.handleHealth)
	router.Method(http.MethodGet, "/metrics", r.metrics.Handler())

	if info, err := os.Stat(sc.StaticDir); err == nil && info.IsDir() {
		router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(sc.StaticDir))))
	}
}

type health struct {
	Status  string `json:"status"`
	Entries int    `json:"entries"`
	Backend string `json:"backend"`
	OCR     bool   `json:"ocr"`
}

func (r *Receiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:  "ok",
		Entries: r.store.Len(),
		Backend: r.backend.Name(),
		OCR:     r.extractor.OCR(),
	})
}

// Handler returns the root HTTP handler.
func (r *Receiver) Handler() http.Handler {
	return r.server.Router
}

// Store returns the history store.
func (r *Receiver) Store() *history.Store {
	return r.store
}

// Start serves until ctx is cancelled or the listener fails.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("receiver already started")
	}
	r.started = true
	r.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- r.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown drains in-flight requests, then closes the history log.
func (r *Receiver) Shutdown(ctx context.Context) error {
	r.logger.Info("shutting down receiver")

	var errs []error
	if err := r.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}
	if err := r.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close history: %w", err))
	}
	return errors.Join(errs...)
}
