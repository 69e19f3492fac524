// Package ingest runs the receive, extract, prompt, generate and record
// pipeline for one submission and exposes it over HTTP.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/varvasar/double-adviser/internal/backend"
	"github.com/varvasar/double-adviser/internal/domain"
	"github.com/varvasar/double-adviser/internal/extract"
	"github.com/varvasar/double-adviser/internal/history"
	"github.com/varvasar/double-adviser/internal/metrics"
	"github.com/varvasar/double-adviser/internal/prompt"
)

// Recorder stores the outcome of a processed submission.
type Recorder interface {
	Append(prompt, result string) (history.Entry, error)
}

// Outcome describes a processed submission.
type Outcome struct {
	Entry      history.Entry
	Extraction extract.Extraction
	// PersistErr is set when the entry was recorded in memory but not on disk.
	PersistErr error
}

// Options configures a Service.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Service processes submissions. It holds no per-request state and is safe
// for concurrent use; the Recorder serializes appends.
type Service struct {
	extractor extract.Extractor
	backend   backend.Backend
	store     Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewService wires the pipeline stages together.
func NewService(extractor extract.Extractor, b backend.Backend, store Recorder, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor: extractor,
		backend:   b,
		store:     store,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Process runs a validated submission through the pipeline. Extraction
// errors are returned before anything is recorded. The caller's cancellation
// does not reach extraction or generation; each stage is bounded by its own
// timeout and an accepted submission always produces an entry.
func (s *Service) Process(ctx context.Context, sub domain.Submission) (Outcome, error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	ex, err := s.extractor.Extract(ctx, sub)
	if err != nil {
		return Outcome{}, err
	}
	if ex.Empty() {
		s.metrics.ObserveEmptyExtraction(string(sub.Kind))
	}

	p := prompt.Build(ex, sub.RawMeta)
	result := s.backend.Generate(ctx, p)

	entry, err := s.store.Append(p, result)
	out := Outcome{Entry: entry, Extraction: ex}
	if err != nil {
		if !errors.Is(err, history.ErrPersist) {
			return Outcome{}, err
		}
		out.PersistErr = err
		s.metrics.ObservePersistError()
		s.logger.Error("history entry not persisted", "id", entry.ID, "error", err)
	}

	s.metrics.ObserveIngest(time.Since(start))
	s.logger.Debug("submission processed",
		"id", entry.ID,
		"kind", sub.Kind,
		"source", sub.Meta.Source,
		"extracted_chars", backend.RuneCount(ex.Text),
		"backend_failed", backend.IsFailure(result),
	)
	return out, nil
}
