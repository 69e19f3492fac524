package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/varvasar/double-adviser/internal/tokens"
)

// Observer receives one notification per Generate call.
type Observer interface {
	ObserveGeneration(backend string, d time.Duration, promptTokens int, failed bool)
}

// BoundedOption configures a Bounded backend.
type BoundedOption func(*Bounded)

// WithMaxPromptChars bounds the prompt forwarded to the inner backend.
func WithMaxPromptChars(n int) BoundedOption {
	return func(b *Bounded) {
		if n > 0 {
			b.maxPromptChars = n
		}
	}
}

// WithTimeout bounds each inner Generate call.
func WithTimeout(d time.Duration) BoundedOption {
	return func(b *Bounded) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithModel names the model used for token accounting.
func WithModel(model string) BoundedOption {
	return func(b *Bounded) { b.model = model }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BoundedOption {
	return func(b *Bounded) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) BoundedOption {
	return func(b *Bounded) { b.observer = o }
}

// WithTokenRegistry replaces the default token counter registry.
func WithTokenRegistry(r *tokens.Registry) BoundedOption {
	return func(b *Bounded) {
		if r != nil {
			b.tokens = r
		}
	}
}

// Bounded wraps a Backend with a prompt size bound, a deadline, tracing,
// and panic recovery. It preserves the never-fail contract.
type Bounded struct {
	inner          Backend
	maxPromptChars int
	timeout        time.Duration
	model          string
	logger         *slog.Logger
	observer       Observer
	tokens         *tokens.Registry
	tracer         trace.Tracer
}

// NewBounded wraps inner.
func NewBounded(inner Backend, opts ...BoundedOption) *Bounded {
	b := &Bounded{
		inner:          inner,
		maxPromptChars: DefaultMaxPromptChars,
		timeout:        60 * time.Second,
		logger:         slog.Default(),
		tokens:         tokens.NewDefaultRegistry(),
		tracer:         otel.Tracer("github.com/varvasar/double-adviser/internal/backend"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the inner backend's name.
func (b *Bounded) Name() string {
	return b.inner.Name()
}

// Unwrap returns the wrapped backend.
func (b *Bounded) Unwrap() Backend {
	return b.inner
}

// Generate forwards a bounded prompt to the inner backend.
func (b *Bounded) Generate(ctx context.Context, prompt string) (result string) {
	start := time.Now()
	name := b.inner.Name()

	original := RuneCount(prompt)
	prompt = Truncate(prompt, b.maxPromptChars)
	promptTokens, estimated := b.tokens.Count(b.model, prompt)

	ctx, span := b.tracer.Start(ctx, "backend.generate", trace.WithAttributes(
		attribute.String("backend.name", name),
		attribute.String("backend.model", b.model),
		attribute.Int("prompt.chars", original),
		attribute.Int("prompt.tokens", promptTokens),
		attribute.Bool("prompt.tokens_estimated", estimated),
		attribute.Bool("prompt.truncated", original > b.maxPromptChars),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("backend panicked", "backend", name, "panic", r)
			result = Failure(fmt.Errorf("panic: %v", r))
		}

		failed := IsFailure(result)
		if failed {
			span.SetStatus(codes.Error, result)
		}
		elapsed := time.Since(start)
		if b.observer != nil {
			b.observer.ObserveGeneration(name, elapsed, promptTokens, failed)
		}
		b.logger.Info("generation finished",
			"backend", name,
			"model", b.model,
			"prompt_chars", original,
			"prompt_tokens", promptTokens,
			"result_chars", RuneCount(result),
			"failed", failed,
			"duration_ms", elapsed.Milliseconds(),
		)
	}()

	if original > b.maxPromptChars {
		b.logger.Warn("prompt truncated", "backend", name, "from", original, "to", b.maxPromptChars)
	}

	return b.inner.Generate(ctx, prompt)
}
