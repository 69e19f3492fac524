package runtime

import (
	"fmt"
	"log/slog"

	"github.com/varvasar/double-adviser/internal/backend"
	"github.com/varvasar/double-adviser/internal/config"
	"github.com/varvasar/double-adviser/internal/extract"
	"github.com/varvasar/double-adviser/internal/metrics"
)

// Option configures a Receiver.
type Option func(*Receiver) error

// WithConfig supplies an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(r *Receiver) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		r.cfg = cfg
		return nil
	}
}

// WithFileConfig loads configuration from path and the environment.
func WithFileConfig(path string) Option {
	return func(r *Receiver) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		r.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Receiver) error {
		r.logger = logger
		return nil
	}
}

// WithBackend bypasses the backend registry.
func WithBackend(b backend.Backend) Option {
	return func(r *Receiver) error {
		r.backend = b
		return nil
	}
}

// WithOCREngine replaces the tesseract probe with the given engine.
func WithOCREngine(engine extract.Engine) Option {
	return func(r *Receiver) error {
		r.engine = engine
		return nil
	}
}

// WithMetrics supplies the metrics registry instead of creating one.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Receiver) error {
		r.metrics = m
		return nil
	}
}
