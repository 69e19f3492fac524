package backend

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Factory defines how to create a backend of a specific type.
type Factory struct {
	// Type is the identifier used in configuration (e.g. "openai", "echo").
	Type string

	// Description provides a human-readable description of the backend.
	Description string

	// Create instantiates the backend from configuration.
	Create func(cfg Config) (Backend, error)

	// ValidateConfig performs backend-specific validation. Optional.
	ValidateConfig func(cfg Config) error
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers a backend factory. Registration is explicit (see
// internal/registration) rather than init-based. Panics on duplicates.
func RegisterFactory(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("backend factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("backend factory %q must have a Create function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("backend factory %q already registered", f.Type))
	}
	factoryMap[f.Type] = f
}

// GetFactory returns the factory for a backend type, if registered.
func GetFactory(backendType string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[backendType]
	return f, ok
}

// IsRegistered returns true if a backend type is registered.
func IsRegistered(backendType string) bool {
	_, ok := GetFactory(backendType)
	return ok
}

// ListTypes returns all registered backend types, sorted.
func ListTypes() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryMap = make(map[string]Factory)
}

// Create builds the configured backend without the Bounded wrapper.
func Create(cfg Config) (Backend, error) {
	f, ok := GetFactory(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q (registered: %v)", cfg.Type, ListTypes())
	}
	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid %s backend config: %w", cfg.Type, err)
		}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return f.Create(cfg)
}

// New builds the configured backend wrapped in a Bounded backend that
// enforces the prompt size bound and the call timeout.
func New(cfg Config, opts ...BoundedOption) (Backend, error) {
	inner, err := Create(cfg)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if m, ok := inner.(interface{ Model() string }); ok {
		model = m.Model()
	}
	opts = append([]BoundedOption{
		WithMaxPromptChars(cfg.MaxPromptChars),
		WithTimeout(cfg.Timeout),
		WithModel(model),
	}, opts...)
	return NewBounded(inner, opts...), nil
}
