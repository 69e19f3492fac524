// Package anthropic implements the hosted backend on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/varvasar/double-adviser/internal/api/anthropic"
	"github.com/varvasar/double-adviser/internal/backend"
)

const (
	// BackendType is the backend type identifier used in configuration.
	BackendType      = "anthropic"
	APIKeyEnv        = "ANTHROPIC_API_KEY"
	DefaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
)

// Backend sends prompts to the Messages API.
type Backend struct {
	client    *anthropic.Client
	apiKey    string
	model     string
	system    string
	maxTokens int
}

// New creates an Anthropic backend from configuration.
func New(cfg backend.Config) *Backend {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
	}

	b := &Backend{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		system:    cfg.Instructions,
		maxTokens: cfg.MaxOutputTokens,
	}
	if b.model == "" {
		b.model = DefaultModel
	}
	if b.system == "" {
		b.system = backend.DefaultInstructions
	}
	if b.maxTokens <= 0 {
		b.maxTokens = defaultMaxTokens
	}
	return b
}

func (b *Backend) Name() string { return BackendType }

// Model returns the configured model.
func (b *Backend) Model() string { return b.model }

// Generate calls the API. Every failure becomes a result string.
func (b *Backend) Generate(ctx context.Context, prompt string) string {
	if b.apiKey == "" {
		return backend.MissingCredential(APIKeyEnv)
	}

	resp, err := b.client.CreateMessage(ctx, &anthropic.MessagesRequest{
		Model:     b.model,
		System:    b.system,
		MaxTokens: b.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		} else {
			var apiErr *anthropic.APIError
			if errors.As(err, &apiErr) {
				err = fmt.Errorf("status %d: %w", apiErr.StatusCode, apiErr)
			}
		}
		return backend.Failure(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return backend.Failure(errors.New("empty response"))
	}
	return text
}

// Register adds the Anthropic backend to the registry.
func Register() {
	if backend.IsRegistered(BackendType) {
		return
	}
	backend.RegisterFactory(backend.Factory{
		Type:        BackendType,
		Description: "Anthropic Messages API",
		Create: func(cfg backend.Config) (backend.Backend, error) {
			return New(cfg), nil
		},
	})
}
