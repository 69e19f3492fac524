// Package openai implements the hosted backend on the OpenAI Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/varvasar/double-adviser/internal/api/openai"
	"github.com/varvasar/double-adviser/internal/backend"
)

const (
	BackendType  = "openai"
	APIKeyEnv    = "OPENAI_API_KEY"
	DefaultModel = "gpt-4o-mini"
)

var errEmptyResponse = errors.New("empty response")

// Backend sends prompts to the Responses API.
type Backend struct {
	client          *openai.Client
	apiKey          string
	model           string
	instructions    string
	maxOutputTokens int
}

// New creates an OpenAI backend from configuration.
func New(cfg backend.Config) *Backend {
	opts := []openai.ClientOption{}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, openai.WithHTTPClient(cfg.HTTPClient))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	instructions := cfg.Instructions
	if instructions == "" {
		instructions = backend.DefaultInstructions
	}

	return &Backend{
		client:          openai.NewClient(cfg.APIKey, opts...),
		apiKey:          cfg.APIKey,
		model:           model,
		instructions:    instructions,
		maxOutputTokens: cfg.MaxOutputTokens,
	}
}

func (b *Backend) Name() string { return BackendType }

// Model returns the configured model.
func (b *Backend) Model() string { return b.model }

// Generate calls the API. Every failure becomes a result string.
func (b *Backend) Generate(ctx context.Context, prompt string) string {
	if b.apiKey == "" {
		return backend.MissingCredential(APIKeyEnv)
	}

	resp, err := b.client.CreateResponse(ctx, &openai.ResponsesRequest{
		Model:           b.model,
		Instructions:    b.instructions,
		Input:           prompt,
		MaxOutputTokens: b.maxOutputTokens,
	})
	if err != nil {
		return backend.Failure(describe(ctx, err))
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return backend.Failure(errEmptyResponse)
	}
	return text
}

func describe(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		return fmt.Errorf("status %d: %w", apiErr.StatusCode, apiErr)
	}
	return err
}

// Register adds the OpenAI backend to the registry.
func Register() {
	if backend.IsRegistered(BackendType) {
		return
	}
	backend.RegisterFactory(backend.Factory{
		Type:        BackendType,
		Description: "OpenAI Responses API",
		Create: func(cfg backend.Config) (backend.Backend, error) {
			return New(cfg), nil
		},
	})
}
