// Package echo provides the local backend that returns the prompt instead of
// calling a hosted model. It needs no credentials and no network.
package echo

import (
	"context"

	"github.com/varvasar/double-adviser/internal/backend"
)

const (
	// BackendType is the configuration identifier.
	BackendType = "echo"

	// Prefix starts every echo result.
	Prefix = "[LOCAL LLM MODE] Echoing prompt:\n\n"

	// MaxEchoChars bounds the echoed portion of the prompt.
	MaxEchoChars = 2000
)

// Backend echoes prompts.
type Backend struct{}

// New returns an echo backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string { return BackendType }

// Generate returns the fixed prefix followed by the first MaxEchoChars runes
// of the prompt.
func (*Backend) Generate(_ context.Context, prompt string) string {
	return Prefix + backend.Truncate(prompt, MaxEchoChars)
}

// Register adds the echo backend to the registry.
func Register() {
	if backend.IsRegistered(BackendType) {
		return
	}
	backend.RegisterFactory(backend.Factory{
		Type:        BackendType,
		Description: "Local echo backend for offline use",
		Create: func(backend.Config) (backend.Backend, error) {
			return New(), nil
		},
	})
}
