package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constBackend string

func (c constBackend) Name() string                            { return "const" }
func (c constBackend) Generate(context.Context, string) string { return string(c) }

func TestRegistry(t *testing.T) {
	ClearFactories()
	t.Cleanup(ClearFactories)

	RegisterFactory(Factory{
		Type: "const",
		Create: func(cfg Config) (Backend, error) {
			require.NotNil(t, cfg.HTTPClient, "Create must default the HTTP client")
			return constBackend("pong"), nil
		},
		ValidateConfig: func(cfg Config) error {
			if cfg.Model == "bad" {
				return errors.New("bad model")
			}
			return nil
		},
	})

	assert.True(t, IsRegistered("const"))
	assert.Equal(t, []string{"const"}, ListTypes())
	assert.Panics(t, func() {
		RegisterFactory(Factory{Type: "const", Create: func(Config) (Backend, error) { return nil, nil }})
	})

	b, err := New(Config{Type: "const"})
	require.NoError(t, err)
	_, bounded := b.(*Bounded)
	assert.True(t, bounded)
	assert.Equal(t, "pong", b.Generate(context.Background(), "ping"))

	_, err = New(Config{Type: "const", Model: "bad"})
	assert.ErrorContains(t, err, "bad model")

	_, err = New(Config{Type: "missing"})
	assert.ErrorContains(t, err, `unknown backend type "missing"`)
}
