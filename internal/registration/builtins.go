// Package registration wires the built-in backends into the backend registry.
package registration

import (
	"github.com/varvasar/double-adviser/internal/backend/anthropic"
	"github.com/varvasar/double-adviser/internal/backend/echo"
	"github.com/varvasar/double-adviser/internal/backend/openai"
)

// RegisterBuiltins registers built-in backends explicitly. It replaces
// init-based side effects and is called from cmd/adviserd and tests before
// a backend is selected. Safe to call more than once.
func RegisterBuiltins() {
	echo.Register()
	openai.Register()
	anthropic.Register()
}
