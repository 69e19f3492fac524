// Package backend defines the generation backend capability and the registry
// used to select exactly one implementation at startup.
//
// A Backend never fails upward: every failure mode is converted into a
// descriptive result string that is recorded like any other response.
package backend

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// FailurePrefix starts every result describing a failed backend call.
	FailurePrefix = "backend call failed: "

	// CredentialPrefix starts the result returned when no API key is set.
	CredentialPrefix = "credential not configured"

	// DefaultInstructions is the system instruction sent to hosted backends.
	DefaultInstructions = "You are a friendly but sarcastic assistant."

	// DefaultMaxPromptChars bounds the prompt forwarded to any backend.
	DefaultMaxPromptChars = 16000
)

// Backend turns a prompt into a response.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string) string
}

// Config selects and configures a backend. It is read once at startup.
type Config struct {
	Type            string
	APIKey          string
	Model           string
	BaseURL         string
	Instructions    string
	MaxOutputTokens int
	Timeout         time.Duration
	MaxPromptChars  int
	// HTTPClient is used by hosted backends; nil selects an instrumented default.
	HTTPClient *http.Client
}

// Failure converts an error into a failure result.
func Failure(err error) string {
	return FailurePrefix + err.Error()
}

// MissingCredential returns the result for a hosted backend with no key.
func MissingCredential(envVar string) string {
	return CredentialPrefix + " (set " + envVar + ")"
}

// IsFailure reports whether result describes a failure rather than a response.
func IsFailure(result string) bool {
	return strings.HasPrefix(result, FailurePrefix) || strings.HasPrefix(result, CredentialPrefix)
}

// Truncate returns at most max runes of s. A non-positive max disables the bound.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// RuneCount is utf8.RuneCountInString, exposed for callers that log sizes.
func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}
