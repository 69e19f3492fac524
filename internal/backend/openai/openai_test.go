package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiopenai "github.com/varvasar/double-adviser/internal/api/openai"
	"github.com/varvasar/double-adviser/internal/backend"
	"github.com/varvasar/double-adviser/internal/testutil"
)

func newTestServer(t *testing.T, status int, body string, seen *apiopenai.ResponsesRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate_Success(t *testing.T) {
	var seen apiopenai.ResponsesRequest
	srv := newTestServer(t, http.StatusOK, `{"id":"resp_1","status":"completed","output":[
		{"type":"message","role":"assistant","content":[{"type":"output_text","text":"  Buy oat milk.  "}]}
	]}`, &seen)

	b := New(backend.Config{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	got := b.Generate(context.Background(), "buy milk")

	assert.Equal(t, "Buy oat milk.", got)
	assert.Equal(t, DefaultModel, seen.Model)
	assert.Equal(t, backend.DefaultInstructions, seen.Instructions)
	assert.Equal(t, "buy milk", seen.Input)
}

func TestGenerate_MissingCredential(t *testing.T) {
	b := New(backend.Config{})
	got := b.Generate(context.Background(), "hi")

	assert.Equal(t, "credential not configured (set OPENAI_API_KEY)", got)
	assert.True(t, backend.IsFailure(got))
}

func TestGenerate_APIErrorBecomesResult(t *testing.T) {
	srv := newTestServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"quota exceeded","type":"insufficient_quota","code":"insufficient_quota"}}`, nil)

	b := New(backend.Config{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	got := b.Generate(context.Background(), "hi")

	assert.True(t, strings.HasPrefix(got, backend.FailurePrefix), got)
	assert.Contains(t, got, "429")
	assert.Contains(t, got, "quota exceeded")
}

func TestGenerate_EmptyOutput(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"id":"resp_1","status":"completed","output":[]}`, nil)

	b := New(backend.Config{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
	got := b.Generate(context.Background(), "hi")

	assert.Equal(t, backend.FailurePrefix+"empty response", got)
}

func TestGenerate_TimeoutBecomesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	b := backend.NewBounded(
		New(backend.Config{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()}),
		backend.WithTimeout(50*time.Millisecond),
	)
	got := b.Generate(context.Background(), "hi")

	assert.True(t, strings.HasPrefix(got, backend.FailurePrefix), got)
	assert.Contains(t, got, "deadline exceeded")
}

func TestGenerate_Recorded(t *testing.T) {
	r, stop := testutil.NewVCRRecorder(t, "openai_responses_basic")
	defer stop()

	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		key = "sk-replay"
	}
	b := New(backend.Config{
		APIKey:     key,
		HTTPClient: testutil.VCRHTTPClient(r),
	})
	got := b.Generate(context.Background(), "Say hello in one word.")

	assert.False(t, backend.IsFailure(got), got)
	assert.NotEmpty(t, got)
}
