// Package testutil holds helpers shared by package tests.
package testutil

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// CassettePath returns the on-disk path of a named cassette under testdata/fixtures.
func CassettePath(name string) string {
	return filepath.Join("testdata", "fixtures", name)
}

// NewVCRRecorder creates a recorder for hosted-backend tests. It replays by
// default; VCR_MODE=record talks to the real API and rewrites the cassette.
// In replay mode a missing cassette skips the test.
func NewVCRRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func()) {
	t.Helper()

	path := CassettePath(cassetteName)
	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	} else if _, err := os.Stat(path + ".yaml"); errors.Is(err, fs.ErrNotExist) {
		t.Skipf("cassette %s not recorded (run with VCR_MODE=record)", cassetteName)
	}

	r, err := recorder.NewAsMode(path, mode, nil)
	if err != nil {
		t.Fatalf("create VCR recorder: %v", err)
	}

	// Request bodies carry prompts; match on method and URL only.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	// Never persist credentials.
	r.AddFilter(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		delete(i.Request.Headers, "X-Api-Key")
		return nil
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("stop VCR recorder: %v", err)
		}
	}
	return r, cleanup
}

// VCRHTTPClient returns an HTTP client that routes through the recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{Transport: r}
}
