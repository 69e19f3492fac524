package tokens

import (
	"errors"
	"testing"
)

func TestEstimator_CountText(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		text string
		want int
	}{
		{text: "", want: 0},
		{text: "abc", want: 1},
		{text: "abcd", want: 1},
		{text: "abcde", want: 2},
	}
	for _, tt := range tests {
		got, err := e.CountText("any", tt.text)
		if err != nil {
			t.Fatalf("CountText(%q) error = %v", tt.text, err)
		}
		if got != tt.want {
			t.Errorf("CountText(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestOpenAICounter_CountText(t *testing.T) {
	c := NewOpenAICounter()

	n, err := c.CountText("gpt-4o-mini", "Hello, world!")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if n < 2 || n > 6 {
		t.Errorf("CountText() = %d, want a small positive count", n)
	}
}

func TestOpenAICounter_SupportsModel(t *testing.T) {
	c := NewOpenAICounter()

	for _, m := range []string{"gpt-4o-mini", "GPT-4", "o3-mini"} {
		if !c.SupportsModel(m) {
			t.Errorf("SupportsModel(%q) = false, want true", m)
		}
	}
	for _, m := range []string{"claude-3-5-haiku-latest", "echo", ""} {
		if c.SupportsModel(m) {
			t.Errorf("SupportsModel(%q) = true, want false", m)
		}
	}
}

type failingCounter struct{}

func (failingCounter) CountText(string, string) (int, error) { return 0, errors.New("boom") }
func (failingCounter) SupportsModel(string) bool             { return true }

func TestRegistry_Count(t *testing.T) {
	r := NewDefaultRegistry()

	if _, estimated := r.Count("gpt-4o", "hello there"); estimated {
		t.Error("gpt-4o should use the tiktoken counter")
	}
	if n, estimated := r.Count("claude-3-5-haiku-latest", "12345678"); !estimated || n != 2 {
		t.Errorf("Count() = %d, %v; want 2, true", n, estimated)
	}

	r = NewRegistry()
	r.Register(failingCounter{})
	if n, estimated := r.Count("gpt-4o", "1234"); !estimated || n != 1 {
		t.Errorf("Count() with failing counter = %d, %v; want 1, true", n, estimated)
	}
}

func TestModelMatcher(t *testing.T) {
	m := NewModelMatcher([]string{"gpt-"}, []string{"davinci"})
	if !m.Matches("gpt-5") || !m.Matches("davinci") {
		t.Error("expected matches")
	}
	if m.Matches("davinci-2") {
		t.Error("exact match must not act as prefix")
	}
}
