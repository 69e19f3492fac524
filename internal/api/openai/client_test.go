package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateResponse(t *testing.T) {
	var got ResponsesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("path = %s, want /v1/responses", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"object": "response",
			"status": "completed",
			"output": [
				{"type": "reasoning", "content": []},
				{"type": "message", "role": "assistant", "content": [
					{"type": "output_text", "text": "Buy "},
					{"type": "output_text", "text": "oat milk."}
				]}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))
	resp, err := c.CreateResponse(context.Background(), &ResponsesRequest{
		Model:        "gpt-4o-mini",
		Instructions: "be brief",
		Input:        "buy milk",
	})
	if err != nil {
		t.Fatalf("CreateResponse() error = %v", err)
	}

	if got.Model != "gpt-4o-mini" || got.Instructions != "be brief" || got.Input != "buy milk" {
		t.Errorf("unexpected request body %+v", got)
	}
	if text := resp.OutputText(); text != "Buy oat milk." {
		t.Errorf("OutputText() = %q, want %q", text, "Buy oat milk.")
	}
}

func TestCreateResponse_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL))
	_, err := c.CreateResponse(context.Background(), &ResponsesRequest{Model: "m", Input: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if apiErr.Error() != "insufficient_quota: You exceeded your current quota" {
		t.Errorf("Error() = %q", apiErr.Error())
	}
}

func TestCreateResponse_UnstructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("sk-test", WithBaseURL(srv.URL))
	_, err := c.CreateResponse(context.Background(), &ResponsesRequest{Model: "m", Input: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("unexpected structured error %v", apiErr)
	}
}

func TestResponsesRequest_WireFields(t *testing.T) {
	body, err := json.Marshal(&ResponsesRequest{Model: "gpt-4o-mini", Input: "hi", MaxOutputTokens: 64})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fields) != 3 || fields["model"] != "gpt-4o-mini" || fields["input"] != "hi" || fields["max_output_tokens"] != float64(64) {
		t.Errorf("request body = %s", body)
	}
}
