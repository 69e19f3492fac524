// Package capture implements the sending side: it reads the clipboard or
// takes a screenshot and posts the result to the receiver once.
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/varvasar/double-adviser/internal/domain"
)

// Reply is the receiver's answer to a submission.
type Reply struct {
	Status        string `json:"status"`
	ID            int    `json:"id"`
	ResultPreview string `json:"result_preview"`
	PersistError  string `json:"persist_error,omitempty"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	TextTimeout  time.Duration
	ImageTimeout time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client posts payloads to the ingest endpoint. It never retries.
type Client struct {
	url          string
	http         *http.Client
	textTimeout  time.Duration
	imageTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewClient returns a client for the /process URL.
func NewClient(url string, opts Options) *Client {
	c := &Client{
		url:          url,
		http:         opts.HTTPClient,
		textTimeout:  opts.TextTimeout,
		imageTimeout: opts.ImageTimeout,
		logger:       opts.Logger,
		now:          time.Now,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.textTimeout <= 0 {
		c.textTimeout = 30 * time.Second
	}
	if c.imageTimeout <= 0 {
		c.imageTimeout = 60 * time.Second
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// SendText posts clipboard text.
func (c *Client) SendText(ctx context.Context, text string, source domain.Source) (Reply, error) {
	p, err := domain.NewTextPayload(text, domain.NewMetadata(source, c.now()))
	if err != nil {
		return Reply{}, err
	}
	return c.send(ctx, p, c.textTimeout)
}

// SendImage posts encoded image bytes.
func (c *Client) SendImage(ctx context.Context, image []byte, source domain.Source) (Reply, error) {
	p, err := domain.NewImagePayload(image, domain.NewMetadata(source, c.now()))
	if err != nil {
		return Reply{}, err
	}
	return c.send(ctx, p, c.imageTimeout)
}

func (c *Client) send(ctx context.Context, p domain.Payload, timeout time.Duration) (Reply, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return Reply{}, fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	c.logger.Debug("sending submission", "type", p.Type, "bytes", len(body), "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("send %s: %w", p.Type, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Reply{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return Reply{}, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode response: %w", err)
	}
	return reply, nil
}
