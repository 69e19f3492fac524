package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/varvasar/double-adviser/internal/domain"
)

// Result describes one capture-and-send round.
type Result struct {
	Kind  domain.Kind
	Reply Reply
}

// CaptureAndSend sends the clipboard text when it has any non-blank content,
// otherwise a screenshot. A clipboard read failure falls through to the
// screenshot.
func CaptureAndSend(ctx context.Context, sensor Sensor, client *Client) (Result, error) {
	text, err := sensor.ClipboardText()
	if err != nil {
		client.logger.Warn("clipboard read failed", "error", err)
	}
	if err == nil && strings.TrimSpace(text) != "" {
		reply, err := client.SendText(ctx, text, domain.SourceClipboard)
		return Result{Kind: domain.KindText, Reply: reply}, err
	}

	shot, err := sensor.Screenshot(ctx)
	if err != nil {
		return Result{Kind: domain.KindImage}, fmt.Errorf("screenshot: %w", err)
	}
	reply, err := client.SendImage(ctx, shot, domain.SourceScreenshot)
	return Result{Kind: domain.KindImage, Reply: reply}, err
}
