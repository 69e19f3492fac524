package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/atotto/clipboard"
)

// ErrNoScreenshotTool is returned when no supported screenshot utility is installed.
var ErrNoScreenshotTool = errors.New("no screenshot tool found")

// Sensor acquires content on the sending machine.
type Sensor interface {
	// ClipboardText returns the clipboard's text, "" when it holds none.
	ClipboardText() (string, error)
	// Screenshot returns the full screen as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
}

// screenshotTool writes a PNG of the screen to the given path.
type screenshotTool struct {
	name string
	args func(path string) []string
}

// Linux tools are tried in order: Wayland first, then X11.
var screenshotTools = map[string][]screenshotTool{
	"darwin": {
		{"screencapture", func(p string) []string { return []string{"-x", "-t", "png", p} }},
	},
	"linux": {
		{"grim", func(p string) []string { return []string{p} }},
		{"gnome-screenshot", func(p string) []string { return []string{"-f", p} }},
		{"import", func(p string) []string { return []string{"-window", "root", p} }},
		{"scrot", func(p string) []string { return []string{"--overwrite", p} }},
	},
}

// SystemSensor reads the OS clipboard and shells out to a platform
// screenshot utility.
type SystemSensor struct {
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewSystemSensor returns a sensor for the current platform.
func NewSystemSensor() *SystemSensor {
	return &SystemSensor{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s: %w: %s", name, err, out)
			}
			return nil
		},
	}
}

func (s *SystemSensor) ClipboardText() (string, error) {
	if clipboard.Unsupported {
		return "", errors.New("clipboard unsupported on this system")
	}
	return clipboard.ReadAll()
}

func (s *SystemSensor) Screenshot(ctx context.Context) ([]byte, error) {
	tool, err := s.findTool(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "advise-shot-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "screen.png")
	if err := s.run(ctx, tool.name, tool.args(path)...); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s produced an empty screenshot", tool.name)
	}
	return data, nil
}

func (s *SystemSensor) findTool(goos string) (screenshotTool, error) {
	for _, t := range screenshotTools[goos] {
		if _, err := s.lookPath(t.name); err == nil {
			return t, nil
		}
	}
	return screenshotTool{}, fmt.Errorf("%w for %s", ErrNoScreenshotTool, goos)
}
