// Package extract turns a submission into plain text for prompting.
//
// Two variants exist: one backed by an OCR engine and one without. The
// variant is chosen once at startup; request handling never probes for OCR.
package extract

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/varvasar/double-adviser/internal/domain"
)

// rawImagePrefix introduces raw image data when raw-image mode is enabled.
const rawImagePrefix = "Analyze this screenshot (base64): "

const (
	// DefaultMaxPixels bounds width*height of a submitted image before it is
	// decoded.
	DefaultMaxPixels = 40_000_000

	// DefaultOCRTimeout bounds one OCR run.
	DefaultOCRTimeout = 60 * time.Second
)

// Extraction is the outcome of extracting a submission. An Extraction with
// no text is the valid "no text found" outcome, not an error.
type Extraction struct {
	Text string
	// Diagnostics describes the payload for logs only; it is never sent to
	// the generation backend.
	Diagnostics map[string]string
}

// Empty reports whether no usable text was extracted.
func (e Extraction) Empty() bool {
	return strings.TrimSpace(e.Text) == ""
}

// Extractor converts a submission into an Extraction. Undecodable images
// yield a domain.ErrInvalidImage error.
type Extractor interface {
	Extract(ctx context.Context, sub domain.Submission) (Extraction, error)
	// OCR reports whether this variant recognizes text in images.
	OCR() bool
}

// Engine recognizes text in a PNG-encoded image.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Options configures both extractor variants.
type Options struct {
	// RawImageFallback embeds the base64 image as prompt text when no OCR
	// engine is configured. Off by default.
	RawImageFallback bool
	// RawImageMaxChars bounds the embedded base64 data.
	RawImageMaxChars int
	// MaxPixels rejects larger images without decoding them.
	MaxPixels int
	// OCRTimeout bounds each engine call.
	OCRTimeout time.Duration
	Logger     *slog.Logger
}

type extractor struct {
	engine Engine
	opts   Options
	logger *slog.Logger
}

// NewTextOnly returns the variant used when OCR is unavailable.
func NewTextOnly(opts Options) Extractor {
	return newExtractor(nil, opts)
}

// NewOCR returns the variant that runs images through engine.
func NewOCR(engine Engine, opts Options) Extractor {
	return newExtractor(engine, opts)
}

func newExtractor(engine Engine, opts Options) *extractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RawImageMaxChars <= 0 {
		opts.RawImageMaxChars = 8000
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if opts.OCRTimeout <= 0 {
		opts.OCRTimeout = DefaultOCRTimeout
	}
	return &extractor{engine: engine, opts: opts, logger: logger}
}

func (e *extractor) OCR() bool {
	return e.engine != nil
}

func (e *extractor) Extract(ctx context.Context, sub domain.Submission) (Extraction, error) {
	switch sub.Kind {
	case domain.KindText:
		if strings.TrimSpace(sub.Text) == "" {
			return Extraction{}, nil
		}
		return Extraction{Text: sub.Text}, nil
	case domain.KindImage:
		return e.extractImage(ctx, sub)
	default:
		return Extraction{}, domain.InvalidRequest("unknown type %q", sub.Kind)
	}
}

func (e *extractor) extractImage(ctx context.Context, sub domain.Submission) (Extraction, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(sub.ImageBytes))
	if err != nil {
		return Extraction{}, domain.InvalidImage("bad image: %v", err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(e.opts.MaxPixels) {
		return Extraction{}, domain.InvalidImage("bad image: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, e.opts.MaxPixels)
	}

	diag := map[string]string{
		"bytes":  strconv.Itoa(len(sub.ImageBytes)),
		"format": format,
		"width":  strconv.Itoa(cfg.Width),
		"height": strconv.Itoa(cfg.Height),
	}

	if e.engine == nil {
		if e.opts.RawImageFallback && sub.ImageB64 != "" {
			data := sub.ImageB64
			if len(data) > e.opts.RawImageMaxChars {
				data = data[:e.opts.RawImageMaxChars]
				diag["raw_truncated"] = "true"
			}
			return Extraction{Text: rawImagePrefix + data, Diagnostics: diag}, nil
		}
		return Extraction{Diagnostics: diag}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(sub.ImageBytes))
	if err != nil {
		return Extraction{}, domain.InvalidImage("bad image: %v", err)
	}

	// The engine always receives PNG regardless of the submitted format.
	var buf bytes.Buffer
	if format == "png" {
		buf.Write(sub.ImageBytes)
	} else if err := png.Encode(&buf, img); err != nil {
		return Extraction{}, domain.InvalidImage("bad image: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.OCRTimeout)
	defer cancel()

	text, err := e.engine.Recognize(ctx, buf.Bytes())
	if err != nil {
		// OCR is best effort; a failed run is reported as no text.
		e.logger.Warn("ocr failed",
			slog.String("error", err.Error()),
			slog.String("format", format),
			slog.Int("bytes", len(sub.ImageBytes)),
		)
		diag["ocr_error"] = err.Error()
		return Extraction{Diagnostics: diag}, nil
	}
	if strings.TrimSpace(text) == "" {
		return Extraction{Diagnostics: diag}, nil
	}
	return Extraction{Text: text, Diagnostics: diag}, nil
}
