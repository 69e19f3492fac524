package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Kind is the payload shape of a submission.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Source identifies how the sender acquired the content.
type Source string

const (
	SourceClipboard  Source = "clipboard"
	SourceScreenshot Source = "screenshot"
)

// Metadata describes a capture event. Timestamp carries the epoch seconds
// older senders emit; CapturedAt is preferred when both are present.
type Metadata struct {
	Source     Source    `json:"source,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
	Timestamp  float64   `json:"timestamp,omitempty"`
}

// NewMetadata returns metadata stamped with the given capture time.
func NewMetadata(source Source, at time.Time) Metadata {
	return Metadata{
		Source:     source,
		CapturedAt: at.UTC(),
		Timestamp:  float64(at.UnixNano()) / float64(time.Second),
	}
}

// Payload is the wire format accepted by the ingest endpoint:
// {type: "text"|"image", text?, image_b64?, meta?}.
type Payload struct {
	Type     string          `json:"type"`
	Text     *string         `json:"text,omitempty"`
	ImageB64 string          `json:"image_b64,omitempty"`
	Meta     json.RawMessage `json:"meta,omitempty"`
}

// NewTextPayload builds a text payload.
func NewTextPayload(text string, meta Metadata) (Payload, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Type: string(KindText), Text: &text, Meta: raw}, nil
}

// NewImagePayload builds an image payload from encoded image bytes.
func NewImagePayload(image []byte, meta Metadata) (Payload, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Type:     string(KindImage),
		ImageB64: base64.StdEncoding.EncodeToString(image),
		Meta:     raw,
	}, nil
}

// Submission is one validated capture event. Exactly one of Text and
// ImageBytes is meaningful, selected by Kind.
type Submission struct {
	Kind       Kind
	Text       string
	ImageBytes []byte
	// ImageB64 keeps the encoded form the image arrived in.
	ImageB64 string
	Meta     Metadata
	// RawMeta is the meta object exactly as received, or nil.
	RawMeta json.RawMessage
}

// Submission validates the payload and converts it. Shape failures are
// ErrorTypeInvalidRequest and undecodable base64 is ErrorTypeInvalidImage.
func (p Payload) Submission() (Submission, error) {
	sub := Submission{Kind: Kind(p.Type)}

	if len(p.Meta) > 0 && !bytes.Equal(bytes.TrimSpace(p.Meta), []byte("null")) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(p.Meta, &fields); err != nil {
			return Submission{}, InvalidRequest("meta must be an object: %v", err)
		}
		sub.Meta = decodeMetadata(fields)
		sub.RawMeta = p.Meta
		if sub.Meta.CapturedAt.IsZero() && sub.Meta.Timestamp > 0 {
			sec := int64(sub.Meta.Timestamp)
			nsec := int64((sub.Meta.Timestamp - float64(sec)) * float64(time.Second))
			sub.Meta.CapturedAt = time.Unix(sec, nsec).UTC()
		}
	}

	switch sub.Kind {
	case KindText:
		if p.Text == nil {
			return Submission{}, InvalidRequest("text payload requires a text field")
		}
		sub.Text = *p.Text
	case KindImage:
		if p.ImageB64 == "" {
			return Submission{}, InvalidRequest("no image data")
		}
		encoded, err := stripDataURL(p.ImageB64)
		if err != nil {
			return Submission{}, InvalidImage("bad image: %v", err)
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return Submission{}, InvalidImage("bad image: %v", err)
		}
		sub.ImageBytes = data
		sub.ImageB64 = encoded
	case "":
		return Submission{}, InvalidRequest("invalid payload: missing type")
	default:
		return Submission{}, InvalidRequest("unknown type %q", p.Type)
	}

	return sub, nil
}

// stripDataURL accepts either bare base64 or a data URL of the form
// data:image/png;base64,<data> and returns the base64 part.
func stripDataURL(s string) (string, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return s, nil
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return "", errors.New("invalid data URL: missing comma separator")
	}
	parts := strings.Split(meta, ";")
	if !strings.HasPrefix(parts[0], "image/") {
		return "", errors.New("unsupported media type: " + parts[0])
	}
	for _, part := range parts[1:] {
		if part == "base64" {
			return data, nil
		}
	}
	return "", errors.New("data URL must be base64 encoded")
}

// decodeMetadata reads the known meta fields one at a time. A field with the
// wrong type is left zero without affecting the others; every field stays
// available verbatim in RawMeta.
func decodeMetadata(fields map[string]json.RawMessage) Metadata {
	var m Metadata
	if raw, ok := fields["source"]; ok {
		var src string
		if json.Unmarshal(raw, &src) == nil {
			m.Source = Source(src)
		}
	}
	if raw, ok := fields["captured_at"]; ok {
		var at time.Time
		if json.Unmarshal(raw, &at) == nil {
			m.CapturedAt = at
		}
	}
	if raw, ok := fields["timestamp"]; ok {
		var ts float64
		if json.Unmarshal(raw, &ts) == nil {
			m.Timestamp = ts
		}
	}
	return m
}
