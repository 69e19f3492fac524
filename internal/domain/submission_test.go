package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func decodePayload(t *testing.T, body string) Payload {
	t.Helper()
	var p Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return p
}

func TestPayloadSubmission_Text(t *testing.T) {
	p := decodePayload(t, `{"type":"text","text":"  buy milk \n","meta":{"source":"clipboard","timestamp":1700000000.5}}`)

	sub, err := p.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if sub.Kind != KindText {
		t.Errorf("Kind = %q, want %q", sub.Kind, KindText)
	}
	if sub.Text != "  buy milk \n" {
		t.Errorf("Text = %q, want verbatim input", sub.Text)
	}
	if sub.Meta.Source != SourceClipboard {
		t.Errorf("Source = %q, want clipboard", sub.Meta.Source)
	}
	want := time.Unix(1700000000, 500000000).UTC()
	if !sub.Meta.CapturedAt.Equal(want) {
		t.Errorf("CapturedAt = %v, want %v", sub.Meta.CapturedAt, want)
	}
	if string(sub.RawMeta) != `{"source":"clipboard","timestamp":1700000000.5}` {
		t.Errorf("RawMeta = %s", sub.RawMeta)
	}
}

func TestPayloadSubmission_EmptyTextIsAccepted(t *testing.T) {
	p := decodePayload(t, `{"type":"text","text":""}`)

	sub, err := p.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if sub.Text != "" {
		t.Errorf("Text = %q, want empty", sub.Text)
	}
	if sub.RawMeta != nil {
		t.Errorf("RawMeta = %s, want nil", sub.RawMeta)
	}
}

func TestPayloadSubmission_Image(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G'}
	p := Payload{Type: "image", ImageB64: base64.StdEncoding.EncodeToString(data)}

	sub, err := p.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if string(sub.ImageBytes) != string(data) {
		t.Errorf("ImageBytes = %v, want %v", sub.ImageBytes, data)
	}
	if sub.ImageB64 != p.ImageB64 {
		t.Errorf("ImageB64 not retained")
	}
}

func TestPayloadSubmission_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "missing type", body: `{}`, want: ErrInvalidRequest},
		{name: "unknown type", body: `{"type":"bogus"}`, want: ErrInvalidRequest},
		{name: "text without field", body: `{"type":"text"}`, want: ErrInvalidRequest},
		{name: "image without data", body: `{"type":"image"}`, want: ErrInvalidRequest},
		{name: "image bad base64", body: `{"type":"image","image_b64":"%%%"}`, want: ErrInvalidImage},
		{name: "meta not object", body: `{"type":"text","text":"x","meta":[1,2]}`, want: ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePayload(t, tt.body).Submission()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Submission() error = %v, want %v", err, tt.want)
			}
			var derr *Error
			if !errors.As(err, &derr) {
				t.Fatalf("error is not *Error: %T", err)
			}
			if derr.HTTPStatusCode() != http.StatusBadRequest {
				t.Errorf("HTTPStatusCode() = %d, want 400", derr.HTTPStatusCode())
			}
		})
	}
}

func TestError_IsDistinguishesTypes(t *testing.T) {
	err := InvalidImage("bad image: %s", "truncated")
	if errors.Is(err, ErrInvalidRequest) {
		t.Error("invalid image must not match ErrInvalidRequest")
	}
	if !errors.Is(err, ErrInvalidImage) {
		t.Error("invalid image must match ErrInvalidImage")
	}
	if err.Error() != "bad image: truncated" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNewTextPayloadRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewTextPayload("hello", NewMetadata(SourceClipboard, at))
	if err != nil {
		t.Fatalf("NewTextPayload() error = %v", err)
	}
	sub, err := p.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if sub.Text != "hello" || !sub.Meta.CapturedAt.Equal(at) {
		t.Errorf("unexpected submission %+v", sub)
	}
}

func TestPayloadSubmission_DataURL(t *testing.T) {
	raw := []byte("\x89PNG fake")
	b64 := base64.StdEncoding.EncodeToString(raw)

	sub, err := Payload{Type: "image", ImageB64: "data:image/png;base64," + b64}.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if string(sub.ImageBytes) != string(raw) || sub.ImageB64 != b64 {
		t.Errorf("unexpected submission %+v", sub)
	}

	for _, bad := range []string{"data:image/png;base64" + b64, "data:text/plain;base64," + b64, "data:image/png," + b64} {
		if _, err := (Payload{Type: "image", ImageB64: bad}).Submission(); !errors.Is(err, ErrInvalidImage) {
			t.Errorf("Submission(%.30q) error = %v, want ErrInvalidImage", bad, err)
		}
	}
}

func TestPayloadSubmission_MistypedMetaFieldsDecodeIndependently(t *testing.T) {
	p := decodePayload(t, `{"type":"text","text":"x","meta":{"source":"screenshot","captured_at":123,"timestamp":1700000000}}`)

	sub, err := p.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if sub.Meta.Source != SourceScreenshot {
		t.Errorf("Source = %q, want screenshot", sub.Meta.Source)
	}
	if want := time.Unix(1700000000, 0).UTC(); !sub.Meta.CapturedAt.Equal(want) {
		t.Errorf("CapturedAt = %v, want %v from timestamp", sub.Meta.CapturedAt, want)
	}

	p = decodePayload(t, `{"type":"text","text":"x","meta":{"source":7,"captured_at":"2024-03-09T14:05:07Z"}}`)
	sub, err = p.Submission()
	if err != nil {
		t.Fatalf("Submission() error = %v", err)
	}
	if sub.Meta.Source != "" {
		t.Errorf("Source = %q, want empty", sub.Meta.Source)
	}
	if want := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC); !sub.Meta.CapturedAt.Equal(want) {
		t.Errorf("CapturedAt = %v, want %v", sub.Meta.CapturedAt, want)
	}
	if string(sub.RawMeta) != `{"source":7,"captured_at":"2024-03-09T14:05:07Z"}` {
		t.Errorf("RawMeta = %s", sub.RawMeta)
	}
}
