package stage

import (
	"errors"
	"testing"

	"organ/internal/media"
	"organ/internal/services"
)

func TestParseResult_Valid(t *testing.T) {
	raw := `{"file":{"Name":"a.mkv"},"info":{"title":"Title","year":2020},"confidence":"high"}`
	result, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Info == nil || result.Info.Title != "Title" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Confidence != media.ConfidenceHigh {
		t.Fatalf("unexpected confidence: %q", result.Confidence)
	}
}

func TestParseResult_Empty(t *testing.T) {
	_, err := ParseResult("")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty input, got %v", err)
	}
}

func TestParseResult_Invalid(t *testing.T) {
	_, err := ParseResult("{invalid json")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for invalid JSON, got %v", err)
	}
}

func TestEncodeResultRoundTrip(t *testing.T) {
	original := &media.RecognitionResult{
		Info:       &media.Info{Title: "Title", Year: 2020},
		Confidence: media.ConfidenceMedium,
	}
	raw, err := EncodeResult(original)
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	decoded, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if decoded.Info.Title != "Title" || decoded.Confidence != media.ConfidenceMedium {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}
