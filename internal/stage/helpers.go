package stage

import (
	"encoding/json"

	"organ/internal/media"
	"organ/internal/services"
)

// ParseResult decodes a job's stored recognition result. On failure it
// returns a services.ErrValidation suitable for stage Execute methods.
func ParseResult(raw string) (*media.RecognitionResult, error) {
	if raw == "" {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "parse result",
			"recognition result missing; rerun recognition", nil)
	}
	var result media.RecognitionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "parse result",
			"recognition result corrupt; rerun recognition", err)
	}
	return &result, nil
}

// EncodeResult serializes a recognition result for persistence on a job.
func EncodeResult(result *media.RecognitionResult) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "stage", "encode result", "serialize recognition result", err)
	}
	return string(data), nil
}
