package domain

import "fmt"

// GenerationStatus enumerates the lifecycle states of one video generation.
type GenerationStatus string

const (
	GenerationIdle       GenerationStatus = "idle"
	GenerationStarting   GenerationStatus = "starting"
	GenerationGenerating GenerationStatus = "generating"
	GenerationReady      GenerationStatus = "ready"
	GenerationFailed     GenerationStatus = "failed"
)

// Resolution enumerates the output resolutions the gateway accepts.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// ParseResolution validates a user-supplied resolution string.
func ParseResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case Resolution720p, Resolution1080p:
		return Resolution(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
}

// AllowedDurations lists the discrete clip lengths, in seconds, a request may ask for.
var AllowedDurations = []int{4, 6, 8}

// ValidDuration reports whether seconds is one of the allowed clip lengths.
func ValidDuration(seconds int) bool {
	for _, d := range AllowedDurations {
		if seconds == d {
			return true
		}
	}
	return false
}

// ReferenceMedia is an optional image the generation should be conditioned on.
type ReferenceMedia struct {
	Data []byte
	MIME string
}

// GenerationRequest carries everything needed to submit one video generation.
// It is consumed at submission time and not retained beyond the parameters cache.
type GenerationRequest struct {
	Prompt          string
	Reference       *ReferenceMedia
	DurationSeconds int
	Resolution      Resolution
}

// Validate checks the request against the input contract.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return ErrInvalidPrompt
	}
	if !ValidDuration(r.DurationSeconds) {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, r.DurationSeconds)
	}
	if _, err := ParseResolution(string(r.Resolution)); err != nil {
		return err
	}
	if r.Reference != nil && len(r.Reference.Data) == 0 {
		return ErrEmptyReferenceMedia
	}
	return nil
}

// GenerationParameters is the side-channel cache of submission fields that the
// terminal upload step needs once the matching operation completes.
type GenerationParameters struct {
	Prompt          string
	DurationSeconds int
	Resolution      Resolution
}

// MediaRef points at a locally materialized playable resource.
type MediaRef struct {
	Path  string
	MIME  string
	Bytes int64
}
