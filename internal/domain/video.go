package domain

import "time"

// GeneratedVideo is a gallery record owned by the asset store. Immutable after
// creation except for deletion.
type GeneratedVideo struct {
	ID              string
	Prompt          string
	Title           string
	DurationSeconds int
	Resolution      Resolution
	StorageKey      string
	MIME            string
	Bytes           int64
	CreatedAt       time.Time
}
