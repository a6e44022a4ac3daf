package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidPrompt       = errors.New("prompt is required")
	ErrInvalidDuration     = errors.New("unsupported duration")
	ErrInvalidResolution   = errors.New("unsupported resolution")
	ErrEmptyReferenceMedia = errors.New("reference media is empty")
	ErrNoActiveGeneration  = errors.New("no active generation")
	ErrControllerClosed    = errors.New("generation controller closed")
)
