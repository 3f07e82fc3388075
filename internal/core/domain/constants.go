package domain

import "errors"

var (
	ErrExhausted         = errors.New("all tiers exhausted")
	ErrMalformedURL      = errors.New("malformed target url")
	ErrMissingURL        = errors.New("missing target url")
	ErrCodecUnavailable  = errors.New("codec backend unavailable")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrProviderNotFound  = errors.New("provider not found")
	ErrEmptyPlan         = errors.New("plan has no tiers")
)
