package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, directories and authority
// clients return these (optionally wrapped); services translate them into
// domain errors.
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrCanceled     = errors.New("canceled")
)
