package service

import "errors"

var (
	ErrInvalidThreshold    = errors.New("invite threshold must not be negative")
	ErrStoreUnavailable    = errors.New("invite store unavailable")
	ErrCounterUpdateFailed = errors.New("invite counter update failed after retries")
	ErrInvalidEvent        = errors.New("invalid event")
)
