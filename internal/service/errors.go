package service

import "errors"

var (
	// ErrNotFound is returned when a share or entity is absent or soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrParams is returned for malformed or unsupported requests.
	ErrParams = errors.New("invalid params")
	// ErrQuotaExceeded is returned when a duplication would exceed the storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrDuplicationNotAllowed is returned when a share forbids duplication.
	ErrDuplicationNotAllowed = errors.New("duplication not allowed")
	// ErrRateLimited is returned when too many mutating share operations
	// hit the same entity within the window.
	ErrRateLimited = errors.New("rate limited")
)
