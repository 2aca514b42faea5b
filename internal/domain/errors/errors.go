package errors

import "errors"

// Sentinel errors for handlers to map to HTTP status.
var (
	ErrInvalidAPIKey         = errors.New("invalid or revoked API key")
	ErrUserExists            = errors.New("user already exists")
	ErrUserNotFound          = errors.New("user not found")
	ErrKeyNotFound           = errors.New("API key not found")
	ErrMemoryNotFound        = errors.New("memory not found")
	ErrMissingContent        = errors.New("memory content is required")
	ErrMissingSnapshotFields = errors.New("projectPath, summary and context are required")
)
