package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a collaborator is not configured or could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrProvider indicates an embedding or boundary oracle upstream failure.
	// It aborts segmentation of the current video only.
	ErrProvider = errors.New("provider error")

	// ErrNotAvailable indicates a video has no usable transcript
	ErrNotAvailable = errors.New("transcript not available")

	// ErrRender indicates a chunk could not be materialized
	ErrRender = errors.New("render failed")

	// ErrContractViolation indicates malformed vectors, an empty target or negative durations
	ErrContractViolation = errors.New("contract violation")
)
