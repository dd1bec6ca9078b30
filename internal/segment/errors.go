package segment

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three failure kinds of a segmentation request.
var (
	// ErrProviderNotReady is returned when no provider is given or its model
	// has not finished loading. The provider is not called.
	ErrProviderNotReady = errors.New("segment: provider not ready")

	// ErrInvalidInput is returned for empty or malformed rasters. The
	// provider is not called.
	ErrInvalidInput = errors.New("segment: invalid input")

	// ErrSegmentationFailed matches every *FailedError.
	ErrSegmentationFailed = errors.New("segment: segmentation failed")
)

// FailedError reports a provider failure and carries its cause.
type FailedError struct {
	// Provider names the provider when known.
	Provider string

	// Cause is the error raised by the provider.
	Cause error
}

// Error implements the error interface.
func (e *FailedError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("segment [%s]: segmentation failed: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("segment: segmentation failed: %v", e.Cause)
}

// Unwrap returns the provider's error.
func (e *FailedError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrSegmentationFailed) true for any FailedError.
func (e *FailedError) Is(target error) bool {
	return target == ErrSegmentationFailed
}

func invalidInput(cause error) error {
	return fmt.Errorf("%w: %v", ErrInvalidInput, cause)
}
