package api

import "fmt"

// ValidationConfig holds configurable limits for batch validation.
type ValidationConfig struct {
	MaxFragments    int
	MaxFragmentSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxFragments:    256,
		MaxFragmentSize: 1 * 1024 * 1024, // 1MB per fragment
	}
}

// ValidateBatch checks a fragment sequence for validity. It returns an
// *Error describing the first validation failure, or nil if the batch is
// valid. An empty batch is valid: it executes to an empty result without
// any remote call.
func ValidateBatch(fragments []Fragment, cfg ValidationConfig) *Error {
	if cfg.MaxFragments > 0 && len(fragments) > cfg.MaxFragments {
		return NewTransportError(0,
			fmt.Sprintf("batch exceeds maximum of %d fragments", cfg.MaxFragments), nil)
	}

	for i, f := range fragments {
		if len(f) == 0 {
			return NewTransportError(i+1, "fragment is empty", nil)
		}
		if cfg.MaxFragmentSize > 0 && len(f) > cfg.MaxFragmentSize {
			return NewTransportError(i+1,
				fmt.Sprintf("fragment exceeds maximum size of %d bytes", cfg.MaxFragmentSize), nil)
		}
	}

	return nil
}
