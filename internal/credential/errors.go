package credential

import "fmt"

// GenerationError means the entropy source could not supply random bytes.
// It is fatal: there is no fallback to a weaker source.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("credential generation failed: entropy source unavailable: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ExhaustedRetriesError means every generated client ID collided with the
// uniqueness set. With 128-bit IDs this points at a degraded entropy source.
type ExhaustedRetriesError struct {
	Attempts int
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("credential generation failed: client id collided on all %d attempts", e.Attempts)
}
