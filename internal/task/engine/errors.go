package engine

import (
	"errors"
	"fmt"
)

var (
	ErrDisabled    = errors.New("task engine disabled")
	ErrStopped     = errors.New("task engine stopped")
	ErrQueueFull   = errors.New("task engine queue full")
	ErrOverlapSkip = errors.New("task skipped due to overlap policy")
)

// NoRetry marks an error as permanent so the engine does not retry it.
//
//	return engine.NoRetry(fmt.Errorf("unit not found: %w", err))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }
