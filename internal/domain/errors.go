package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProcessorNotFound   = errors.New("no processor registered for job name")
	ErrInvalidRegistration = errors.New("invalid processor registration")
	ErrQueueNotFound       = errors.New("queue not found")
	ErrInvalidCleanStatus  = errors.New("clean accepts only completed or failed status")
	ErrJobTimeout          = errors.New("job timed out")
	ErrInvalidJob          = errors.New("job type and name are required")
)

// NoRetry marks err as permanent: the job fails without using its remaining attempts.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }
