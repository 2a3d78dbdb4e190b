package datastore

import (
	"context"
	"time"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

const (
	// maxRetryAttempts bounds how many times a transient failure is retried.
	maxRetryAttempts = 5
	// initialRetryBackoff is the delay before the first retry.
	initialRetryBackoff = 250 * time.Millisecond
	// maxRetryBackoff caps the exponential backoff delay.
	maxRetryBackoff = 5 * time.Second
)

// RetryOnTransient runs fn, retrying with exponential backoff when it
// fails with a transient error (temporary lock contention). Every other
// error class is returned immediately — integrity and configuration
// failures must never be papered over by retries. The caller is
// responsible for fn being safe to re-run.
func (ds *DataStore) RetryOnTransient(ctx context.Context, operation string, fn func() error) error {
	backoff := initialRetryBackoff

	var err error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		retryable := errors.IsRetryable(err) || isDatabaseLocked(err)
		if !retryable || attempt == maxRetryAttempts {
			return err
		}

		if ds.metrics != nil {
			ds.metrics.RecordTransactionRetry(operation, categorizeError(err))
		}
		getLogger().Warn("Transient failure, retrying",
			"operation", operation,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxRetryBackoff {
				backoff = maxRetryBackoff
			}
		case <-ctx.Done():
			return errors.New(ctx.Err()).
				Component("datastore").
				Category(errors.CategoryCancellation).
				Context("operation", operation).
				Context("attempt", attempt).
				Build()
		}
	}
	return err
}
