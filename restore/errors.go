package restore

import (
	"errors"
	"fmt"
)

// Sentinel fatal errors. Structural violations surface immediately to the
// caller and are never retried (spec §7 kind 3).
var (
	// ErrNonEmptySubscription is returned when the consumer has a
	// topic-pattern subscription at the start of the initialize phase.
	// The reader only ever assigns partitions explicitly; a subscription
	// means something else shares this consumer, which is a programmer
	// error.
	ErrNonEmptySubscription = errors.New("restore: log consumer has a non-empty topic subscription")

	// ErrOffsetOvershoot is returned when a partition's restored_offset
	// is found to exceed end_offset+1 after completion: the log end grew
	// beyond the snapshot taken at initialization.
	ErrOffsetOvershoot = errors.New("restore: restored offset overshot end offset")

	// ErrNoPartitionsRegistered is returned by Restore when it is called
	// with nothing registered and nothing in flight; callers usually
	// treat this as "nothing to do" rather than an error, but library
	// code that expects at least one partition can check for it.
	ErrNoPartitionsRegistered = errors.New("restore: no partitions registered")
)

// TimeoutError wraps an underlying error to mark it retryable: the current
// pass is abandoned, state is left unchanged, and the caller retries on its
// next call (spec §7 kind 1).
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("restore: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is (or wraps) a *TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
