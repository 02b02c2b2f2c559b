package restore

import (
	"context"
	"time"
)

// LogConsumer is the thin contract the reader depends on: assignment,
// seeking, polling, and the two metadata calls it needs during
// initialization. It is satisfied by kgoLogConsumer (franz-go backed) in
// production and by a hand-rolled fake in tests.
//
// All methods may fail with a *TimeoutError, which the reader treats as
// retryable; any other error is fatal to the calling Restore pass.
type LogConsumer interface {
	// Subscription returns the consumer's current topic-pattern
	// subscription. The reader requires this to be empty at all times;
	// a non-empty subscription is a programmer error (spec §4.2.3).
	Subscription(ctx context.Context) ([]string, error)

	// Assign adds partitions to the consumer's current assignment. It
	// never replaces the existing assignment; pass nil to clear it.
	Assign(ctx context.Context, partitions []Partition) error

	// Assignment returns the consumer's current assignment.
	Assignment(ctx context.Context) ([]Partition, error)

	// Seek positions the consumer at offset for partition p.
	Seek(ctx context.Context, p Partition, offset int64) error

	// SeekToBeginning positions the consumer at the earliest available
	// offset for each of partitions.
	SeekToBeginning(ctx context.Context, partitions []Partition) error

	// Position returns the offset of the next record the consumer would
	// return for p.
	Position(ctx context.Context, p Partition) (int64, error)

	// Poll performs one bounded fetch across the current assignment.
	Poll(ctx context.Context, timeout time.Duration) (map[Partition][]Record, error)

	// EndOffsets fetches the exclusive upper bound of available records
	// for each of partitions, in one batch.
	EndOffsets(ctx context.Context, partitions []Partition) (map[Partition]int64, error)

	// ListTopics refreshes and returns cluster topic/partition metadata.
	ListTopics(ctx context.Context) (map[string]TopicMetadata, error)
}
