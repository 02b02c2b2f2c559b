package restore

import "fmt"

// Sink is the store-side callback a Restorer applies changelog records to.
// Failures are fatal to the owning partition and propagate to the caller of
// Restorer.Restore.
type Sink interface {
	Restore(key, value []byte) error
}

// Restorer holds one changelog partition's restoration parameters, counters,
// and completion predicate. It is created by the owner of the partition and
// registered with a ChangelogReader; the reader and the registering caller
// share it by reference, but only the reader mutates it during a Restore
// call (see ChangelogReader.Restore).
type Restorer struct {
	partition  Partition
	storeName  string
	persistent bool

	checkpointOffset int64
	offsetLimit      int64
	startingOffset   int64
	restoredOffset   int64
	restoredCount    int64

	sink Sink
}

// NewRestorer constructs a Restorer for partition p. checkpoint is
// NoCheckpoint when no prior run left a durable offset. offsetLimit is
// OffsetUnbounded when there is no externally-imposed cap.
func NewRestorer(p Partition, storeName string, persistent bool, checkpoint, offsetLimit int64, sink Sink) *Restorer {
	if offsetLimit < 0 {
		offsetLimit = OffsetUnbounded
	}
	starting := checkpoint
	if starting < 0 {
		starting = 0
	}
	return &Restorer{
		partition:        p,
		storeName:        storeName,
		persistent:       persistent,
		checkpointOffset: checkpoint,
		offsetLimit:      offsetLimit,
		startingOffset:   starting,
		restoredOffset:   starting,
		sink:             sink,
	}
}

func (r *Restorer) Partition() Partition      { return r.partition }
func (r *Restorer) StoreName() string         { return r.storeName }
func (r *Restorer) Persistent() bool          { return r.persistent }
func (r *Restorer) CheckpointOffset() int64   { return r.checkpointOffset }
func (r *Restorer) OffsetLimit() int64        { return r.offsetLimit }
func (r *Restorer) StartingOffset() int64     { return r.startingOffset }
func (r *Restorer) RestoredOffset() int64     { return r.restoredOffset }
func (r *Restorer) RestoredCount() int64      { return r.restoredCount }

// SetCheckpointOffset is only called by the reader during transactional
// reinitialization (spec §4.2.4): the task drops its on-disk state and the
// consumer's post-seek position becomes the new checkpoint.
func (r *Restorer) SetCheckpointOffset(o int64) {
	r.checkpointOffset = o
}

// SetStartingOffset records the offset this run began reading from. Setting
// a value lower than the current one is a programming error.
func (r *Restorer) SetStartingOffset(o int64) error {
	if o < r.startingOffset {
		return fmt.Errorf("restore: %s: starting offset must be monotonic, got %d after %d", r.partition, o, r.startingOffset)
	}
	r.startingOffset = o
	return nil
}

// SetRestoredOffset records the highest offset successfully applied.
// restoredOffset is monotonic non-decreasing for the lifetime of the
// Restorer; setting a lower value is a programming error.
func (r *Restorer) SetRestoredOffset(o int64) error {
	if o < r.restoredOffset {
		return fmt.Errorf("restore: %s: restored offset must be monotonic, got %d after %d", r.partition, o, r.restoredOffset)
	}
	r.restoredOffset = o
	return nil
}

// Restore forwards one record to the sink and increments restoredCount.
// A sink failure is fatal for the partition and is returned wrapped with the
// partition name; errors.Is still matches the sink's own error.
func (r *Restorer) Restore(key, value []byte) error {
	if err := r.sink.Restore(key, value); err != nil {
		return fmt.Errorf("restore: %s: sink failed: %w", r.partition, err)
	}
	r.restoredCount++
	return nil
}

// HasCompleted reports whether currentOffset has reached min(endOffset,
// offsetLimit). Ties favor completion.
func (r *Restorer) HasCompleted(currentOffset, endOffset int64) bool {
	return currentOffset >= min(endOffset, r.offsetLimit)
}
