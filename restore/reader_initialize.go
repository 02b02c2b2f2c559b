package restore

import (
	"context"

	"github.com/go-kit/log/level"
)

// initialize runs the phase described in spec §4.2.3: refresh metadata,
// select the initializable subset of needsInitializing, fetch their end
// offsets in one batch, prune the ones that are already done, and start
// restoration for the rest.
func (r *ChangelogReader) initialize(ctx context.Context, tasks []Task) error {
	sub, err := r.consumer.Subscription(ctx)
	if err != nil {
		return err
	}
	if len(sub) > 0 {
		return ErrNonEmptySubscription
	}

	metaCtx, cancel := context.WithTimeout(ctx, r.cfg.MetadataTimeout)
	defer cancel()
	meta, err := r.consumer.ListTopics(metaCtx)
	if err != nil {
		if IsTimeout(err) {
			level.Debug(r.logger).Log("msg", "metadata refresh timed out, will retry next call", "err", err)
			return nil
		}
		return err
	}
	r.partitionInfo = meta

	initializable := make([]Partition, 0, len(r.needsInitializing))
	for p := range r.needsInitializing {
		if md, ok := meta[p.Topic]; ok && md.has(p.Index) {
			initializable = append(initializable, p)
		}
	}
	if len(initializable) == 0 {
		return nil
	}

	eoCtx, cancel2 := context.WithTimeout(ctx, r.cfg.MetadataTimeout)
	defer cancel2()
	endOffsets, err := r.consumer.EndOffsets(eoCtx, initializable)
	if err != nil {
		if IsTimeout(err) {
			level.Debug(r.logger).Log("msg", "end offset fetch timed out, will retry next call", "err", err)
			return nil
		}
		return err
	}

	survivors := make([]Partition, 0, len(initializable))
	for _, p := range initializable {
		e, ok := endOffsets[p]
		if !ok {
			// Missing from the response: stays in needsInitializing, retried next call.
			continue
		}
		r.endOffsets[p] = e
		restorer := r.registered[p]

		switch {
		case restorer.CheckpointOffset() >= e:
			if err := restorer.SetRestoredOffset(restorer.CheckpointOffset()); err != nil {
				return err
			}
			delete(r.needsInitializing, p)
		case restorer.OffsetLimit() == 0 || e == 0:
			// restored_offset is 0 absent any prior checkpoint, but a
			// Restorer constructed with an existing checkpoint already
			// starts at that offset (NewRestorer), and SetRestoredOffset
			// rejects going backwards from it.
			if err := restorer.SetRestoredOffset(max(restorer.CheckpointOffset(), 0)); err != nil {
				return err
			}
			delete(r.needsInitializing, p)
		default:
			delete(r.needsInitializing, p)
			survivors = append(survivors, p)
		}
	}

	return r.startRestoration(ctx, survivors, tasks)
}

// startRestoration implements spec §4.2.4 for the survivors of prune: union
// them into the consumer's assignment, seek checkpointed partitions
// directly, and defer beginning-of-log partitions to resolve the
// transactional-reinit branch against their owning task.
func (r *ChangelogReader) startRestoration(ctx context.Context, survivors []Partition, tasks []Task) error {
	if len(survivors) == 0 {
		return nil
	}
	if err := r.consumer.Assign(ctx, survivors); err != nil {
		return err
	}

	deferred := make([]Partition, 0, len(survivors))
	for _, p := range survivors {
		restorer := r.registered[p]
		if restorer.CheckpointOffset() == NoCheckpoint {
			deferred = append(deferred, p)
			continue
		}
		if err := r.consumer.Seek(ctx, p, restorer.CheckpointOffset()); err != nil {
			return err
		}
		pos, err := r.consumer.Position(ctx, p)
		if err != nil {
			return err
		}
		if err := restorer.SetStartingOffset(pos); err != nil {
			return err
		}
		r.needsRestoring[p] = struct{}{}
	}

	if len(deferred) == 0 {
		return nil
	}

	if err := r.consumer.SeekToBeginning(ctx, deferred); err != nil {
		return err
	}

	for _, p := range deferred {
		restorer := r.registered[p]
		pos, err := r.consumer.Position(ctx, p)
		if err != nil {
			return err
		}

		owner := findOwner(tasks, p)
		if owner != nil && owner.ExactlyOnceEnabled() {
			if err := owner.ReinitializeStateStore(ctx, p); err != nil {
				return err
			}
			restorer.SetCheckpointOffset(pos)
			r.metrics.observeReinit(p)
			// Re-enters needsInitializing with a real checkpoint now, so
			// the next initialize pass takes the checked-out-checkpoint
			// path above instead of seeking to beginning again.
			r.needsInitializing[p] = struct{}{}
			continue
		}

		if err := restorer.SetStartingOffset(pos); err != nil {
			return err
		}
		r.needsRestoring[p] = struct{}{}
	}

	return nil
}
