package restore

import (
	"context"
	"fmt"
)

// applyPartition implements spec §4.2.5 for one partition and the batch of
// records the last poll returned for it (possibly empty).
func (r *ChangelogReader) applyPartition(ctx context.Context, p Partition, records []Record) error {
	restorer := r.registered[p]
	endOffset := r.endOffsets[p]

	newOffset, applied, err := r.resolveOffset(ctx, p, restorer, endOffset, records)
	if err != nil {
		return err
	}

	if err := restorer.SetRestoredOffset(newOffset); err != nil {
		return err
	}
	r.metrics.observeRestored(p, newOffset, applied)

	if restorer.HasCompleted(newOffset, endOffset) {
		if restorer.RestoredOffset() > endOffset+1 {
			return fmt.Errorf("%w: %s restored=%d end=%d", ErrOffsetOvershoot, p, restorer.RestoredOffset(), endOffset)
		}
		delete(r.needsRestoring, p)
	}
	return nil
}

// resolveOffset walks records in broker order, applying non-null-key
// records to the sink and stopping the moment completion is reached. If
// the batch exhausts first, it falls back to the consumer's current
// position for p (spec §4.2.5 steps 1-2).
func (r *ChangelogReader) resolveOffset(ctx context.Context, p Partition, restorer *Restorer, endOffset int64, records []Record) (int64, int64, error) {
	var applied int64
	for _, rec := range records {
		if restorer.HasCompleted(rec.Offset, endOffset) {
			return rec.Offset, applied, nil
		}
		if rec.Key != nil {
			if err := restorer.Restore(rec.Key, rec.Value); err != nil {
				return 0, applied, err
			}
			applied++
		}
	}
	pos, err := r.consumer.Position(ctx, p)
	return pos, applied, err
}
