package restore

import "context"

// Task is the owner of one or more partitions, as seen by the reader during
// the initialize phase. The reader never holds a long-lived reference to a
// Task: it is handed the current set on every Restore call (spec §4.9,
// "cyclic task ↔ reader relationship").
type Task interface {
	// ReinitializeStateStore drops and recreates the local store for
	// partition p. Called only when a transactional store has no
	// checkpoint: its on-disk state is untrusted and must be rebuilt.
	ReinitializeStateStore(ctx context.Context, p Partition) error

	// ChangelogPartitions lists the partitions this task restores state
	// for.
	ChangelogPartitions() []Partition

	// SourcePartitions lists the partitions this task reads live input
	// from when that input doubles as its changelog (offset_limit case).
	SourcePartitions() []Partition

	// ExactlyOnceEnabled selects the reinit-on-missing-checkpoint branch.
	ExactlyOnceEnabled() bool
}

func taskOwns(t Task, p Partition) bool {
	for _, owned := range t.ChangelogPartitions() {
		if owned == p {
			return true
		}
	}
	for _, owned := range t.SourcePartitions() {
		if owned == p {
			return true
		}
	}
	return false
}

func findOwner(tasks []Task, p Partition) Task {
	for _, t := range tasks {
		if taskOwns(t, p) {
			return t
		}
	}
	return nil
}
