package restore

import "math"

const (
	// NoCheckpoint marks a Restorer constructed without a prior
	// checkpoint: nothing durable survived from a previous run.
	NoCheckpoint int64 = -1

	// OffsetUnbounded disables offset_limit: restoration proceeds to the
	// log end offset with no externally-imposed cap.
	OffsetUnbounded int64 = math.MaxInt64
)
