package dirpack

// ProgressEvent represents a progress update during archive creation.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the archive pathname of the entry being processed, if applicable.
	Path string

	// BytesDone is the number of file body bytes written so far.
	BytesDone uint64

	// EntriesDone is the number of entries written so far.
	EntriesDone int

	// Skipped is the number of entries skipped so far.
	Skipped int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEntry indicates an entry was written to the archive.
	StageEntry ProgressStage = iota

	// StageSkipped indicates an entry was skipped after a failure.
	StageSkipped

	// StageFinalizing indicates the walk finished and the archive is being closed.
	StageFinalizing
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEntry:
		return "entry"
	case StageSkipped:
		return "skipped"
	case StageFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. It is called synchronously from
// the walking goroutine, so it should return quickly.
type ProgressFunc func(ProgressEvent)
