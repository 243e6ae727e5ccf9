package ingest

import (
	"context"
	"time"
)

// Chunk is a snapshot of everything recorded since Start. Consecutive
// chunks of one recording are prefix-extensions of each other.
type Chunk struct {
	// Index is 0 for the first chunk after Start.
	Index uint64

	// Samples is a private copy: canonical mono float32 samples.
	Samples []float32

	// Duration is the audio duration covered by Samples.
	Duration time.Duration

	EmittedAt time.Time
}

// ChunkHandler receives the chunks in the order they were emitted. It is
// called synchronously from Ingest, so it must return quickly; hand the
// chunk over to another goroutine (see LatestChunkWorker) for anything
// heavy.
type ChunkHandler func(ctx context.Context, chunk Chunk)
