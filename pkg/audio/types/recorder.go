package types

import (
	"context"
	"io"
)

// RecorderPCM is a capture backend. It pushes the captured PCM into the
// writer from its own goroutine until the returned stream is closed.
type RecorderPCM interface {
	io.Closer

	// Ping checks that there is an input device to record from.
	Ping(context.Context) error

	// CheckFormat reports whether the backend can capture in the given
	// native format, without opening a stream.
	CheckFormat(sampleRate SampleRate, channels Channel, format PCMFormat) error

	RecordPCM(
		ctx context.Context,
		sampleRate SampleRate,
		channels Channel,
		format PCMFormat,
		writer io.Writer,
	) (RecordStream, error)
}

// RecordStream is a running capture; Close stops it and returns once the
// backend no longer writes.
type RecordStream interface {
	io.Closer
}
