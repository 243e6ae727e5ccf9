package main

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/speechseg/pkg/audio"
)

// countingRecorder counts the bytes the backend pushes, to tell a silent
// microphone from a stalled capture.
type countingRecorder struct {
	audio.RecorderPCM
	counter atomic.Pointer[datacounter.WriterCounter]
}

func (r *countingRecorder) RecordPCM(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	writer io.Writer,
) (audio.RecordStream, error) {
	counter := datacounter.NewWriterCounter(writer)
	r.counter.Store(counter)
	return r.RecorderPCM.RecordPCM(ctx, sampleRate, channels, format, counter)
}

func (r *countingRecorder) Count() uint64 {
	counter := r.counter.Load()
	if counter == nil {
		return 0
	}
	return counter.Count()
}
