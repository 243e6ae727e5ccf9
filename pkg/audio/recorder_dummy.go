package audio

import (
	"context"
	"errors"
	"io"
)

var ErrNoRecorder = errors.New("no audio recorder is available")

// RecorderPCMDummy stands in when no capture backend could be initialized.
type RecorderPCMDummy struct{}

var _ RecorderPCM = RecorderPCMDummy{}

func (RecorderPCMDummy) Close() error {
	return nil
}

func (RecorderPCMDummy) Ping(context.Context) error {
	return ErrNoRecorder
}

func (RecorderPCMDummy) CheckFormat(SampleRate, Channel, PCMFormat) error {
	return ErrNoRecorder
}

func (RecorderPCMDummy) RecordPCM(
	context.Context,
	SampleRate,
	Channel,
	PCMFormat,
	io.Writer,
) (RecordStream, error) {
	return nil, ErrNoRecorder
}
