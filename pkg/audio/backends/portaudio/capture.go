package portaudio

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

// Capture records from the default portaudio input device.
type Capture struct{}

var _ types.RecorderPCM = (*Capture)(nil)

type openFunc func(ctx context.Context, sampleRate types.SampleRate, channels types.Channel) (*captureStream, error)

// openers lists the sample types portaudio can deliver natively.
var openers = map[types.PCMFormat]openFunc{
	types.PCMFormatU8:        openCaptureStream[uint8],
	types.PCMFormatS16LE:     openCaptureStream[int16],
	types.PCMFormatS32LE:     openCaptureStream[int32],
	types.PCMFormatFloat32LE: openCaptureStream[float32],
}

func NewCapture() (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize portaudio: %w", err)
	}
	return &Capture{}, nil
}

func (*Capture) Close() error {
	return portaudio.Terminate()
}

func (*Capture) Ping(
	ctx context.Context,
) error {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("there is no default portaudio input device: %w", err)
	}
	logger.Debugf(ctx, "default portaudio input device: %s (max %d input channels)", info.Name, info.MaxInputChannels)
	if info.MaxInputChannels < 1 {
		return fmt.Errorf("the default input device '%s' has no input channels", info.Name)
	}
	return nil
}

func (*Capture) CheckFormat(
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
) error {
	if sampleRate == 0 {
		return fmt.Errorf("the sample rate is zero")
	}
	if channels == 0 {
		return fmt.Errorf("the channel count is zero")
	}
	if _, ok := openers[format]; !ok {
		return fmt.Errorf("portaudio capture does not support PCM format %s", format)
	}
	return nil
}

func (c *Capture) RecordPCM(
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
	format types.PCMFormat,
	writer io.Writer,
) (_ types.RecordStream, _err error) {
	logger.Tracef(ctx, "RecordPCM(%d, %d, %s)", sampleRate, channels, format)
	defer func() { logger.Tracef(ctx, "/RecordPCM(%d, %d, %s): %v", sampleRate, channels, format, _err) }()

	if err := c.CheckFormat(sampleRate, channels, format); err != nil {
		return nil, err
	}

	s, err := openers[format](ctx, sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("unable to open a portaudio input stream: %w", err)
	}
	if err := s.start(ctx, writer); err != nil {
		_ = s.PortAudioStream.Close()
		return nil, fmt.Errorf("unable to start the portaudio input stream: %w", err)
	}
	return s, nil
}
