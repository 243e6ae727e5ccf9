package pulseaudio

import (
	"context"
	"fmt"
	"io"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/jfreymuth/pulse"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

// Capture records from the default pulse source.
type Capture struct {
	Client *pulse.Client
}

var _ types.RecorderPCM = (*Capture)(nil)

func NewCapture() (*Capture, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("speechseg"))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to the pulse server: %w", err)
	}
	return &Capture{Client: c}, nil
}

func (c *Capture) Close() error {
	c.Client.Close()
	return nil
}

func (c *Capture) Ping(ctx context.Context) error {
	source, err := c.Client.DefaultSource()
	if err != nil {
		return fmt.Errorf("there is no default pulse source: %w", err)
	}
	logger.Debugf(ctx, "default pulse source: %s (%s)", source.Name(), source.ID())
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
	if _, err := channelMap(channels); err != nil {
		return err
	}
	if _, err := sampleFormat(format); err != nil {
		return err
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
	chMap, _ := channelMap(channels)
	pulseFormat, _ := sampleFormat(format)

	stream, err := c.Client.NewRecord(
		formatWriter{Writer: writer, format: pulseFormat},
		pulse.RecordSampleRate(int(sampleRate)),
		pulse.RecordChannels(chMap),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create a pulse record stream: %w", err)
	}

	stream.Start()
	if err := stream.Error(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("the pulse record stream failed to start: %w", err)
	}
	return captureStream{stream}, nil
}

type captureStream struct {
	stream *pulse.RecordStream
}

// Close stops the stream. The pulse client may panic on a connection
// that is already gone; that is reported as an error.
func (s captureStream) Close() (_err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = fmt.Errorf("pulse panicked while closing the record stream: %v", r)
		}
	}()
	s.stream.Stop()
	s.stream.Close()
	if err := s.stream.Error(); err != nil {
		return fmt.Errorf("the pulse record stream ended with an error: %w", err)
	}
	return nil
}
