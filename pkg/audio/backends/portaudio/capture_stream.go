package portaudio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gordonklaus/portaudio"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

const (
	CapturePeriod = time.Millisecond * 100
)

// captureStream reads one period of interleaved frames at a time and
// hands it to the writer, which is expected not to block.
type captureStream struct {
	PortAudioStream *portaudio.Stream
	Buffer          []byte
	Writer          io.Writer
	CancelFunc      context.CancelFunc
	WaitGroup       sync.WaitGroup
	closeOnce       sync.Once
	closeErr        error
}

var _ types.RecordStream = (*captureStream)(nil)

func openCaptureStream[T any](
	ctx context.Context,
	sampleRate types.SampleRate,
	channels types.Channel,
) (*captureStream, error) {
	framesPerBuffer := int(CapturePeriod.Seconds() * float64(sampleRate))

	var sample T
	buf := make([]T, framesPerBuffer*int(channels))
	logger.Debugf(ctx, "opening a portaudio input stream of %T: %d Hz, %d channels, period %s (%d frames)", sample, sampleRate, channels, CapturePeriod, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(int(channels), 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}

	bytesBuf := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(buf))), len(buf)*int(unsafe.Sizeof(sample)))
	return &captureStream{
		PortAudioStream: stream,
		Buffer:          bytesBuf,
	}, nil
}

func (s *captureStream) start(
	ctx context.Context,
	writer io.Writer,
) error {
	s.Writer = writer
	ctx, s.CancelFunc = context.WithCancel(ctx)

	if err := s.PortAudioStream.Start(); err != nil {
		s.CancelFunc()
		return fmt.Errorf("unable to start the stream: %w", err)
	}

	s.WaitGroup.Add(1)
	observability.Go(ctx, func() {
		defer s.WaitGroup.Done()
		defer s.CancelFunc()
		err := s.readerLoop(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Errorf(ctx, "the capture loop ended: %v", err)
		}
	})
	return nil
}

func (s *captureStream) readerLoop(
	ctx context.Context,
) (_err error) {
	logger.Debugf(ctx, "readerLoop")
	defer func() { logger.Debugf(ctx, "/readerLoop: %v", _err) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.PortAudioStream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				logger.Warnf(ctx, "input overflowed, some audio was lost")
			} else {
				return fmt.Errorf("unable to read: %w", err)
			}
		}

		n, err := s.Writer.Write(s.Buffer)
		if err != nil {
			return fmt.Errorf("unable to write the captured block: %w", err)
		}
		if n != len(s.Buffer) {
			return fmt.Errorf("invalid write length: %d != %d", n, len(s.Buffer))
		}
	}
}

func (s *captureStream) Close() error {
	s.closeOnce.Do(func() {
		s.CancelFunc()
		if err := s.PortAudioStream.Abort(); err != nil {
			s.closeErr = fmt.Errorf("unable to abort the stream: %w", err)
		}
		s.WaitGroup.Wait()
		if err := s.PortAudioStream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("unable to close the stream: %w", err)
		}
	})
	return s.closeErr
}
