package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"
)

const (
	DefaultStreamBufferSize = 1 << 20
	drainBlockSize          = 1 << 16
)

// StreamWriter adapts a Pipeline to push-style capture backends, which
// write native PCM into an io.Writer from their own (often real-time)
// goroutine. Write only copies into a ring buffer; a separate goroutine
// drains it into Ingest in frame-aligned blocks. Whatever does not fit
// into the ring buffer is dropped in whole frames and counted; Write never
// blocks.
type StreamWriter struct {
	pipeline  *Pipeline
	frameSize int

	locker       sync.Mutex
	buffer       *circular.Buffer
	closed       bool
	progressedCh chan struct{}

	// skipBytes is how much of the upcoming data is still to be dropped
	// to complete the frame cut by the last overflow.
	skipBytes int

	droppedBytes atomic.Uint64
	ingestErr    error

	cancelFunc context.CancelFunc
	doneCh     chan struct{}
}

var _ io.WriteCloser = (*StreamWriter)(nil)

// NewStreamWriter starts draining into the pipeline. frameSize is the
// size of a native frame (all the channels of one sample).
func NewStreamWriter(
	ctx context.Context,
	pipeline *Pipeline,
	frameSize uint,
	bufferSize uint,
) (*StreamWriter, error) {
	if frameSize == 0 {
		return nil, fmt.Errorf("frame size must be greater than 0")
	}
	if bufferSize == 0 {
		bufferSize = DefaultStreamBufferSize
	}
	if bufferSize < frameSize {
		return nil, fmt.Errorf("buffer size %d is less than the frame size %d", bufferSize, frameSize)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	w := &StreamWriter{
		pipeline:     pipeline,
		frameSize:    int(frameSize),
		buffer:       circular.NewBuffer(int(bufferSize)),
		progressedCh: make(chan struct{}),
		cancelFunc:   cancelFunc,
		doneCh:       make(chan struct{}),
	}
	observability.Go(ctx, func() {
		defer close(w.doneCh)
		err := w.drainLoop(ctx)
		if err != nil {
			w.locker.Lock()
			w.ingestErr = err
			w.locker.Unlock()
		}
	})
	return w, nil
}

// Write accepts as much of p as fits into the ring buffer and drops the
// rest. Dropped ranges always span whole frames of the stream, so the
// data after an overflow stays frame-aligned: if the dropped tail of p is
// not a whole number of frames, the head of the next write is dropped too.
func (w *StreamWriter) Write(p []byte) (int, error) {
	w.locker.Lock()
	defer w.locker.Unlock()
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	if w.ingestErr != nil {
		return 0, w.ingestErr
	}

	data := p
	if skip := min(w.skipBytes, len(data)); skip > 0 {
		data = data[skip:]
		w.skipBytes -= skip
		w.droppedBytes.Add(uint64(skip))
	}

	keep := len(data)
	if space := w.buffer.Space(); keep > space {
		partial := keep % w.frameSize
		if space >= partial {
			keep = partial + (space-partial)/w.frameSize*w.frameSize
		} else {
			keep = 0
			w.skipBytes = w.frameSize - partial
		}
		w.droppedBytes.Add(uint64(len(data) - keep))
	}
	if keep == 0 {
		return len(p), nil
	}

	if _, err := w.buffer.Write(data[:keep]); err != nil {
		return 0, fmt.Errorf("unable to write to the circular buffer: %w", err)
	}

	oldCh := w.progressedCh
	w.progressedCh = make(chan struct{})
	close(oldCh)
	return len(p), nil
}

// DroppedBytes returns the amount of bytes dropped due to the ring
// buffer overflow.
func (w *StreamWriter) DroppedBytes() uint64 {
	return w.droppedBytes.Load()
}

func (w *StreamWriter) drainLoop(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "drainLoop")
	defer func() { logger.Tracef(ctx, "/drainLoop: %v", _err) }()

	buf := make([]byte, drainBlockSize+w.frameSize)
	pending := 0
	for {
		n, closed, waitCh, err := w.read(buf[pending:])
		if err != nil {
			return err
		}
		pending += n

		if aligned := pending - pending%w.frameSize; aligned > 0 {
			if err := w.pipeline.Ingest(ctx, buf[:aligned]); err != nil {
				return fmt.Errorf("unable to ingest %d bytes: %w", aligned, err)
			}
			pending = copy(buf, buf[aligned:pending])
		}

		if n > 0 {
			continue
		}
		if closed {
			if pending > 0 {
				logger.Warnf(ctx, "dropping a trailing partial frame of %d bytes", pending)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCh:
		}
	}
}

func (w *StreamWriter) read(buf []byte) (int, bool, <-chan struct{}, error) {
	w.locker.Lock()
	defer w.locker.Unlock()
	n, err := w.buffer.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, false, nil, fmt.Errorf("unable to read from the circular buffer: %w", err)
	}
	return n, w.closed, w.progressedCh, nil
}

// Close stops accepting writes, waits until the already written data is
// ingested and returns the ingestion error, if any. Dropped data is not
// an error, see DroppedBytes.
func (w *StreamWriter) Close() error {
	w.locker.Lock()
	if !w.closed {
		w.closed = true
		oldCh := w.progressedCh
		w.progressedCh = make(chan struct{})
		close(oldCh)
	}
	w.locker.Unlock()

	<-w.doneCh
	w.cancelFunc()

	w.locker.Lock()
	defer w.locker.Unlock()
	return w.ingestErr
}
