package ingest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

// LatestChunkWorker runs a callback on the most recent chunk in its own
// goroutine. Chunks arriving while the callback is busy replace each
// other, only the latest one is processed next. Since chunks are
// cumulative, the latest one contains all the skipped audio.
type LatestChunkWorker struct {
	callback func(ctx context.Context, chunk Chunk)

	locker  sync.Mutex
	pending *Chunk
	wakeCh  chan struct{}

	processed atomic.Uint64
	skipped   atomic.Uint64

	cancelFunc context.CancelFunc
	doneCh     chan struct{}
}

func NewLatestChunkWorker(
	ctx context.Context,
	callback func(ctx context.Context, chunk Chunk),
) *LatestChunkWorker {
	ctx, cancelFunc := context.WithCancel(ctx)
	w := &LatestChunkWorker{
		callback:   callback,
		wakeCh:     make(chan struct{}, 1),
		cancelFunc: cancelFunc,
		doneCh:     make(chan struct{}),
	}
	observability.Go(ctx, func() {
		defer close(w.doneCh)
		w.loop(ctx)
	})
	return w
}

// HandleChunk is a ChunkHandler; it never blocks.
func (w *LatestChunkWorker) HandleChunk(_ context.Context, chunk Chunk) {
	w.locker.Lock()
	if w.pending != nil {
		w.skipped.Add(1)
	}
	w.pending = &chunk
	w.locker.Unlock()

	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

func (w *LatestChunkWorker) loop(ctx context.Context) {
	logger.Tracef(ctx, "loop")
	defer logger.Tracef(ctx, "/loop")
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wakeCh:
		}

		w.locker.Lock()
		chunk := w.pending
		w.pending = nil
		w.locker.Unlock()
		if chunk == nil {
			continue
		}

		logger.Tracef(ctx, "processing chunk #%d", chunk.Index)
		w.callback(ctx, *chunk)
		w.processed.Add(1)
	}
}

// Processed returns the amount of chunks passed to the callback.
func (w *LatestChunkWorker) Processed() uint64 {
	return w.processed.Load()
}

// Skipped returns the amount of chunks replaced by a newer one before
// they were processed.
func (w *LatestChunkWorker) Skipped() uint64 {
	return w.skipped.Load()
}

// Close stops the worker and waits for the running callback to return.
// A pending chunk is not processed.
func (w *LatestChunkWorker) Close() error {
	w.cancelFunc()
	<-w.doneCh
	return nil
}
