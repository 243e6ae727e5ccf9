// Package ingest accumulates audio blocks pushed by a capture source into
// a canonical sample buffer, and periodically emits cumulative chunks of
// it for live preview.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/speechseg/pkg/audio/resampler"
)

const (
	DefaultCadence = 2 * time.Second
)

type Config struct {
	// Cadence is the amount of newly accumulated audio which triggers
	// the next chunk. Zero means DefaultCadence.
	Cadence time.Duration

	// OnChunk is optional; without it no chunks are emitted.
	OnChunk ChunkHandler
}

// Pipeline is the sample buffer of one recording. The buffer mutex is held
// only to append or copy samples, never during format conversion or
// chunk handling.
type Pipeline struct {
	config         Config
	cadenceSamples int

	// bufferLocker guards everything below up to convertLocker.
	bufferLocker  sync.Mutex
	format        *resampler.Format
	started       bool
	generation    uint64
	samples       []float32
	lastEmitted   int
	nextIndex     uint64
	lastEmittedAt time.Time

	// convertLocker serializes whole Ingest calls (conversion and chunk
	// delivery), so chunks reach OnChunk in emission order. There is one
	// writer in practice, so it is not contended.
	convertLocker sync.Mutex
	converter     *resampler.Converter

	// converterGeneration is the generation the converter phase belongs to.
	converterGeneration uint64
	scratch             []float32
}

func NewPipeline(cfg Config) *Pipeline {
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultCadence
	}
	cadenceSamples := int(resampler.CanonicalSampleRate.SamplesForDuration(cfg.Cadence))
	if cadenceSamples == 0 {
		cadenceSamples = 1
	}
	return &Pipeline{
		config:         cfg,
		cadenceSamples: cadenceSamples,
	}
}

func (p *Pipeline) Config() Config {
	return p.config
}

// Bind sets the native format of the source which will push blocks. It
// takes effect on the next Start.
func (p *Pipeline) Bind(format resampler.Format) {
	p.bufferLocker.Lock()
	defer p.bufferLocker.Unlock()
	p.format = &format
}

// Start begins a new recording, discarding whatever was buffered before.
func (p *Pipeline) Start(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Start")
	defer func() { logger.Tracef(ctx, "/Start: %v", _err) }()

	p.bufferLocker.Lock()
	format := p.format
	p.bufferLocker.Unlock()
	if format == nil {
		return fmt.Errorf("%w: no audio source is bound", ErrDeviceUnavailable)
	}

	converter, err := resampler.NewConverter(*format, resampler.CanonicalSampleRate)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormatNegotiationFailed, err)
	}
	logger.Debugf(ctx, "converting %#+v into %#+v", *format, resampler.Canonical)

	p.convertLocker.Lock()
	defer p.convertLocker.Unlock()
	p.bufferLocker.Lock()
	defer p.bufferLocker.Unlock()
	p.converter = converter
	p.started = true
	p.generation++
	p.resetLocked()
	return nil
}

func (p *Pipeline) resetLocked() {
	p.samples = p.samples[:0]
	p.lastEmitted = 0
	p.nextIndex = 0
}

// IsStarted reports whether the pipeline accepts blocks.
func (p *Pipeline) IsStarted() bool {
	p.bufferLocker.Lock()
	defer p.bufferLocker.Unlock()
	return p.started
}

// Len returns the amount of canonical samples buffered so far.
func (p *Pipeline) Len() int {
	p.bufferLocker.Lock()
	defer p.bufferLocker.Unlock()
	return len(p.samples)
}

// Ingest converts a native-format block and appends it to the buffer. It
// emits a chunk once at least one cadence of audio accumulated since the
// previous chunk. A block racing with Stop or Clear is discarded.
func (p *Pipeline) Ingest(
	ctx context.Context,
	block []byte,
) error {
	p.convertLocker.Lock()
	defer p.convertLocker.Unlock()

	p.bufferLocker.Lock()
	started, generation := p.started, p.generation
	p.bufferLocker.Unlock()
	if !started {
		return ErrNotStarted
	}
	if p.converterGeneration != generation {
		// a new recording starts with a fresh resampling phase
		p.converter.Reset()
		p.converterGeneration = generation
	}

	converted, err := p.converter.Convert(p.scratch[:0], block)
	if err != nil {
		return fmt.Errorf("unable to convert the block of %d bytes: %w", len(block), err)
	}
	p.scratch = converted

	p.bufferLocker.Lock()
	if !p.started || p.generation != generation {
		p.bufferLocker.Unlock()
		logger.Tracef(ctx, "the pipeline was stopped while converting, dropping %d samples", len(converted))
		return nil
	}
	p.samples = append(p.samples, converted...)

	if p.config.OnChunk == nil || len(p.samples)-p.lastEmitted < p.cadenceSamples {
		p.bufferLocker.Unlock()
		return nil
	}

	chunk := p.newChunkLocked()
	p.bufferLocker.Unlock()

	logger.Tracef(ctx, "emitting chunk #%d of %v", chunk.Index, chunk.Duration)
	p.config.OnChunk(ctx, chunk)
	return nil
}

func (p *Pipeline) newChunkLocked() Chunk {
	now := time.Now()
	if !now.After(p.lastEmittedAt) {
		now = p.lastEmittedAt.Add(time.Nanosecond)
	}
	chunk := Chunk{
		Index:     p.nextIndex,
		Samples:   make([]float32, len(p.samples)),
		Duration:  resampler.CanonicalSampleRate.DurationForSamples(uint64(len(p.samples))),
		EmittedAt: now,
	}
	copy(chunk.Samples, p.samples)
	p.nextIndex++
	p.lastEmitted = len(p.samples)
	p.lastEmittedAt = now
	return chunk
}

// Stop ends the recording and returns a copy of everything buffered;
// the result is empty (not nil) if nothing was recorded. Calling Stop on
// a stopped pipeline returns an empty result.
func (p *Pipeline) Stop(ctx context.Context) []float32 {
	logger.Tracef(ctx, "Stop")
	defer logger.Tracef(ctx, "/Stop")

	p.bufferLocker.Lock()
	defer p.bufferLocker.Unlock()
	result := make([]float32, len(p.samples))
	copy(result, p.samples)
	p.started = false
	p.generation++
	p.resetLocked()
	logger.Debugf(ctx, "stopped with %d samples", len(result))
	return result
}

// Clear discards the buffered samples and restarts the chunk cadence
// without stopping the recording. The next block is converted as the
// start of a new recording.
func (p *Pipeline) Clear(ctx context.Context) {
	logger.Tracef(ctx, "Clear")
	defer logger.Tracef(ctx, "/Clear")

	p.bufferLocker.Lock()
	defer p.bufferLocker.Unlock()
	p.generation++
	p.resetLocked()
}
