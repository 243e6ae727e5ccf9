package ingest

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/audio/resampler"
)

var formatF32 = resampler.Format{
	Channels:   1,
	SampleRate: resampler.CanonicalSampleRate,
	PCMFormat:  audio.PCMFormatFloat32LE,
}

func f32Block(samples []float32) []byte {
	res := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(res[i*4:], math.Float32bits(v))
	}
	return res
}

func ramp(offset, n int) []float32 {
	res := make([]float32, n)
	for i := range res {
		res[i] = float32(offset+i) / 100000
	}
	return res
}

type chunkCollector struct {
	locker sync.Mutex
	chunks []Chunk
}

func (c *chunkCollector) HandleChunk(_ context.Context, chunk Chunk) {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.chunks = append(c.chunks, chunk)
}

func (c *chunkCollector) Chunks() []Chunk {
	c.locker.Lock()
	defer c.locker.Unlock()
	return append([]Chunk{}, c.chunks...)
}

func newStartedPipeline(t *testing.T, cadence time.Duration, collector *chunkCollector) *Pipeline {
	p := NewPipeline(Config{
		Cadence: cadence,
		OnChunk: collector.HandleChunk,
	})
	p.Bind(formatF32)
	require.NoError(t, p.Start(context.Background()))
	return p
}

func TestCumulativeChunks(t *testing.T) {
	ctx := context.Background()
	collector := &chunkCollector{}
	p := newStartedPipeline(t, 100*time.Millisecond, collector) // 1600 samples

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Ingest(ctx, f32Block(ramp(i*1000, 1000))))
	}

	chunks := collector.Chunks()
	require.Len(t, chunks, 2)
	first, second := chunks[0], chunks[1]
	require.Equal(t, uint64(0), first.Index)
	require.Equal(t, uint64(1), second.Index)
	require.Len(t, first.Samples, 2000)
	require.Len(t, second.Samples, 4000)
	require.Equal(t, first.Samples, second.Samples[:len(first.Samples)])
	require.Equal(t, ramp(0, 4000), second.Samples)
	require.Equal(t, 250*time.Millisecond, second.Duration)
	require.True(t, second.EmittedAt.After(first.EmittedAt))

	all := p.Stop(ctx)
	require.Equal(t, ramp(0, 5000), all)

	// chunks are copies
	all[0] = 42
	require.NotEqual(t, float32(42), second.Samples[0])
}

func TestChunkPerCadenceBoundary(t *testing.T) {
	ctx := context.Background()
	collector := &chunkCollector{}
	p := newStartedPipeline(t, 100*time.Millisecond, collector)

	// one large block crossing several boundaries yields one chunk
	require.NoError(t, p.Ingest(ctx, f32Block(ramp(0, 5000))))
	require.Len(t, collector.Chunks(), 1)

	require.NoError(t, p.Ingest(ctx, f32Block(ramp(5000, 1599))))
	require.Len(t, collector.Chunks(), 1)
	require.NoError(t, p.Ingest(ctx, f32Block(ramp(6599, 1))))
	require.Len(t, collector.Chunks(), 2)

	var prevLen int
	for _, chunk := range collector.Chunks() {
		require.Greater(t, len(chunk.Samples), prevLen)
		prevLen = len(chunk.Samples)
	}
}

func TestStopWithoutChunk(t *testing.T) {
	ctx := context.Background()
	collector := &chunkCollector{}
	p := newStartedPipeline(t, time.Second, collector)

	input := ramp(0, 800)
	require.NoError(t, p.Ingest(ctx, f32Block(input[:300])))
	require.NoError(t, p.Ingest(ctx, f32Block(input[300:])))
	require.Equal(t, 800, p.Len())

	require.Equal(t, input, p.Stop(ctx))
	require.Empty(t, collector.Chunks())
	require.False(t, p.IsStarted())
}

func TestStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newStartedPipeline(t, time.Second, &chunkCollector{})

	result := p.Stop(ctx)
	require.NotNil(t, result)
	require.Empty(t, result)

	result = p.Stop(ctx)
	require.NotNil(t, result)
	require.Empty(t, result)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	collector := &chunkCollector{}
	p := newStartedPipeline(t, 100*time.Millisecond, collector)

	require.NoError(t, p.Ingest(ctx, f32Block(ramp(0, 1500))))
	p.Clear(ctx)
	require.True(t, p.IsStarted())
	require.Zero(t, p.Len())

	// the cadence counts from the clear
	require.NoError(t, p.Ingest(ctx, f32Block(ramp(0, 1500))))
	require.Empty(t, collector.Chunks())
	require.NoError(t, p.Ingest(ctx, f32Block(ramp(1500, 100))))
	require.Len(t, collector.Chunks(), 1)
	require.Equal(t, ramp(0, 1600), collector.Chunks()[0].Samples)
}

func TestRestartDiscards(t *testing.T) {
	ctx := context.Background()
	p := newStartedPipeline(t, time.Second, &chunkCollector{})
	require.NoError(t, p.Ingest(ctx, f32Block(ramp(0, 100))))
	require.NoError(t, p.Start(ctx))
	require.Zero(t, p.Len())
}

func TestErrors(t *testing.T) {
	ctx := context.Background()

	p := NewPipeline(Config{})
	require.Equal(t, DefaultCadence, p.Config().Cadence)

	err := p.Start(ctx)
	require.True(t, errors.Is(err, ErrDeviceUnavailable), err)

	err = p.Ingest(ctx, f32Block(ramp(0, 10)))
	require.True(t, errors.Is(err, ErrNotStarted), err)

	p.Bind(resampler.Format{SampleRate: 44100, PCMFormat: audio.PCMFormatS16LE})
	err = p.Start(ctx)
	require.True(t, errors.Is(err, ErrFormatNegotiationFailed), err)

	p.Bind(formatF32)
	require.NoError(t, p.Start(ctx))
	require.Error(t, p.Ingest(ctx, []byte{1, 2, 3}))

	p.Stop(ctx)
	err = p.Ingest(ctx, f32Block(ramp(0, 10)))
	require.True(t, errors.Is(err, ErrNotStarted), err)
}

func TestNativeFormatConversion(t *testing.T) {
	ctx := context.Background()
	p := NewPipeline(Config{})
	p.Bind(resampler.Format{
		Channels:   2,
		SampleRate: 48000,
		PCMFormat:  audio.PCMFormatS16LE,
	})
	require.NoError(t, p.Start(ctx))

	block := make([]byte, 4800*4) // 100ms of stereo s16
	for i := 0; i < 4800; i++ {
		binary.LittleEndian.PutUint16(block[i*4:], uint16(16384))
		binary.LittleEndian.PutUint16(block[i*4+2:], uint16(0))
	}
	require.NoError(t, p.Ingest(ctx, block))

	result := p.Stop(ctx)
	require.Len(t, result, 1600)
	for _, v := range result {
		assert.InDelta(t, 0.25, v, 1e-3)
	}
}

func TestConcurrentIngestAndStop(t *testing.T) {
	ctx := context.Background()
	collector := &chunkCollector{}
	p := newStartedPipeline(t, 10*time.Millisecond, collector)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block := f32Block(ramp(0, 100))
		for i := 0; i < 1000; i++ {
			if err := p.Ingest(ctx, block); err != nil {
				assert.ErrorIs(t, err, ErrNotStarted)
				return
			}
		}
	}()

	var snapshots [][]float32
	for i := 0; i < 10; i++ {
		snapshots = append(snapshots, p.Stop(ctx))
		require.NoError(t, p.Start(ctx))
	}
	wg.Wait()
	for _, snapshot := range snapshots {
		require.Zero(t, len(snapshot)%100, "a block was torn")
	}

	var prev time.Time
	for _, chunk := range collector.Chunks() {
		require.True(t, chunk.EmittedAt.After(prev))
		prev = chunk.EmittedAt
	}
}

func TestClearResetsResamplingPhase(t *testing.T) {
	ctx := context.Background()
	format := formatF32
	format.SampleRate = 3 * resampler.CanonicalSampleRate

	newPipeline := func() *Pipeline {
		p := NewPipeline(Config{})
		p.Bind(format)
		require.NoError(t, p.Start(ctx))
		return p
	}

	input := ramp(1, 3)
	fresh := newPipeline()
	require.NoError(t, fresh.Ingest(ctx, f32Block(input)))
	expected := fresh.Stop(ctx)
	require.Equal(t, input[:1], expected)

	p := newPipeline()
	require.NoError(t, p.Ingest(ctx, f32Block(ramp(100, 1))))
	p.Clear(ctx)
	require.NoError(t, p.Ingest(ctx, f32Block(input)))
	require.Equal(t, expected, p.Stop(ctx))
}
