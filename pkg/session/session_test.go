package session

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/audio/resampler"
	"github.com/xaionaro-go/speechseg/pkg/audiofile"
	"github.com/xaionaro-go/speechseg/pkg/ingest"
	"github.com/xaionaro-go/speechseg/pkg/vad"
	_ "github.com/xaionaro-go/speechseg/pkg/vad/implementations/energy"
	"github.com/xaionaro-go/speechseg/pkg/vad/vadtest"
)

func newSession(t *testing.T, cadence time.Duration) *Session {
	params, err := vad.EnergyPreset(vad.PresetDefault)
	require.NoError(t, err)
	detector, err := vad.New(resampler.CanonicalSampleRate, params)
	require.NoError(t, err)
	s, err := New(detector, Config{Cadence: cadence})
	require.NoError(t, err)
	return s
}

func s16Block(samples []float32) []byte {
	res := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(res[i*2:], uint16(int16(math.Round(float64(v)*32767))))
	}
	return res
}

func utterance() []float32 {
	return vadtest.Concat(
		vadtest.Silence(600*time.Millisecond),
		vadtest.Tone(1200*time.Millisecond, 440, 0.2),
		vadtest.Silence(600*time.Millisecond),
	)
}

func TestDetectFile(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, 0)

	signal := utterance()
	result, err := s.DetectFile(ctx, audiofile.Block{
		Format: resampler.Format{
			Channels:   1,
			SampleRate: resampler.CanonicalSampleRate,
			PCMFormat:  audio.PCMFormatS16LE,
		},
		Data: s16Block(signal),
	})
	require.NoError(t, err)
	require.Len(t, result.Samples, len(signal))
	require.Len(t, result.Segments, 1)
	require.InDelta(t, 0.6, result.Segments[0].StartTime.Seconds(), 0.03)
	require.InDelta(t, 1.2, result.Segments[0].Duration().Seconds(), 0.03)
	require.False(t, s.Pipeline.IsStarted())
}

func TestDetectFileInvalidFormat(t *testing.T) {
	s := newSession(t, 0)
	_, err := s.DetectFile(context.Background(), audiofile.Block{})
	require.ErrorIs(t, err, ingest.ErrFormatNegotiationFailed)
}

func TestNewRejectsSampleRate(t *testing.T) {
	params, err := vad.EnergyPreset(vad.PresetDefault)
	require.NoError(t, err)
	detector, err := vad.New(8000, params)
	require.NoError(t, err)
	_, err = New(detector, Config{})
	require.Error(t, err)

	_, err = New(nil, Config{})
	require.Error(t, err)
}

type fakeRecorder struct {
	data      []byte
	blockSize int
	doneCh    chan struct{}
}

var _ audio.RecorderPCM = (*fakeRecorder)(nil)

func (r *fakeRecorder) Close() error               { return nil }
func (r *fakeRecorder) Ping(context.Context) error { return nil }

func (r *fakeRecorder) CheckFormat(
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
) error {
	if format != audio.PCMFormatS16LE || channels != 1 {
		return errors.New("unsupported format")
	}
	return nil
}

func (r *fakeRecorder) RecordPCM(
	ctx context.Context,
	sampleRate audio.SampleRate,
	channels audio.Channel,
	format audio.PCMFormat,
	writer io.Writer,
) (audio.RecordStream, error) {
	if format != audio.PCMFormatS16LE || channels != 1 {
		return nil, errors.New("unsupported format")
	}
	stream := &fakeStream{stopCh: make(chan struct{})}
	stream.wg.Add(1)
	go func() {
		defer stream.wg.Done()
		defer close(r.doneCh)
		for pos := 0; pos < len(r.data); pos += r.blockSize {
			select {
			case <-stream.stopCh:
				return
			default:
			}
			if _, err := writer.Write(r.data[pos:min(pos+r.blockSize, len(r.data))]); err != nil {
				return
			}
		}
	}()
	return stream, nil
}

type fakeStream struct {
	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return nil
}

func TestLive(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, 500*time.Millisecond)

	signal := utterance()
	recorder := &fakeRecorder{
		data:      s16Block(signal),
		blockSize: 333, // not frame-aligned
		doneCh:    make(chan struct{}),
	}
	format := resampler.Format{
		Channels:   1,
		SampleRate: resampler.CanonicalSampleRate,
		PCMFormat:  audio.PCMFormatS16LE,
	}

	var (
		previewsLocker sync.Mutex
		previews       []Preview
	)
	require.NoError(t, s.StartLive(ctx, recorder, format, func(ctx context.Context, preview Preview) {
		previewsLocker.Lock()
		defer previewsLocker.Unlock()
		previews = append(previews, preview)
	}))
	require.True(t, s.IsLive())
	require.Error(t, s.StartLive(ctx, recorder, format, nil))
	_, err := s.DetectFile(ctx, audiofile.Block{})
	require.Error(t, err)

	<-recorder.doneCh
	require.Eventually(t, func() bool {
		previewsLocker.Lock()
		defer previewsLocker.Unlock()
		return len(previews) > 0
	}, 5*time.Second, time.Millisecond)

	result, err := s.StopLive(ctx)
	require.NoError(t, err)
	require.False(t, s.IsLive())
	require.Len(t, result.Samples, len(signal))
	require.Len(t, result.Segments, 1)
	require.InDelta(t, 0.6, result.Segments[0].StartTime.Seconds(), 0.03)

	previewsLocker.Lock()
	defer previewsLocker.Unlock()
	var prevLen int
	for _, preview := range previews {
		require.Greater(t, len(preview.Chunk.Samples), prevLen)
		prevLen = len(preview.Chunk.Samples)
		require.Equal(t, result.Samples[:prevLen], preview.Chunk.Samples)
	}

	_, err = s.StopLive(ctx)
	require.Error(t, err)
}

func TestLiveDeviceUnavailable(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, 0)
	format := resampler.Format{
		Channels:   1,
		SampleRate: resampler.CanonicalSampleRate,
		PCMFormat:  audio.PCMFormatS16LE,
	}

	err := s.StartLive(ctx, audio.RecorderPCMDummy{}, format, nil)
	require.ErrorIs(t, err, ingest.ErrDeviceUnavailable)
	require.False(t, s.IsLive())

	stereo := format
	stereo.Channels = 2
	err = s.StartLive(ctx, &fakeRecorder{doneCh: make(chan struct{})}, stereo, nil)
	require.ErrorIs(t, err, ingest.ErrFormatNegotiationFailed)
	require.False(t, s.IsLive())
	require.False(t, s.Pipeline.IsStarted())
}
