// Package vadtest builds synthetic signals and checks the invariants every
// detector family must hold.
package vadtest

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

const SampleRate = audio.SampleRate(16000)

// Silence returns d of digital silence.
func Silence(d time.Duration) []float32 {
	return make([]float32, SampleRate.SamplesForDuration(d))
}

// Tone returns d of a sine wave of the given frequency and RMS.
func Tone(d time.Duration, freq, rms float64) []float32 {
	result := make([]float32, SampleRate.SamplesForDuration(d))
	amplitude := rms * math.Sqrt2
	for i := range result {
		result[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(SampleRate)))
	}
	return result
}

// Noise returns d of uniform white noise of the given peak amplitude.
func Noise(d time.Duration, amplitude float64, seed int64) []float32 {
	r := rand.New(rand.NewSource(seed))
	result := make([]float32, SampleRate.SamplesForDuration(d))
	for i := range result {
		result[i] = float32((r.Float64()*2 - 1) * amplitude)
	}
	return result
}

func Concat(parts ...[]float32) []float32 {
	var total int
	for _, part := range parts {
		total += len(part)
	}
	result := make([]float32, 0, total)
	for _, part := range parts {
		result = append(result, part...)
	}
	return result
}

// RequireWellFormed checks that segments are ordered, do not overlap and
// have positive durations.
func RequireWellFormed(t testing.TB, segments vad.Segments) {
	t.Helper()
	for idx, segment := range segments {
		require.Greater(t, segment.EndTime, segment.StartTime, "segment %d: %s", idx, segment)
		require.Equal(t, segment.EndTime-segment.StartTime, segment.Duration())
		if idx == 0 {
			continue
		}
		prev := segments[idx-1]
		require.Greater(t, segment.StartTime, prev.StartTime, "segments %d and %d are not ordered", idx-1, idx)
		require.GreaterOrEqual(t, segment.StartTime, prev.EndTime, "segments %d and %d overlap", idx-1, idx)
	}
}
