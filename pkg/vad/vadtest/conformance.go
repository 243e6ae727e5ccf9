package vadtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

type ConformanceOptions struct {
	// SkipToneProperties disables the checks which assume a sine burst is
	// recognized as speech; model-based families do not promise that.
	SkipToneProperties bool
}

const (
	toneFreq = 1000
	toneRMS  = 0.3

	// 1200ms is a multiple of every preset window size.
	padding = 1200 * time.Millisecond
)

// RunConformance checks the properties shared by all the detector
// families on every preset of the given family.
func RunConformance(t *testing.T, family vad.Family, opts ConformanceOptions) {
	for _, preset := range vad.Presets() {
		preset := preset
		t.Run(string(preset), func(t *testing.T) {
			params, err := vad.PresetParams(family, preset)
			require.NoError(t, err)
			detector, err := vad.New(SampleRate, params)
			require.NoError(t, err)
			common := params.Common()
			ctx := context.Background()

			t.Run("silence", func(t *testing.T) {
				for _, d := range []time.Duration{0, time.Millisecond, common.WindowSize, 2370 * time.Millisecond} {
					require.Empty(t, detector.DetectSpeech(ctx, Silence(d)), "duration %v", d)
				}
				require.Empty(t, detector.DetectSpeech(ctx, nil))
			})

			t.Run("ordering", func(t *testing.T) {
				signal := Concat(
					Noise(300*time.Millisecond, 0.5, 1),
					Silence(700*time.Millisecond),
					Noise(450*time.Millisecond, 0.3, 2),
					Silence(90*time.Millisecond),
					Noise(800*time.Millisecond, 0.6, 3),
					Silence(1500*time.Millisecond),
					Tone(500*time.Millisecond, 440, 0.2),
				)
				RequireWellFormed(t, detector.DetectSpeech(ctx, signal))
			})

			if opts.SkipToneProperties {
				return
			}

			t.Run("coverage", func(t *testing.T) {
				d := padding
				signal := Concat(Silence(padding), Tone(d, toneFreq, toneRMS), Silence(padding))
				segments := detector.DetectSpeech(ctx, signal)
				RequireWellFormed(t, segments)
				require.Len(t, segments, 1, fmt.Sprint(segments))
				require.InDelta(t, padding.Seconds(), segments[0].StartTime.Seconds(), common.WindowSize.Seconds())
				require.InDelta(t, d.Seconds(), segments[0].Duration().Seconds(), common.WindowSize.Seconds())
			})

			t.Run("gap_bridging", func(t *testing.T) {
				gap := ((common.MinSilenceDuration - 1) / common.WindowSize) * common.WindowSize
				require.Positive(t, gap)
				burst := 600 * time.Millisecond
				signal := Concat(
					Silence(padding),
					Tone(burst, toneFreq, toneRMS),
					Silence(gap),
					Tone(burst, toneFreq, toneRMS),
					Silence(padding),
				)
				segments := detector.DetectSpeech(ctx, signal)
				require.Len(t, segments, 1, fmt.Sprint(segments))
				require.InDelta(t, (2*burst + gap).Seconds(), segments[0].Duration().Seconds(), common.WindowSize.Seconds())
			})

			t.Run("separate_utterances", func(t *testing.T) {
				burst := 600 * time.Millisecond
				signal := Concat(
					Silence(padding),
					Tone(burst, toneFreq, toneRMS),
					Silence(padding),
					Tone(burst, toneFreq, toneRMS),
					Silence(padding),
				)
				segments := detector.DetectSpeech(ctx, signal)
				RequireWellFormed(t, segments)
				require.Len(t, segments, 2, fmt.Sprint(segments))
			})

			t.Run("min_duration_discard", func(t *testing.T) {
				burst := ((common.MinSpeechDuration - 1) / common.WindowSize) * common.WindowSize
				require.Positive(t, burst)
				signal := Concat(Silence(padding), Tone(burst, toneFreq, toneRMS), Silence(padding))
				require.Empty(t, detector.DetectSpeech(ctx, signal))
			})

			t.Run("concurrent_use", func(t *testing.T) {
				signal := Concat(Silence(padding), Tone(padding, toneFreq, toneRMS), Silence(padding))
				expected := detector.DetectSpeech(ctx, signal)

				var wg sync.WaitGroup
				results := make([]vad.Segments, 8)
				for i := range results {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						results[i] = detector.DetectSpeech(ctx, signal)
					}(i)
				}
				wg.Wait()
				for _, result := range results {
					require.Equal(t, expected, result)
				}
			})
		})
	}
}
