// Package adaptive implements a detector which follows the background
// noise level: the threshold is a multiple of a running noise floor
// estimate, and the energy score is blended with a zero-crossing-rate
// score to tell speech from stationary broadband noise.
package adaptive

import (
	"context"
	"fmt"
	"math"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

const (
	// Typical zero-crossing rate of speech in crossings per sample.
	speechZCR = 0.1

	// At and above this rate a window is considered noise-like.
	noiseZCR = 0.2
)

type VAD struct {
	ParamsValue     vad.AdaptiveParams
	SampleRateValue audio.SampleRate

	windowSamples int
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	sampleRate audio.SampleRate,
	params vad.AdaptiveParams,
) (*VAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	windowSamples, err := params.WindowSamples(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("unable to calculate the window size: %w", err)
	}
	return &VAD{
		ParamsValue:     params,
		SampleRateValue: sampleRate,
		windowSamples:   windowSamples,
	}, nil
}

func (v *VAD) Params() vad.Params {
	return v.ParamsValue
}

func (v *VAD) SampleRate() audio.SampleRate {
	return v.SampleRateValue
}

// ZCRScore maps a zero-crossing rate to [0, 1]: 1 at the typical speech
// rate, falling linearly to 0 at silence (no crossings) and at noiseZCR.
func ZCRScore(zcr float64) float64 {
	switch {
	case zcr <= 0 || zcr >= noiseZCR:
		return 0
	case zcr <= speechZCR:
		return zcr / speechZCR
	default:
		return (noiseZCR - zcr) / (noiseZCR - speechZCR)
	}
}

// noiseFloor is the per-run state of the noise floor estimation.
type noiseFloor struct {
	params      vad.AdaptiveParams
	value       float64
	initialized bool
}

func (f *noiseFloor) threshold() float64 {
	return f.value * f.params.ThresholdMultiplier
}

func (f *noiseFloor) classify(window []float32) bool {
	rms := vad.RMS(window)
	if !f.initialized {
		f.initialized = true
		f.value = math.Max(rms, f.params.MinNoiseFloor)
	}

	threshold := f.threshold()
	score := (1-f.params.ZCRWeight)*(rms/threshold) +
		f.params.ZCRWeight*ZCRScore(vad.ZeroCrossingRate(window))

	if rms < threshold {
		alpha := f.params.NoiseFloorSmoothing
		f.value = math.Max(alpha*rms+(1-alpha)*f.value, f.params.MinNoiseFloor)
	}

	return score > 1
}

func (v *VAD) DetectSpeech(
	ctx context.Context,
	samples []float32,
) (_ret vad.Segments) {
	logger.Tracef(ctx, "DetectSpeech: %d samples", len(samples))
	defer func() { logger.Tracef(ctx, "/DetectSpeech: %v", _ret) }()

	floor := &noiseFloor{params: v.ParamsValue}
	timeline := vad.ClassifyWindows(samples, v.SampleRateValue, v.windowSamples, floor.classify)
	logger.Tracef(ctx, "final noise floor: %f", floor.value)
	return vad.AssembleSegments(timeline, v.ParamsValue.CommonParams)
}
