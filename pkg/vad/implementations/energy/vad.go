// Package energy implements the simplest detector family: a window is
// speech when its RMS reaches a fixed threshold.
package energy

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

type VAD struct {
	ParamsValue     vad.EnergyParams
	SampleRateValue audio.SampleRate

	windowSamples int
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	sampleRate audio.SampleRate,
	params vad.EnergyParams,
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

func (v *VAD) DetectSpeech(
	ctx context.Context,
	samples []float32,
) (_ret vad.Segments) {
	logger.Tracef(ctx, "DetectSpeech: %d samples", len(samples))
	defer func() { logger.Tracef(ctx, "/DetectSpeech: %v", _ret) }()

	threshold := v.ParamsValue.RMSThreshold
	timeline := vad.ClassifyWindows(samples, v.SampleRateValue, v.windowSamples, func(window []float32) bool {
		return vad.RMS(window) >= threshold
	})
	return vad.AssembleSegments(timeline, v.ParamsValue.CommonParams)
}
