// Package webrtc implements a detector family on top of the WebRTC
// GMM-based voice activity detector (libfvad).
package webrtc

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/josharian/fvad"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

type VAD struct {
	ParamsValue     vad.WebRTCParams
	SampleRateValue audio.SampleRate

	windowSamples int
}

var _ vad.VAD = (*VAD)(nil)

func isSupportedSampleRate(sampleRate audio.SampleRate) bool {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
		return true
	}
	return false
}

func NewVAD(
	sampleRate audio.SampleRate,
	params vad.WebRTCParams,
) (*VAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !isSupportedSampleRate(sampleRate) {
		return nil, fmt.Errorf("%w: sample rate %d is not supported, expected 8000, 16000, 32000 or 48000", vad.ErrInvalidParameters, sampleRate)
	}
	windowSamples, err := params.WindowSamples(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("unable to calculate the window size: %w", err)
	}

	// probe the configuration once, so detection never fails on it
	detector, err := newDetector(sampleRate, params.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", vad.ErrInvalidParameters, err)
	}
	closeDetector(detector)

	return &VAD{
		ParamsValue:     params,
		SampleRateValue: sampleRate,
		windowSamples:   windowSamples,
	}, nil
}

// openDetectors counts the native detectors not closed yet.
var openDetectors atomic.Int64

// newDetector allocates a native detector; it must be released with
// closeDetector.
func newDetector(
	sampleRate audio.SampleRate,
	mode int,
) (_ *fvad.Detector, _err error) {
	d := fvad.NewDetector()
	openDetectors.Add(1)
	defer func() {
		if _err != nil {
			closeDetector(d)
		}
	}()
	if err := d.SetMode(mode); err != nil {
		return nil, fmt.Errorf("unable to set mode %d: %w", mode, err)
	}
	if err := d.SetSampleRate(int(sampleRate)); err != nil {
		return nil, fmt.Errorf("unable to set sample rate %d: %w", sampleRate, err)
	}
	return d, nil
}

func closeDetector(d *fvad.Detector) {
	d.Close()
	openDetectors.Add(-1)
}

func (v *VAD) Params() vad.Params {
	return v.ParamsValue
}

func (v *VAD) SampleRate() audio.SampleRate {
	return v.SampleRateValue
}

func toInt16(dst []int16, src []float32) {
	for i := range dst {
		if i >= len(src) {
			dst[i] = 0
			continue
		}
		s := float64(src[i]) * math.MaxInt16
		switch {
		case s > math.MaxInt16:
			s = math.MaxInt16
		case s < math.MinInt16:
			s = math.MinInt16
		}
		dst[i] = int16(s)
	}
}

func (v *VAD) DetectSpeech(
	ctx context.Context,
	samples []float32,
) (_ret vad.Segments) {
	logger.Tracef(ctx, "DetectSpeech: %d samples", len(samples))
	defer func() { logger.Tracef(ctx, "/DetectSpeech: %v", _ret) }()

	// the detector keeps state between frames, so every run gets its own
	detector, err := newDetector(v.SampleRateValue, v.ParamsValue.Mode)
	if err != nil {
		logger.Errorf(ctx, "unable to initialize the detector: %v", err)
		return nil
	}
	defer closeDetector(detector)

	frame := make([]int16, v.windowSamples)
	timeline := vad.ClassifyWindows(samples, v.SampleRateValue, v.windowSamples, func(window []float32) bool {
		// the trailing window is zero-padded to the frame size
		toInt16(frame, window)
		isSpeech, err := detector.Process(frame)
		if err != nil {
			logger.Errorf(ctx, "unable to process a frame of %d samples: %v", len(frame), err)
			return false
		}
		return isSpeech
	})
	return vad.AssembleSegments(timeline, v.ParamsValue.CommonParams)
}
