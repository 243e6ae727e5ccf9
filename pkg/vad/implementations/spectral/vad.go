// Package spectral implements a detector which classifies a window by the
// share of its power that falls into the speech frequency band.
package spectral

import (
	"context"
	"fmt"
	"math"

	"github.com/brettbuddin/fourier"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/window"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

const epsilon = 1e-12

type VAD struct {
	ParamsValue     vad.SpectralParams
	SampleRateValue audio.SampleRate

	windowSamples int

	// hann is the analysis window for the amount of samples which fit
	// into the FFT; the trailing partial window gets its own one.
	hann []float64

	// bandFirst and bandLast are the bins (inclusive) of the speech band.
	bandFirst int
	bandLast  int
}

var _ vad.VAD = (*VAD)(nil)

func NewVAD(
	sampleRate audio.SampleRate,
	params vad.SpectralParams,
) (*VAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	windowSamples, err := params.WindowSamples(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("unable to calculate the window size: %w", err)
	}

	binWidth := float64(sampleRate) / float64(params.FFTSize)
	bandFirst := int(math.Ceil(params.SpeechFreqMin / binWidth))
	bandLast := min(int(math.Floor(params.SpeechFreqMax/binWidth)), params.FFTSize/2)
	if bandFirst > bandLast {
		return nil, fmt.Errorf(
			"%w: the band [%v, %v] Hz contains no FFT bins (bin width is %v Hz at %d Hz with FFT size %d)",
			vad.ErrInvalidParameters, params.SpeechFreqMin, params.SpeechFreqMax, binWidth, sampleRate, params.FFTSize,
		)
	}

	return &VAD{
		ParamsValue:     params,
		SampleRateValue: sampleRate,
		windowSamples:   windowSamples,
		hann:            hannWindow(min(windowSamples, params.FFTSize)),
		bandFirst:       bandFirst,
		bandLast:        bandLast,
	}, nil
}

func hannWindow(n int) []float64 {
	if n < 2 {
		return []float64{1}
	}
	return window.Hann(n)
}

func (v *VAD) Params() vad.Params {
	return v.ParamsValue
}

func (v *VAD) SampleRate() audio.SampleRate {
	return v.SampleRateValue
}

// BandEnergyRatio returns the share of the window power within the speech
// band. The window is Hann-weighted, then zero-padded or truncated to the
// FFT size. The result is 0 for a window without any power.
func (v *VAD) BandEnergyRatio(samples []float32) float64 {
	return v.bandEnergyRatio(make([]complex128, v.ParamsValue.FFTSize), samples)
}

func (v *VAD) bandEnergyRatio(
	buf []complex128,
	samples []float32,
) float64 {
	n := min(len(samples), len(buf))
	hann := v.hann
	if len(hann) != n {
		hann = hannWindow(n)
	}
	for i := range buf {
		if i < n {
			buf[i] = complex(float64(samples[i])*hann[i], 0)
		} else {
			buf[i] = 0
		}
	}
	if err := fourier.Forward(buf); err != nil {
		// unreachable: the FFT size is validated to be a power of two
		panic(fmt.Errorf("unable to run the FFT of size %d: %w", len(buf), err))
	}

	var total, band float64
	for k := 0; k <= len(buf)/2; k++ {
		re, im := real(buf[k]), imag(buf[k])
		power := re*re + im*im
		total += power
		if k >= v.bandFirst && k <= v.bandLast {
			band += power
		}
	}
	return band / (total + epsilon)
}

func (v *VAD) DetectSpeech(
	ctx context.Context,
	samples []float32,
) (_ret vad.Segments) {
	logger.Tracef(ctx, "DetectSpeech: %d samples", len(samples))
	defer func() { logger.Tracef(ctx, "/DetectSpeech: %v", _ret) }()

	buf := make([]complex128, v.ParamsValue.FFTSize)
	energyFloor := v.ParamsValue.EnergyFloor
	speechRatio := v.ParamsValue.SpeechEnergyRatio
	timeline := vad.ClassifyWindows(samples, v.SampleRateValue, v.windowSamples, func(frame []float32) bool {
		if vad.RMS(frame) < energyFloor {
			return false
		}
		return v.bandEnergyRatio(buf, frame) >= speechRatio
	})
	return vad.AssembleSegments(timeline, v.ParamsValue.CommonParams)
}
