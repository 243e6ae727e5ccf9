package vad

import (
	"math"

	"github.com/xaionaro-go/speechseg/pkg/audio"
)

// RMS is the root mean square of the window; 0 for an empty window.
func RMS(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(window)))
}

// ZeroCrossingRate is the amount of sign changes per sample. Zero samples
// do not change the sign, so digital silence has no crossings.
func ZeroCrossingRate(window []float32) float64 {
	if len(window) < 2 {
		return 0
	}
	var (
		crossings int
		prevSign  int
	)
	for _, v := range window {
		var sign int
		switch {
		case v > 0:
			sign = 1
		case v < 0:
			sign = -1
		default:
			continue
		}
		if prevSign != 0 && sign != prevSign {
			crossings++
		}
		prevSign = sign
	}
	return float64(crossings) / float64(len(window))
}

// ClassifyWindows splits the samples into consecutive non-overlapping
// windows of windowSamples and classifies each of them; the trailing
// window may be shorter and is classified as is. Windows are visited in
// order, so classify may carry state from one window to the next.
func ClassifyWindows(
	samples []float32,
	sampleRate audio.SampleRate,
	windowSamples int,
	classify func(window []float32) bool,
) Timeline {
	timeline := Timeline{
		WindowSize:    sampleRate.DurationForSamples(uint64(windowSamples)),
		TotalDuration: sampleRate.DurationForSamples(uint64(len(samples))),
	}
	if len(samples) == 0 || windowSamples <= 0 {
		return timeline
	}

	timeline.Speech = make([]bool, 0, (len(samples)+windowSamples-1)/windowSamples)
	for pos := 0; pos < len(samples); pos += windowSamples {
		timeline.Speech = append(timeline.Speech, classify(samples[pos:min(pos+windowSamples, len(samples))]))
	}
	return timeline
}
