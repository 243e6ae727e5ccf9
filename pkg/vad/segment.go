package vad

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/speechseg/pkg/audio"
)

type Segment struct {
	StartTime time.Duration
	EndTime   time.Duration
}

func (s Segment) Duration() time.Duration {
	return s.EndTime - s.StartTime
}

func (s Segment) String() string {
	return fmt.Sprintf("%s-%s", s.StartTime, s.EndTime)
}

// Samples returns the part of the samples covered by the segment. The
// returned slice shares the memory with the input.
func (s Segment) Samples(samples []float32, sampleRate audio.SampleRate) []float32 {
	start := min(sampleRate.SamplesForDuration(s.StartTime), uint64(len(samples)))
	end := min(sampleRate.SamplesForDuration(s.EndTime), uint64(len(samples)))
	if end < start {
		end = start
	}
	return samples[start:end]
}

type Segments []Segment

func (s Segments) TotalDuration() time.Duration {
	var total time.Duration
	for _, segment := range s {
		total += segment.Duration()
	}
	return total
}
