package vad

import (
	"time"
)

// Timeline is the per-window speech/silence classification of a signal.
// Window i spans [i*WindowSize, min((i+1)*WindowSize, TotalDuration)).
type Timeline struct {
	WindowSize    time.Duration
	TotalDuration time.Duration
	Speech        []bool
}

func (t Timeline) windowBounds(idx int) (time.Duration, time.Duration) {
	start := time.Duration(idx) * t.WindowSize
	end := start + t.WindowSize
	if t.TotalDuration > 0 && end > t.TotalDuration {
		end = t.TotalDuration
	}
	return start, end
}

// AssembleSegments converts a timeline into speech segments:
// speech windows separated by silence shorter than MinSilenceDuration are
// merged into one segment, a segment is closed once a silence run reaches
// MinSilenceDuration, and segments shorter than MinSpeechDuration are
// dropped. The result is ordered and has no overlaps.
//
// Every detector family goes through this function.
func AssembleSegments(timeline Timeline, params CommonParams) Segments {
	var (
		result       Segments
		inSegment    bool
		segmentStart time.Duration
		speechEnd    time.Duration
		silenceStart time.Duration
		inSilence    bool
	)

	closeSegment := func() {
		inSegment = false
		inSilence = false
		segment := Segment{StartTime: segmentStart, EndTime: speechEnd}
		if segment.Duration() < params.MinSpeechDuration {
			return
		}
		result = append(result, segment)
	}

	for idx, isSpeech := range timeline.Speech {
		start, end := timeline.windowBounds(idx)
		if end <= start {
			break
		}

		if isSpeech {
			if !inSegment {
				inSegment = true
				segmentStart = start
			}
			inSilence = false
			speechEnd = end
			continue
		}

		if !inSegment {
			continue
		}
		if !inSilence {
			inSilence = true
			silenceStart = start
		}
		if end-silenceStart >= params.MinSilenceDuration {
			closeSegment()
		}
	}
	if inSegment {
		closeSegment()
	}

	return result
}
