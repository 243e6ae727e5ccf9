package ingest

import (
	"errors"
)

var (
	// ErrDeviceUnavailable means there is no audio source bound to the pipeline.
	ErrDeviceUnavailable = errors.New("audio device is unavailable")

	// ErrFormatNegotiationFailed means the native format of the source
	// cannot be converted to the canonical one.
	ErrFormatNegotiationFailed = errors.New("unable to negotiate the audio format")

	ErrNotStarted = errors.New("the pipeline is not started")
)
