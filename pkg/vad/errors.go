package vad

import (
	"errors"
)

// ErrInvalidParameters is wrapped by every parameter validation failure.
var ErrInvalidParameters = errors.New("invalid VAD parameters")
