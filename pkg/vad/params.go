package vad

import (
	"fmt"
	"math"
	"time"

	"github.com/xaionaro-go/speechseg/pkg/audio"
)

// Params is an immutable set of tuning knobs of one detector family.
// Implementations are plain values and are safe to share.
type Params interface {
	Family() Family
	Common() CommonParams
	Validate() error
}

type CommonParams struct {
	WindowSize         time.Duration `yaml:"window_size"`
	MinSpeechDuration  time.Duration `yaml:"min_speech_duration"`
	MinSilenceDuration time.Duration `yaml:"min_silence_duration"`
}

func (p CommonParams) Validate() error {
	if p.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %v", ErrInvalidParameters, p.WindowSize)
	}
	if p.MinSpeechDuration < 0 {
		return fmt.Errorf("%w: minimal speech duration must not be negative, got %v", ErrInvalidParameters, p.MinSpeechDuration)
	}
	if p.MinSilenceDuration < 0 {
		return fmt.Errorf("%w: minimal silence duration must not be negative, got %v", ErrInvalidParameters, p.MinSilenceDuration)
	}
	return nil
}

// WindowSamples returns the amount of samples in a window at the given
// sample rate; it fails if the window does not hold a single sample.
func (p CommonParams) WindowSamples(sampleRate audio.SampleRate) (int, error) {
	if sampleRate == 0 {
		return 0, fmt.Errorf("%w: sample rate is mandatory", ErrInvalidParameters)
	}
	n := sampleRate.SamplesForDuration(p.WindowSize)
	if n == 0 {
		return 0, fmt.Errorf("%w: window size %v is shorter than a sample at %d Hz", ErrInvalidParameters, p.WindowSize, sampleRate)
	}
	return int(n), nil
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s must be within [%v, %v], got %v", ErrInvalidParameters, name, lo, hi, v)
	}
	return nil
}

type EnergyParams struct {
	CommonParams `yaml:",inline"`

	// RMSThreshold is the linear RMS amplitude at or above which a window
	// is speech. Range: (0, 1].
	RMSThreshold float64 `yaml:"rms_threshold"`
}

var _ Params = EnergyParams{}

func (EnergyParams) Family() Family         { return FamilyEnergy }
func (p EnergyParams) Common() CommonParams { return p.CommonParams }

func (p EnergyParams) Validate() error {
	if err := p.CommonParams.Validate(); err != nil {
		return err
	}
	if p.RMSThreshold <= 0 {
		return fmt.Errorf("%w: RMS threshold must be positive, got %v", ErrInvalidParameters, p.RMSThreshold)
	}
	return checkRange("RMS threshold", p.RMSThreshold, 0, 1)
}

type AdaptiveParams struct {
	CommonParams `yaml:",inline"`

	// ThresholdMultiplier scales the noise floor into the dynamic
	// threshold. Range: [1, 100].
	ThresholdMultiplier float64 `yaml:"threshold_multiplier"`

	// ZCRWeight blends the zero-crossing-rate score into the speech
	// score. Range: [0, 1).
	ZCRWeight float64 `yaml:"zcr_weight"`

	// NoiseFloorSmoothing is the weight of the current window in the
	// exponential smoothing of the noise floor. Range: (0, 1].
	NoiseFloorSmoothing float64 `yaml:"noise_floor_smoothing"`

	// MinNoiseFloor bounds the noise floor from below, so digital
	// silence does not make the threshold zero. Range: (0, 1).
	MinNoiseFloor float64 `yaml:"min_noise_floor"`
}

var _ Params = AdaptiveParams{}

func (AdaptiveParams) Family() Family         { return FamilyAdaptive }
func (p AdaptiveParams) Common() CommonParams { return p.CommonParams }

func (p AdaptiveParams) Validate() error {
	if err := p.CommonParams.Validate(); err != nil {
		return err
	}
	if err := checkRange("threshold multiplier", p.ThresholdMultiplier, 1, 100); err != nil {
		return err
	}
	if err := checkRange("ZCR weight", p.ZCRWeight, 0, 1); err != nil {
		return err
	}
	if p.ZCRWeight == 1 {
		return fmt.Errorf("%w: ZCR weight must be less than 1, otherwise energy is ignored", ErrInvalidParameters)
	}
	if err := checkRange("noise floor smoothing", p.NoiseFloorSmoothing, 0, 1); err != nil {
		return err
	}
	if p.NoiseFloorSmoothing == 0 {
		return fmt.Errorf("%w: noise floor smoothing must be positive", ErrInvalidParameters)
	}
	if err := checkRange("minimal noise floor", p.MinNoiseFloor, 0, 1); err != nil {
		return err
	}
	if p.MinNoiseFloor == 0 || p.MinNoiseFloor == 1 {
		return fmt.Errorf("%w: minimal noise floor must be within (0, 1), got %v", ErrInvalidParameters, p.MinNoiseFloor)
	}
	return nil
}

type SpectralParams struct {
	CommonParams `yaml:",inline"`

	// FFTSize is a power of two; windows are zero-padded or truncated to it.
	FFTSize int `yaml:"fft_size"`

	SpeechFreqMin float64 `yaml:"speech_freq_min"`
	SpeechFreqMax float64 `yaml:"speech_freq_max"`

	// SpeechEnergyRatio is the minimal share of the in-band power
	// in the total power of a speech window. Range: (0, 1].
	SpeechEnergyRatio float64 `yaml:"speech_energy_ratio"`

	// EnergyFloor is the RMS below which a window is silence whatever its
	// spectrum is. Range: [0, 1].
	EnergyFloor float64 `yaml:"energy_floor"`
}

var _ Params = SpectralParams{}

func (SpectralParams) Family() Family         { return FamilySpectral }
func (p SpectralParams) Common() CommonParams { return p.CommonParams }

const (
	minFFTSize = 16
	maxFFTSize = 1 << 16
)

func (p SpectralParams) Validate() error {
	if err := p.CommonParams.Validate(); err != nil {
		return err
	}
	if p.FFTSize < minFFTSize || p.FFTSize > maxFFTSize || p.FFTSize&(p.FFTSize-1) != 0 {
		return fmt.Errorf("%w: FFT size must be a power of two within [%d, %d], got %d", ErrInvalidParameters, minFFTSize, maxFFTSize, p.FFTSize)
	}
	if math.IsNaN(p.SpeechFreqMin) || math.IsNaN(p.SpeechFreqMax) || p.SpeechFreqMin < 0 || p.SpeechFreqMax <= p.SpeechFreqMin {
		return fmt.Errorf("%w: invalid speech frequency band [%v, %v]", ErrInvalidParameters, p.SpeechFreqMin, p.SpeechFreqMax)
	}
	if err := checkRange("speech energy ratio", p.SpeechEnergyRatio, 0, 1); err != nil {
		return err
	}
	if p.SpeechEnergyRatio == 0 {
		return fmt.Errorf("%w: speech energy ratio must be positive", ErrInvalidParameters)
	}
	return checkRange("energy floor", p.EnergyFloor, 0, 1)
}

// WebRTCParams configures the WebRTC GMM detector. It processes frames
// of exactly 10, 20 or 30 ms, so WindowSize must be one of these.
type WebRTCParams struct {
	CommonParams `yaml:",inline"`

	// Mode is the aggressiveness: 0 (least) .. 3 (most).
	Mode int `yaml:"mode"`
}

var _ Params = WebRTCParams{}

func (WebRTCParams) Family() Family         { return FamilyWebRTC }
func (p WebRTCParams) Common() CommonParams { return p.CommonParams }

func (p WebRTCParams) Validate() error {
	if err := p.CommonParams.Validate(); err != nil {
		return err
	}
	switch p.WindowSize {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
	default:
		return fmt.Errorf("%w: window size must be 10ms, 20ms or 30ms, got %v", ErrInvalidParameters, p.WindowSize)
	}
	if p.Mode < 0 || p.Mode > 3 {
		return fmt.Errorf("%w: mode must be within [0, 3], got %d", ErrInvalidParameters, p.Mode)
	}
	return nil
}
