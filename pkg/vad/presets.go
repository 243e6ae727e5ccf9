package vad

import (
	"fmt"
	"strings"
	"time"
)

type Preset string

const (
	PresetDefault          = Preset("default")
	PresetTelephoneQuality = Preset("telephoneQuality")
	PresetWidebandQuality  = Preset("widebandQuality")
	PresetAggressive       = Preset("aggressive")
	PresetConservative     = Preset("conservative")
	PresetVerySensitive    = Preset("verySensitive")
)

var allPresets = []Preset{
	PresetDefault,
	PresetTelephoneQuality,
	PresetWidebandQuality,
	PresetAggressive,
	PresetConservative,
	PresetVerySensitive,
}

// Presets returns all the named presets; each of them exists for every family.
func Presets() []Preset {
	return append([]Preset(nil), allPresets...)
}

func ParsePreset(s string) (Preset, error) {
	s = strings.TrimSpace(s)
	for _, preset := range allPresets {
		if strings.EqualFold(string(preset), s) {
			return preset, nil
		}
	}
	return "", fmt.Errorf("%w: unknown preset '%s', expected one of %v", ErrInvalidParameters, s, allPresets)
}

func (p Preset) String() string {
	return string(p)
}

// Set implements pflag.Value.
func (p *Preset) Set(s string) error {
	v, err := ParsePreset(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Type implements pflag.Value.
func (p *Preset) Type() string {
	return "vad-preset"
}

func common(window, minSpeech, minSilence time.Duration) CommonParams {
	return CommonParams{
		WindowSize:         window,
		MinSpeechDuration:  minSpeech,
		MinSilenceDuration: minSilence,
	}
}

const ms = time.Millisecond

// The aggressive presets reject more audio as silence and split
// utterances sooner; the conservative ones keep quiet speech and
// tolerate longer pauses.

var energyPresets = map[Preset]EnergyParams{
	PresetDefault:          {CommonParams: common(30*ms, 250*ms, 300*ms), RMSThreshold: 0.02},
	PresetTelephoneQuality: {CommonParams: common(30*ms, 200*ms, 400*ms), RMSThreshold: 0.03},
	PresetWidebandQuality:  {CommonParams: common(20*ms, 250*ms, 300*ms), RMSThreshold: 0.015},
	PresetAggressive:       {CommonParams: common(30*ms, 300*ms, 200*ms), RMSThreshold: 0.04},
	PresetConservative:     {CommonParams: common(30*ms, 150*ms, 600*ms), RMSThreshold: 0.01},
	PresetVerySensitive:    {CommonParams: common(20*ms, 100*ms, 500*ms), RMSThreshold: 0.005},
}

var adaptivePresets = map[Preset]AdaptiveParams{
	PresetDefault: {
		CommonParams:        common(30*ms, 250*ms, 300*ms),
		ThresholdMultiplier: 3,
		ZCRWeight:           0.2,
		NoiseFloorSmoothing: 0.05,
		MinNoiseFloor:       0.001,
	},
	PresetTelephoneQuality: {
		CommonParams:        common(30*ms, 200*ms, 400*ms),
		ThresholdMultiplier: 3.5,
		ZCRWeight:           0.15,
		NoiseFloorSmoothing: 0.05,
		MinNoiseFloor:       0.002,
	},
	PresetWidebandQuality: {
		CommonParams:        common(20*ms, 250*ms, 300*ms),
		ThresholdMultiplier: 2.5,
		ZCRWeight:           0.25,
		NoiseFloorSmoothing: 0.05,
		MinNoiseFloor:       0.0005,
	},
	PresetAggressive: {
		CommonParams:        common(30*ms, 300*ms, 200*ms),
		ThresholdMultiplier: 5,
		ZCRWeight:           0.3,
		NoiseFloorSmoothing: 0.1,
		MinNoiseFloor:       0.002,
	},
	PresetConservative: {
		CommonParams:        common(30*ms, 150*ms, 600*ms),
		ThresholdMultiplier: 2,
		ZCRWeight:           0.1,
		NoiseFloorSmoothing: 0.02,
		MinNoiseFloor:       0.0005,
	},
	PresetVerySensitive: {
		CommonParams:        common(20*ms, 100*ms, 500*ms),
		ThresholdMultiplier: 1.5,
		ZCRWeight:           0.1,
		NoiseFloorSmoothing: 0.02,
		MinNoiseFloor:       0.0002,
	},
}

var spectralPresets = map[Preset]SpectralParams{
	PresetDefault: {
		CommonParams:      common(30*ms, 250*ms, 300*ms),
		FFTSize:           512,
		SpeechFreqMin:     250,
		SpeechFreqMax:     4000,
		SpeechEnergyRatio: 0.6,
		EnergyFloor:       0.005,
	},
	PresetTelephoneQuality: {
		CommonParams:      common(30*ms, 200*ms, 400*ms),
		FFTSize:           512,
		SpeechFreqMin:     300,
		SpeechFreqMax:     3400,
		SpeechEnergyRatio: 0.6,
		EnergyFloor:       0.01,
	},
	PresetWidebandQuality: {
		CommonParams:      common(20*ms, 250*ms, 300*ms),
		FFTSize:           512,
		SpeechFreqMin:     80,
		SpeechFreqMax:     8000,
		SpeechEnergyRatio: 0.7,
		EnergyFloor:       0.004,
	},
	PresetAggressive: {
		CommonParams:      common(30*ms, 300*ms, 200*ms),
		FFTSize:           512,
		SpeechFreqMin:     300,
		SpeechFreqMax:     3400,
		SpeechEnergyRatio: 0.75,
		EnergyFloor:       0.01,
	},
	PresetConservative: {
		CommonParams:      common(30*ms, 150*ms, 600*ms),
		FFTSize:           512,
		SpeechFreqMin:     100,
		SpeechFreqMax:     6000,
		SpeechEnergyRatio: 0.5,
		EnergyFloor:       0.003,
	},
	PresetVerySensitive: {
		CommonParams:      common(20*ms, 100*ms, 500*ms),
		FFTSize:           512,
		SpeechFreqMin:     80,
		SpeechFreqMax:     7000,
		SpeechEnergyRatio: 0.4,
		EnergyFloor:       0.001,
	},
}

var webrtcPresets = map[Preset]WebRTCParams{
	PresetDefault:          {CommonParams: common(30*ms, 250*ms, 300*ms), Mode: 1},
	PresetTelephoneQuality: {CommonParams: common(30*ms, 200*ms, 400*ms), Mode: 2},
	PresetWidebandQuality:  {CommonParams: common(20*ms, 250*ms, 300*ms), Mode: 1},
	PresetAggressive:       {CommonParams: common(30*ms, 300*ms, 200*ms), Mode: 3},
	PresetConservative:     {CommonParams: common(30*ms, 150*ms, 600*ms), Mode: 0},
	PresetVerySensitive:    {CommonParams: common(20*ms, 100*ms, 500*ms), Mode: 0},
}

func lookupPreset[T Params](presets map[Preset]T, preset Preset) (T, error) {
	params, ok := presets[preset]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: unknown preset '%s' for family '%s'", ErrInvalidParameters, preset, zero.Family())
	}
	return params, nil
}

func EnergyPreset(preset Preset) (EnergyParams, error) {
	return lookupPreset(energyPresets, preset)
}

func AdaptivePreset(preset Preset) (AdaptiveParams, error) {
	return lookupPreset(adaptivePresets, preset)
}

func SpectralPreset(preset Preset) (SpectralParams, error) {
	return lookupPreset(spectralPresets, preset)
}

func WebRTCPreset(preset Preset) (WebRTCParams, error) {
	return lookupPreset(webrtcPresets, preset)
}

// PresetParams returns the named preset of the given family.
func PresetParams(family Family, preset Preset) (Params, error) {
	var (
		params Params
		err    error
	)
	switch family {
	case FamilyEnergy:
		params, err = EnergyPreset(preset)
	case FamilyAdaptive:
		params, err = AdaptivePreset(preset)
	case FamilySpectral:
		params, err = SpectralPreset(preset)
	case FamilyWebRTC:
		params, err = WebRTCPreset(preset)
	default:
		return nil, fmt.Errorf("%w: unknown family '%s'", ErrInvalidParameters, family)
	}
	if err != nil {
		return nil, err
	}
	return params, nil
}
