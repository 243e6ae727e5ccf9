package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xaionaro-go/speechseg/pkg/vad"
	"gopkg.in/yaml.v3"
)

// Config is the content of the --params file, for example:
//
//	detector: adaptive
//	preset: telephoneQuality
//	cadence: 2s
//	params:
//	  window_size: 20ms
//	  threshold_multiplier: 4
//
// The keys under "params" override the fields of the preset; their names
// are the yaml tags of the parameter types of the detector family.
type Config struct {
	Detector vad.Family    `yaml:"detector"`
	Preset   vad.Preset    `yaml:"preset"`
	Cadence  time.Duration `yaml:"cadence"`
	Params   yaml.Node     `yaml:"params"`
}

func ReadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()
	return ReadConfig(f)
}

func ReadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("unable to decode the YAML: %w", err)
	}
	if cfg.Detector != "" {
		family, err := vad.ParseFamily(string(cfg.Detector))
		if err != nil {
			return nil, err
		}
		cfg.Detector = family
	}
	if cfg.Preset != "" {
		preset, err := vad.ParsePreset(string(cfg.Preset))
		if err != nil {
			return nil, err
		}
		cfg.Preset = preset
	}
	return &cfg, nil
}

// Resolve returns the detector parameters: the preset of the family
// with the overrides applied, validated.
func (cfg *Config) Resolve() (vad.Params, error) {
	family, preset := cfg.Detector, cfg.Preset
	if family == "" {
		family = vad.FamilyEnergy
	}
	if preset == "" {
		preset = vad.PresetDefault
	}

	params, err := vad.PresetParams(family, preset)
	if err != nil {
		return nil, err
	}
	if cfg.Params.Kind != 0 {
		params, err = applyOverrides(params, &cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("unable to apply the parameter overrides: %w", err)
		}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func applyOverrides(params vad.Params, node *yaml.Node) (vad.Params, error) {
	switch p := params.(type) {
	case vad.EnergyParams:
		err := node.Decode(&p)
		return p, err
	case vad.AdaptiveParams:
		err := node.Decode(&p)
		return p, err
	case vad.SpectralParams:
		err := node.Decode(&p)
		return p, err
	case vad.WebRTCParams:
		err := node.Decode(&p)
		return p, err
	default:
		return nil, fmt.Errorf("unexpected parameters type %T", params)
	}
}
