package vad

import (
	"fmt"
	"strings"
)

type Family string

const (
	FamilyEnergy   = Family("energy")
	FamilyAdaptive = Family("adaptive")
	FamilySpectral = Family("spectral")
	FamilyWebRTC   = Family("webrtc")
)

var allFamilies = []Family{
	FamilyEnergy,
	FamilyAdaptive,
	FamilySpectral,
	FamilyWebRTC,
}

func ParseFamily(s string) (Family, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, family := range allFamilies {
		if string(family) == s {
			return family, nil
		}
	}
	return "", fmt.Errorf("unknown VAD family '%s', expected one of %v", s, allFamilies)
}

func (f Family) String() string {
	return string(f)
}

// Set implements pflag.Value.
func (f *Family) Set(s string) error {
	v, err := ParseFamily(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Type implements pflag.Value.
func (f *Family) Type() string {
	return "vad-family"
}
