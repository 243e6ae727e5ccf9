package energy

import (
	"fmt"

	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

func init() {
	vad.RegisterFactory(vad.FamilyEnergy, factory{})
}

type factory struct{}

func (factory) NewVAD(sampleRate audio.SampleRate, params vad.Params) (vad.VAD, error) {
	p, ok := params.(vad.EnergyParams)
	if !ok {
		return nil, fmt.Errorf("%w: expected %T, got %T", vad.ErrInvalidParameters, vad.EnergyParams{}, params)
	}
	return NewVAD(sampleRate, p)
}
