package adaptive

import (
	"fmt"

	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

func init() {
	vad.RegisterFactory(vad.FamilyAdaptive, factory{})
}

type factory struct{}

func (factory) NewVAD(sampleRate audio.SampleRate, params vad.Params) (vad.VAD, error) {
	p, ok := params.(vad.AdaptiveParams)
	if !ok {
		return nil, fmt.Errorf("%w: expected %T, got %T", vad.ErrInvalidParameters, vad.AdaptiveParams{}, params)
	}
	return NewVAD(sampleRate, p)
}
