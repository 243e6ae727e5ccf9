package pulseaudio

import (
	"github.com/xaionaro-go/speechseg/pkg/audio/registry"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

const (
	Name     = "pulseaudio"
	Priority = 100
)

func init() {
	registry.RegisterRecorderFactory(Name, Priority, factory{})
}

type factory struct{}

func (factory) NewRecorderPCM() (types.RecorderPCM, error) {
	return NewCapture()
}
