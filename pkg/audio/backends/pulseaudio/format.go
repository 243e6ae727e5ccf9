package pulseaudio

import (
	"fmt"
	"io"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

var sampleFormats = map[types.PCMFormat]byte{
	types.PCMFormatU8:        proto.FormatUint8,
	types.PCMFormatS16LE:     proto.FormatInt16LE,
	types.PCMFormatS32LE:     proto.FormatInt32LE,
	types.PCMFormatFloat32LE: proto.FormatFloat32LE,
}

func channelMap(channels types.Channel) (proto.ChannelMap, error) {
	switch channels {
	case 1:
		return proto.ChannelMap{proto.ChannelMono}, nil
	case 2:
		return proto.ChannelMap{proto.ChannelLeft, proto.ChannelRight}, nil
	default:
		return nil, fmt.Errorf("pulse capture supports 1 or 2 channels, got %d", channels)
	}
}

func sampleFormat(format types.PCMFormat) (byte, error) {
	f, ok := sampleFormats[format]
	if !ok {
		return 0, fmt.Errorf("pulse capture does not support PCM format %s", format)
	}
	return f, nil
}

// formatWriter tags a plain writer with the sample format pulse must
// deliver into it.
type formatWriter struct {
	io.Writer
	format byte
}

var _ pulse.Writer = formatWriter{}

func (w formatWriter) Format() byte {
	return w.format
}
