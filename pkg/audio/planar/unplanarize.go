// Package planar converts between planar (one plane per channel) and
// interleaved sample layouts.
package planar

import (
	"fmt"

	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

// Unplanarize interleaves a planar block: input holds all samples of
// channel 0, then all samples of channel 1, and so on; output receives
// frame-interleaved samples. Both slices must have the same length.
func Unplanarize(channels types.Channel, sampleSize uint, output, input []byte) error {
	frameSize := int(channels) * int(sampleSize)
	if frameSize == 0 {
		return fmt.Errorf("channels (%d) and sample size (%d) must be positive", channels, sampleSize)
	}
	if len(input)%frameSize != 0 {
		return fmt.Errorf("expected a message length that is a multiple of %d, but received %d", frameSize, len(input))
	}
	if len(input) != len(output) {
		return fmt.Errorf("the lengths of input and output are not equal: %d != %d", len(input), len(output))
	}

	planeSize := len(input) / int(channels)
	for ch := 0; ch < int(channels); ch++ {
		plane := input[ch*planeSize : (ch+1)*planeSize]
		for in, out := 0, ch*int(sampleSize); in < len(plane); in, out = in+int(sampleSize), out+frameSize {
			copy(output[out:out+int(sampleSize)], plane[in:in+int(sampleSize)])
		}
	}
	return nil
}
