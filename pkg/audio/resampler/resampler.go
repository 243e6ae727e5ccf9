// Package resampler converts native-format PCM blocks into the canonical
// representation used by the detectors: mono float32 samples at a fixed rate.
package resampler

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/speechseg/pkg/audio/planar"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

const (
	CanonicalSampleRate = types.SampleRate(16000)
)

type Format struct {
	Channels   types.Channel
	SampleRate types.SampleRate
	PCMFormat  types.PCMFormat

	// Planar means the block carries one plane per channel instead of
	// interleaved frames.
	Planar bool
}

// Canonical is the format of the samples produced by Converter.
var Canonical = Format{
	Channels:   1,
	SampleRate: CanonicalSampleRate,
	PCMFormat:  types.PCMFormatFloat32LE,
}

func (f Format) FrameSize() uint {
	return f.PCMFormat.Size() * uint(f.Channels)
}

func (f Format) Validate() error {
	if f.SampleRate == 0 {
		return fmt.Errorf("sample rate is mandatory")
	}
	if f.Channels == 0 {
		return fmt.Errorf("channels must be greater than 0")
	}
	if f.PCMFormat.Size() == 0 {
		return fmt.Errorf("unsupported PCM format: %v", f.PCMFormat)
	}
	return nil
}

func getFloat64(f types.PCMFormat, p []byte) float64 {
	switch f {
	case types.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case types.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case types.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case types.PCMFormatS24LE:
		val := int32(uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case types.PCMFormatS24BE:
		val := int32(uint32(p[2]) | uint32(p[1])<<8 | uint32(p[0])<<16)
		if val&0x800000 != 0 {
			val |= -16777216
		}
		return float64(val) / 8388608
	case types.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case types.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case types.PCMFormatS64LE:
		return float64(int64(binary.LittleEndian.Uint64(p))) / 9223372036854775808
	case types.PCMFormatS64BE:
		return float64(int64(binary.BigEndian.Uint64(p))) / 9223372036854775808
	case types.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case types.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case types.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case types.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

// Converter is a stateful block converter: the resampling phase is carried
// from one block to the next, so a stream split into arbitrary
// (frame-aligned) blocks converts into the same samples as the whole stream.
//
// The rate conversion is a sample-and-hold: every input frame advances the
// input position by the output rate, every output sample advances the output
// position by the input rate, and an input frame is emitted for every output
// position falling inside it. The ratio is exact, so long recordings do not
// drift.
//
// Not safe for concurrent use.
type Converter struct {
	inFormat    Format
	outRate     types.SampleRate
	inPosition  uint64
	outPosition uint64
	planeBuffer []byte
}

func NewConverter(
	inFormat Format,
	outRate types.SampleRate,
) (*Converter, error) {
	if err := inFormat.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input format %#+v: %w", inFormat, err)
	}
	if outRate == 0 {
		return nil, fmt.Errorf("output sample rate is mandatory")
	}
	return &Converter{
		inFormat: inFormat,
		outRate:  outRate,
	}, nil
}

func (c *Converter) InputFormat() Format {
	return c.inFormat
}

func (c *Converter) OutputSampleRate() types.SampleRate {
	return c.outRate
}

// Reset forgets the resampling phase, as if no block was converted yet.
func (c *Converter) Reset() {
	c.inPosition = 0
	c.outPosition = 0
}

// OutputLength returns the upper bound of samples Convert appends for
// a block of inputFrames frames.
func (c *Converter) OutputLength(inputFrames int) int {
	return int((uint64(inputFrames)*uint64(c.outRate))/uint64(c.inFormat.SampleRate)) + 1
}

// Convert appends the canonical samples of the block to dst and
// returns the extended slice.
func (c *Converter) Convert(dst []float32, block []byte) ([]float32, error) {
	frameSize := int(c.inFormat.FrameSize())
	if len(block)%frameSize != 0 {
		return dst, fmt.Errorf("received a block of size %d that is not a multiple of %d", len(block), frameSize)
	}
	if len(block) == 0 {
		return dst, nil
	}

	if c.inFormat.Planar && c.inFormat.Channels > 1 {
		if cap(c.planeBuffer) < len(block) {
			c.planeBuffer = make([]byte, len(block))
		}
		interleaved := c.planeBuffer[:len(block)]
		if err := planar.Unplanarize(c.inFormat.Channels, c.inFormat.PCMFormat.Size(), interleaved, block); err != nil {
			return dst, fmt.Errorf("unable to interleave the planar block: %w", err)
		}
		block = interleaved
	}

	frames := len(block) / frameSize
	if free := cap(dst) - len(dst); free < c.OutputLength(frames) {
		grown := make([]float32, len(dst), len(dst)+c.OutputLength(frames))
		copy(grown, dst)
		dst = grown
	}

	sampleSize := int(c.inFormat.PCMFormat.Size())
	channels := int(c.inFormat.Channels)
	inRate := uint64(c.inFormat.SampleRate)
	outRate := uint64(c.outRate)
	for frameIdx := 0; frameIdx < frames; frameIdx++ {
		frame := block[frameIdx*frameSize:]
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += getFloat64(c.inFormat.PCMFormat, frame[ch*sampleSize:])
		}
		value := float32(sum / float64(channels))

		c.inPosition += outRate
		for c.outPosition < c.inPosition {
			dst = append(dst, value)
			c.outPosition += inRate
		}
	}

	if shift := min(c.inPosition, c.outPosition); shift > 0 {
		c.inPosition -= shift
		c.outPosition -= shift
	}
	return dst, nil
}
