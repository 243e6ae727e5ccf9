package resampler

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/audio/types"
)

func float32ToBytes(data []float32) []byte {
	res := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(res[i*4:], math.Float32bits(v))
	}
	return res
}

func TestConverter(t *testing.T) {
	t.Run("Identity_Canonical", func(t *testing.T) {
		in := make([]float32, 100)
		for i := range in {
			in[i] = float32(i)/100 - 0.5
		}
		c, err := NewConverter(Canonical, CanonicalSampleRate)
		require.NoError(t, err)

		out, err := c.Convert(nil, float32ToBytes(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("S16LE_to_Float", func(t *testing.T) {
		c, err := NewConverter(Format{
			Channels:   1,
			SampleRate: 16000,
			PCMFormat:  types.PCMFormatS16LE,
		}, CanonicalSampleRate)
		require.NoError(t, err)

		data := make([]byte, 6)
		binary.LittleEndian.PutUint16(data[0:], uint16(0x8000)) // -32768
		binary.LittleEndian.PutUint16(data[2:], 0)
		binary.LittleEndian.PutUint16(data[4:], 16384)

		out, err := c.Convert(nil, data)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.InDelta(t, -1.0, out[0], 1e-6)
		assert.InDelta(t, 0.0, out[1], 1e-6)
		assert.InDelta(t, 0.5, out[2], 1e-6)
	})

	t.Run("U8_to_Float", func(t *testing.T) {
		c, err := NewConverter(Format{
			Channels:   1,
			SampleRate: 16000,
			PCMFormat:  types.PCMFormatU8,
		}, CanonicalSampleRate)
		require.NoError(t, err)

		out, err := c.Convert(nil, []byte{0, 128, 255})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.InDelta(t, -1.0, out[0], 0.01)
		assert.InDelta(t, 0.0, out[1], 0.01)
		assert.InDelta(t, 1.0, out[2], 0.01)
	})

	t.Run("Downsampling_48000_to_16000", func(t *testing.T) {
		c, err := NewConverter(Format{
			Channels:   1,
			SampleRate: 48000,
			PCMFormat:  types.PCMFormatFloat32LE,
		}, CanonicalSampleRate)
		require.NoError(t, err)

		in := make([]float32, 300)
		for i := range in {
			in[i] = float32(i)
		}
		out, err := c.Convert(nil, float32ToBytes(in))
		require.NoError(t, err)
		require.Len(t, out, 100)
		for i := range out {
			assert.Equal(t, float32(i*3), out[i])
		}
	})

	t.Run("Upsampling_8000_to_16000", func(t *testing.T) {
		c, err := NewConverter(Format{
			Channels:   1,
			SampleRate: 8000,
			PCMFormat:  types.PCMFormatFloat32LE,
		}, CanonicalSampleRate)
		require.NoError(t, err)

		out, err := c.Convert(nil, float32ToBytes([]float32{0.1, 0.2, 0.3}))
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3}, out)
	})

	t.Run("Phase_Carried_Across_Blocks", func(t *testing.T) {
		format := Format{
			Channels:   1,
			SampleRate: 44100,
			PCMFormat:  types.PCMFormatFloat32LE,
		}
		in := make([]float32, 44100)
		for i := range in {
			in[i] = float32(math.Sin(float64(i) * 0.01))
		}

		whole, err := NewConverter(format, CanonicalSampleRate)
		require.NoError(t, err)
		expected, err := whole.Convert(nil, float32ToBytes(in))
		require.NoError(t, err)
		assert.Len(t, expected, 16000)

		split, err := NewConverter(format, CanonicalSampleRate)
		require.NoError(t, err)
		var actual []float32
		for pos := 0; pos < len(in); pos += 441 {
			actual, err = split.Convert(actual, float32ToBytes(in[pos:min(pos+441, len(in))]))
			require.NoError(t, err)
		}
		assert.Equal(t, expected, actual)
	})

	t.Run("Stereo_DownMix", func(t *testing.T) {
		c, err := NewConverter(Format{
			Channels:   2,
			SampleRate: 16000,
			PCMFormat:  types.PCMFormatFloat32LE,
		}, CanonicalSampleRate)
		require.NoError(t, err)

		out, err := c.Convert(nil, float32ToBytes([]float32{0.2, 0.4, -1, 1}))
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.InDelta(t, 0.3, out[0], 1e-6)
		assert.InDelta(t, 0.0, out[1], 1e-6)
	})

	t.Run("Planar_Stereo_DownMix", func(t *testing.T) {
		c, err := NewConverter(Format{
			Channels:   2,
			SampleRate: 16000,
			PCMFormat:  types.PCMFormatFloat32LE,
			Planar:     true,
		}, CanonicalSampleRate)
		require.NoError(t, err)

		// left plane: 0.2, -1; right plane: 0.4, 1
		out, err := c.Convert(nil, float32ToBytes([]float32{0.2, -1, 0.4, 1}))
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.InDelta(t, 0.3, out[0], 1e-6)
		assert.InDelta(t, 0.0, out[1], 1e-6)
	})

	t.Run("Misaligned_Block", func(t *testing.T) {
		c, err := NewConverter(Canonical, CanonicalSampleRate)
		require.NoError(t, err)
		_, err = c.Convert(nil, []byte{1, 2, 3})
		require.Error(t, err)
	})

	t.Run("Invalid_Formats", func(t *testing.T) {
		_, err := NewConverter(Format{Channels: 1, PCMFormat: types.PCMFormatS16LE}, CanonicalSampleRate)
		require.Error(t, err)
		_, err = NewConverter(Format{SampleRate: 16000, PCMFormat: types.PCMFormatS16LE}, CanonicalSampleRate)
		require.Error(t, err)
		_, err = NewConverter(Format{Channels: 1, SampleRate: 16000}, CanonicalSampleRate)
		require.Error(t, err)
		_, err = NewConverter(Canonical, 0)
		require.Error(t, err)
	})
}
