package spectral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/speechseg/pkg/vad"
	"github.com/xaionaro-go/speechseg/pkg/vad/vadtest"
)

func TestConformance(t *testing.T) {
	vadtest.RunConformance(t, vad.FamilySpectral, vadtest.ConformanceOptions{})
}

func newPreset(t testing.TB, preset vad.Preset) *VAD {
	params, err := vad.SpectralPreset(preset)
	require.NoError(t, err)
	v, err := NewVAD(vadtest.SampleRate, params)
	require.NoError(t, err)
	return v
}

func TestBandEnergyRatio(t *testing.T) {
	v := newPreset(t, vad.PresetTelephoneQuality)
	window := 30 * time.Millisecond

	assert.Greater(t, v.BandEnergyRatio(vadtest.Tone(window, 1000, 0.3)), 0.95)
	assert.Less(t, v.BandEnergyRatio(vadtest.Tone(window, 6000, 0.3)), 0.05)
	assert.Less(t, v.BandEnergyRatio(vadtest.Tone(window, 60, 0.3)), 0.05)
	assert.Zero(t, v.BandEnergyRatio(vadtest.Silence(window)))
	assert.Zero(t, v.BandEnergyRatio(nil))

	noise := v.BandEnergyRatio(vadtest.Noise(window, 0.3, 1))
	assert.Greater(t, noise, 0.2)
	assert.Less(t, noise, 0.6)

	// longer than the FFT: truncated
	assert.Greater(t, v.BandEnergyRatio(vadtest.Tone(time.Second, 1000, 0.3)), 0.95)
	// a single sample
	assert.False(t, v.BandEnergyRatio([]float32{0.5}) > 1)
}

func TestOutOfBandIsNotSpeech(t *testing.T) {
	v := newPreset(t, vad.PresetTelephoneQuality)
	ctx := context.Background()

	require.Empty(t, v.DetectSpeech(ctx, vadtest.Tone(2*time.Second, 60, 0.3)), "hum")
	require.Empty(t, v.DetectSpeech(ctx, vadtest.Tone(2*time.Second, 6000, 0.3)), "whistle")
	require.Empty(t, v.DetectSpeech(ctx, vadtest.Noise(2*time.Second, 0.3, 1)), "white noise")
}

func TestEnergyFloor(t *testing.T) {
	v := newPreset(t, vad.PresetDefault)
	signal := vadtest.Concat(
		vadtest.Silence(time.Second),
		vadtest.Tone(time.Second, 1000, v.ParamsValue.EnergyFloor/2),
		vadtest.Silence(time.Second),
	)
	require.Empty(t, v.DetectSpeech(context.Background(), signal))
}

func TestNewVADInvalid(t *testing.T) {
	_, err := NewVAD(vadtest.SampleRate, vad.SpectralParams{})
	require.True(t, errors.Is(err, vad.ErrInvalidParameters), err)

	params, err := vad.SpectralPreset(vad.PresetDefault)
	require.NoError(t, err)
	params.SpeechFreqMin = 9000
	params.SpeechFreqMax = 12000
	_, err = NewVAD(vadtest.SampleRate, params)
	require.True(t, errors.Is(err, vad.ErrInvalidParameters), err)

	energy, err := vad.EnergyPreset(vad.PresetDefault)
	require.NoError(t, err)
	_, err = factory{}.NewVAD(vadtest.SampleRate, energy)
	require.True(t, errors.Is(err, vad.ErrInvalidParameters), err)
}

func BenchmarkDetectSpeech(b *testing.B) {
	v := newPreset(b, vad.PresetDefault)
	signal := vadtest.Concat(
		vadtest.Noise(10*time.Second, 0.01, 1),
		vadtest.Tone(10*time.Second, 440, 0.1),
	)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v.DetectSpeech(ctx, signal)
	}
}
