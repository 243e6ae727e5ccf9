// Package audiofile decodes audio files into native-format PCM blocks
// which can be fed to an ingestion pipeline exactly like captured audio.
package audiofile

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/audio/resampler"
)

const (
	wavFormatPCM = 1

	oggReadFrames = 4096
)

// Block is the whole content of a file in its native format.
type Block struct {
	Format resampler.Format
	Data   []byte
}

func (b Block) Frames() int {
	frameSize := int(b.Format.FrameSize())
	if frameSize == 0 {
		return 0
	}
	return len(b.Data) / frameSize
}

func (b Block) Duration() time.Duration {
	return b.Format.SampleRate.DurationForSamples(uint64(b.Frames()))
}

// Decode reads the whole input. rawFormat is mandatory for KindRaw and
// ignored otherwise.
func Decode(
	ctx context.Context,
	r io.ReadSeeker,
	kind Kind,
	rawFormat *resampler.Format,
) (_ret Block, _err error) {
	logger.Tracef(ctx, "Decode: %s", kind)
	defer func() { logger.Tracef(ctx, "/Decode: %#+v (%d bytes), %v", _ret.Format, len(_ret.Data), _err) }()

	switch kind {
	case KindWAV:
		return decodeWAV(r)
	case KindOggVorbis:
		return decodeOggVorbis(r)
	case KindRaw:
		if rawFormat == nil {
			return Block{}, fmt.Errorf("the format of raw audio is mandatory")
		}
		return decodeRaw(r, *rawFormat)
	default:
		return Block{}, fmt.Errorf("unsupported file kind: %s", kind)
	}
}

// DecodeFile opens and decodes a file; the kind is guessed by the
// extension unless given explicitly.
func DecodeFile(
	ctx context.Context,
	path string,
	kind Kind,
	rawFormat *resampler.Format,
) (Block, error) {
	if kind == KindUndefined {
		kind = KindFromPath(path)
		if kind == KindUndefined {
			return Block{}, fmt.Errorf("unable to guess the kind of file '%s' by its extension", path)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return Block{}, fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	block, err := Decode(ctx, f, kind, rawFormat)
	if err != nil {
		return Block{}, fmt.Errorf("unable to decode '%s' as %s: %w", path, kind, err)
	}
	return block, nil
}

func decodeWAV(r io.ReadSeeker) (Block, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Block{}, fmt.Errorf("invalid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return Block{}, fmt.Errorf("unsupported WAV audio format %d, only integer PCM is supported", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return Block{}, fmt.Errorf("unable to read the PCM data: %w", err)
	}
	if buf == nil {
		return Block{}, fmt.Errorf("empty WAV buffer")
	}

	format := resampler.Format{
		Channels:   audio.Channel(dec.NumChans),
		SampleRate: audio.SampleRate(dec.SampleRate),
	}
	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth != 0 {
		bitDepth = buf.SourceBitDepth
	}
	switch bitDepth {
	case 8:
		format.PCMFormat = audio.PCMFormatU8
	case 16:
		format.PCMFormat = audio.PCMFormatS16LE
	case 24:
		format.PCMFormat = audio.PCMFormatS24LE
	case 32:
		format.PCMFormat = audio.PCMFormatS32LE
	default:
		return Block{}, fmt.Errorf("unsupported WAV bit depth: %d", bitDepth)
	}
	if err := format.Validate(); err != nil {
		return Block{}, fmt.Errorf("invalid WAV format: %w", err)
	}

	sampleSize := int(format.PCMFormat.Size())
	data := make([]byte, len(buf.Data)*sampleSize)
	for i, v := range buf.Data {
		p := data[i*sampleSize:]
		switch format.PCMFormat {
		case audio.PCMFormatU8:
			p[0] = uint8(v)
		case audio.PCMFormatS16LE:
			binary.LittleEndian.PutUint16(p, uint16(int16(v)))
		case audio.PCMFormatS24LE:
			p[0], p[1], p[2] = byte(v), byte(v>>8), byte(v>>16)
		case audio.PCMFormatS32LE:
			binary.LittleEndian.PutUint32(p, uint32(int32(v)))
		}
	}
	frameSize := int(format.FrameSize())
	data = data[:len(data)-len(data)%frameSize]
	return Block{Format: format, Data: data}, nil
}

func decodeOggVorbis(r io.Reader) (Block, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return Block{}, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	format := resampler.Format{
		Channels:   audio.Channel(oggReader.Channels()),
		SampleRate: audio.SampleRate(oggReader.SampleRate()),
		PCMFormat:  audio.PCMFormatFloat32LE,
	}
	if err := format.Validate(); err != nil {
		return Block{}, fmt.Errorf("invalid vorbis stream format: %w", err)
	}

	var data []byte
	samples := make([]float32, oggReadFrames*oggReader.Channels())
	for {
		n, err := oggReader.Read(samples)
		for _, v := range samples[:n] {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Block{}, fmt.Errorf("unable to read the vorbis stream: %w", err)
		}
	}
	return Block{Format: format, Data: data}, nil
}

func decodeRaw(r io.Reader, format resampler.Format) (Block, error) {
	if err := format.Validate(); err != nil {
		return Block{}, fmt.Errorf("invalid raw format: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Block{}, fmt.Errorf("unable to read: %w", err)
	}
	frameSize := int(format.FrameSize())
	if len(data)%frameSize != 0 {
		return Block{}, fmt.Errorf("the size %d is not a multiple of the frame size %d", len(data), frameSize)
	}
	return Block{Format: format, Data: data}, nil
}
