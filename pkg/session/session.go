// Package session wires a capture source or a decoded file through the
// ingestion pipeline into a detector. A Session is owned by whoever runs
// the recording; there is no global state.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	"github.com/xaionaro-go/speechseg/pkg/audio/resampler"
	"github.com/xaionaro-go/speechseg/pkg/audiofile"
	"github.com/xaionaro-go/speechseg/pkg/ingest"
	"github.com/xaionaro-go/speechseg/pkg/vad"
)

const (
	// fileBlockDuration is how much of a decoded file is ingested at once.
	fileBlockDuration = 100 * time.Millisecond
)

type Result struct {
	// Samples is the whole recording in the canonical format.
	Samples  []float32
	Segments vad.Segments
}

// Preview is the detection result on a live chunk.
type Preview struct {
	Chunk    ingest.Chunk
	Segments vad.Segments
}

type PreviewHandler func(ctx context.Context, preview Preview)

type Config struct {
	// Cadence of the live previews, see ingest.Config.
	Cadence time.Duration

	// StreamBufferSize is the ring buffer size between the capture
	// backend and the pipeline; zero means the default.
	StreamBufferSize uint
}

type Session struct {
	Pipeline *ingest.Pipeline
	VAD      vad.VAD
	Config   Config

	locker sync.Mutex
	live   *live
}

type live struct {
	stream audio.RecordStream
	writer *ingest.StreamWriter
	worker *ingest.LatestChunkWorker
}

func New(
	detector vad.VAD,
	cfg Config,
) (*Session, error) {
	if detector == nil {
		return nil, fmt.Errorf("a detector is mandatory")
	}
	if detector.SampleRate() != resampler.CanonicalSampleRate {
		return nil, fmt.Errorf("the detector works at %d Hz, but the pipeline produces %d Hz", detector.SampleRate(), resampler.CanonicalSampleRate)
	}
	s := &Session{
		VAD:    detector,
		Config: cfg,
	}
	s.Pipeline = ingest.NewPipeline(ingest.Config{
		Cadence: cfg.Cadence,
		OnChunk: s.onChunk,
	})
	return s, nil
}

func (s *Session) onChunk(ctx context.Context, chunk ingest.Chunk) {
	s.locker.Lock()
	var worker *ingest.LatestChunkWorker
	if s.live != nil {
		worker = s.live.worker
	}
	s.locker.Unlock()
	if worker != nil {
		worker.HandleChunk(ctx, chunk)
	}
}

func (s *Session) IsLive() bool {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.live != nil
}

// DetectFile runs a decoded file through the pipeline and detects
// speech on the whole of it.
func (s *Session) DetectFile(
	ctx context.Context,
	block audiofile.Block,
) (_ret Result, _err error) {
	logger.Tracef(ctx, "DetectFile")
	defer func() { logger.Tracef(ctx, "/DetectFile: %v %v", _ret.Segments, _err) }()

	if s.IsLive() {
		return Result{}, fmt.Errorf("a live recording is in progress")
	}

	s.Pipeline.Bind(block.Format)
	if err := s.Pipeline.Start(ctx); err != nil {
		return Result{}, fmt.Errorf("unable to start the pipeline: %w", err)
	}

	frameSize := int(block.Format.FrameSize())
	step := max(int(block.Format.SampleRate.SamplesForDuration(fileBlockDuration)), 1) * frameSize
	for pos := 0; pos < len(block.Data); pos += step {
		if err := s.Pipeline.Ingest(ctx, block.Data[pos:min(pos+step, len(block.Data))]); err != nil {
			s.Pipeline.Stop(ctx)
			return Result{}, fmt.Errorf("unable to ingest the block at byte %d: %w", pos, err)
		}
	}

	samples := s.Pipeline.Stop(ctx)
	return Result{
		Samples:  samples,
		Segments: s.VAD.DetectSpeech(ctx, samples),
	}, nil
}

// StartLive starts recording from the recorder in the given native
// format. If onPreview is set, the detector runs on every chunk (or the
// latest one, if it falls behind) and reports to onPreview.
func (s *Session) StartLive(
	ctx context.Context,
	recorder audio.RecorderPCM,
	format resampler.Format,
	onPreview PreviewHandler,
) (_err error) {
	logger.Tracef(ctx, "StartLive: %#+v", format)
	defer func() { logger.Tracef(ctx, "/StartLive: %v", _err) }()

	if format.Planar {
		return fmt.Errorf("%w: capture backends produce interleaved frames", ingest.ErrFormatNegotiationFailed)
	}

	s.locker.Lock()
	defer s.locker.Unlock()
	if s.live != nil {
		return fmt.Errorf("a live recording is already in progress")
	}

	if err := recorder.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ingest.ErrDeviceUnavailable, err)
	}
	if err := recorder.CheckFormat(format.SampleRate, format.Channels, format.PCMFormat); err != nil {
		return fmt.Errorf("%w: %w", ingest.ErrFormatNegotiationFailed, err)
	}

	s.Pipeline.Bind(format)
	if err := s.Pipeline.Start(ctx); err != nil {
		return fmt.Errorf("unable to start the pipeline: %w", err)
	}

	l := &live{}
	if onPreview != nil {
		l.worker = ingest.NewLatestChunkWorker(ctx, func(ctx context.Context, chunk ingest.Chunk) {
			onPreview(ctx, Preview{
				Chunk:    chunk,
				Segments: s.VAD.DetectSpeech(ctx, chunk.Samples),
			})
		})
	}

	writer, err := ingest.NewStreamWriter(ctx, s.Pipeline, format.FrameSize(), s.Config.StreamBufferSize)
	if err != nil {
		l.close(ctx)
		s.Pipeline.Stop(ctx)
		return fmt.Errorf("unable to initialize the stream writer: %w", err)
	}
	l.writer = writer

	stream, err := recorder.RecordPCM(ctx, format.SampleRate, format.Channels, format.PCMFormat, writer)
	if err != nil {
		l.close(ctx)
		s.Pipeline.Stop(ctx)
		return fmt.Errorf("%w: unable to start recording: %w", ingest.ErrDeviceUnavailable, err)
	}
	l.stream = stream

	s.live = l
	return nil
}

// close stops the capture first, so everything captured is flushed into
// the pipeline before the worker stops.
func (l *live) close(ctx context.Context) error {
	var mErr *multierror.Error
	if l.stream != nil {
		if err := l.stream.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to close the record stream: %w", err))
		}
	}
	if l.writer != nil {
		if err := l.writer.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to flush the captured audio: %w", err))
		}
		if dropped := l.writer.DroppedBytes(); dropped > 0 {
			logger.Warnf(ctx, "%d bytes of captured audio were dropped due to the buffer overflow", dropped)
		}
	}
	if l.worker != nil {
		if err := l.worker.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to stop the preview worker: %w", err))
		}
		logger.Debugf(ctx, "previews: processed %d, skipped %d", l.worker.Processed(), l.worker.Skipped())
	}
	return mErr.ErrorOrNil()
}

// StopLive stops the recording and detects speech on the whole of it.
// The result is valid even if an error is returned: the error describes
// problems tearing down the capture.
func (s *Session) StopLive(ctx context.Context) (_ret Result, _err error) {
	logger.Tracef(ctx, "StopLive")
	defer func() { logger.Tracef(ctx, "/StopLive: %v %v", _ret.Segments, _err) }()

	s.locker.Lock()
	l := s.live
	s.live = nil
	s.locker.Unlock()
	if l == nil {
		return Result{}, fmt.Errorf("no live recording is in progress")
	}

	err := l.close(ctx)
	samples := s.Pipeline.Stop(ctx)
	return Result{
		Samples:  samples,
		Segments: s.VAD.DetectSpeech(ctx, samples),
	}, err
}
