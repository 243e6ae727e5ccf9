package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/speechseg/pkg/audio"
	_ "github.com/xaionaro-go/speechseg/pkg/audio/backends/portaudio"
	_ "github.com/xaionaro-go/speechseg/pkg/audio/backends/pulseaudio"
	"github.com/xaionaro-go/speechseg/pkg/audio/resampler"
	"github.com/xaionaro-go/speechseg/pkg/audiofile"
	"github.com/xaionaro-go/speechseg/pkg/session"
	"github.com/xaionaro-go/speechseg/pkg/vad"
	_ "github.com/xaionaro-go/speechseg/pkg/vad/implementations/all"
)

func main() {
	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	var (
		family    vad.Family
		preset    vad.Preset
		kind      audiofile.Kind
		pcmFormat = audio.PCMFormatS16LE
	)
	pflag.Var(&family, "detector", "detector family: energy, adaptive, spectral or webrtc (overrides the --params file)")
	pflag.Var(&preset, "preset", "parameter preset (overrides the --params file)")
	pflag.Var(&kind, "kind", "input file kind: wav, ogg or raw (default: guessed by the extension)")
	pflag.Var(&pcmFormat, "format", "sample format of raw input and of live capture")
	paramsFile := pflag.String("params", "", "path to a YAML file with the detector configuration")
	cadence := pflag.Duration("cadence", 0, "live preview cadence (default 2s)")
	sampleRate := pflag.Uint32("rate", 48000, "sample rate of raw input and of live capture")
	channels := pflag.Uint32("channels", 1, "amount of channels of raw input and of live capture")
	backend := pflag.String("backend", "", "capture backend for the live mode: pulseaudio or portaudio (default: the first one that works)")
	isLive := pflag.Bool("live", false, "record from the default audio source instead of reading a file")
	duration := pflag.Duration("duration", 0, "stop the live recording after this time (default: on interrupt)")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func() { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	cfg := &Config{}
	if *paramsFile != "" {
		var err error
		cfg, err = ReadConfigFile(*paramsFile)
		assertNoError(err)
	}
	if family != "" {
		cfg.Detector = family
	}
	if preset != "" {
		cfg.Preset = preset
	}
	if *cadence != 0 {
		cfg.Cadence = *cadence
	}

	params, err := cfg.Resolve()
	assertNoError(err)
	logger.Debugf(ctx, "detector parameters: %#+v", params)

	detector, err := vad.New(resampler.CanonicalSampleRate, params)
	assertNoError(err)

	s, err := session.New(detector, session.Config{Cadence: cfg.Cadence})
	assertNoError(err)

	format := resampler.Format{
		Channels:   audio.Channel(*channels),
		SampleRate: audio.SampleRate(*sampleRate),
		PCMFormat:  pcmFormat,
	}

	var result session.Result
	if *isLive {
		if pflag.NArg() != 0 {
			panic(fmt.Errorf("no arguments are expected in the live mode"))
		}
		result = recordLive(ctx, s, *backend, format, *duration)
	} else {
		if pflag.NArg() != 1 {
			panic(fmt.Errorf("expected exactly one argument: <input-file>"))
		}
		block, err := audiofile.DecodeFile(ctx, pflag.Arg(0), kind, &format)
		assertNoError(err)
		logger.Debugf(ctx, "decoded %v of %#+v", block.Duration(), block.Format)

		result, err = s.DetectFile(ctx, block)
		assertNoError(err)
	}

	logger.Infof(ctx, "%d segments, %v of speech in %v of audio",
		len(result.Segments), result.Segments.TotalDuration(),
		resampler.CanonicalSampleRate.DurationForSamples(uint64(len(result.Samples))),
	)
	for _, segment := range result.Segments {
		fmt.Printf("%.3f\t%.3f\t%.3f\n", segment.StartTime.Seconds(), segment.EndTime.Seconds(), segment.Duration().Seconds())
	}
}

func recordLive(
	ctx context.Context,
	s *session.Session,
	backend string,
	format resampler.Format,
	duration time.Duration,
) session.Result {
	var source *audio.Recorder
	if backend == "" {
		source = audio.NewRecorderAuto(ctx)
	} else {
		var err error
		source, err = audio.NewRecorderByName(ctx, backend)
		assertNoError(err)
	}
	logger.Debugf(ctx, "capture backend: %s", source.BackendName)
	recorder := &countingRecorder{RecorderPCM: source}
	defer recorder.Close()

	err := s.StartLive(ctx, recorder, format, func(ctx context.Context, preview session.Preview) {
		fmt.Fprintf(os.Stderr, "preview #%d at %v: %v\n", preview.Chunk.Index, preview.Chunk.Duration, preview.Segments)
	})
	assertNoError(err)
	logger.Infof(ctx, "recording...")

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	observability.Go(ctx, func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				logger.Debugf(ctx, "captured: %d bytes, buffered: %d samples", recorder.Count(), s.Pipeline.Len())
			}
		}
	})

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt)
	defer signal.Stop(signalCh)
	var timeoutCh <-chan time.Time
	if duration > 0 {
		timeoutCh = time.After(duration)
	}
	select {
	case <-signalCh:
	case <-timeoutCh:
	}

	result, err := s.StopLive(ctx)
	if err != nil {
		logger.Errorf(ctx, "problems while stopping the recording: %v", err)
	}
	if recorder.Count() == 0 {
		logger.Warnf(ctx, "nothing was captured from the audio source")
	}
	return result
}

func assertNoError(err error) {
	if err != nil {
		panic(err)
	}
}
