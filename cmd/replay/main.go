package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"liedar/internal/app"
	"liedar/internal/config"
	"liedar/internal/logger"
	"liedar/internal/pipeline"
	"liedar/internal/replay"
	"liedar/internal/service"
	"liedar/internal/vision"
)

type options struct {
	video      string
	audio      string
	fps        int
	sampleRate int
	format     string
	every      int
	noFacial   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded video and audio track through the stress analysis",
		Long: `replay ticks the analysis once per video frame and prints the per-tick
records. Audio must be raw little-endian 16-bit mono PCM, for example:

  ffmpeg -i session.mp4 -ac 1 -ar 16000 -f s16le session.pcm`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.video, "video", "", "recorded video file (required)")
	f.StringVar(&opts.audio, "audio", "", "raw s16le mono PCM file")
	f.IntVar(&opts.fps, "fps", 0, "video frame rate, defaults to the container rate")
	f.IntVar(&opts.sampleRate, "sample-rate", 0, "audio sample rate, defaults to SAMPLE_RATE")
	f.StringVar(&opts.format, "format", replay.FormatJSON, "output format: json or yaml")
	f.IntVar(&opts.every, "every", 1, "print every Nth record")
	f.BoolVar(&opts.noFacial, "no-facial", false, "run without the facial modality")
	cmd.MarkFlagRequired("video")
	return cmd
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	log := logger.NewWriterLogger(stderr)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	video, err := vision.OpenVideoFile(opts.video)
	if err != nil {
		return err
	}
	defer video.Close()

	cfg.FPS = opts.fps
	if cfg.FPS <= 0 {
		cfg.FPS = int(math.Round(video.FPS()))
	}
	if cfg.FPS <= 0 {
		return fmt.Errorf("%s does not record its frame rate, pass --fps", opts.video)
	}
	if opts.sampleRate > 0 {
		cfg.SampleRate = opts.sampleRate
	}
	if opts.noFacial {
		cfg.FacialEnabled = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var audio io.Reader
	if opts.audio != "" {
		f, err := os.Open(opts.audio)
		if err != nil {
			return fmt.Errorf("open audio: %w", err)
		}
		defer f.Close()
		audio = f
	}

	enc, err := replay.NewEncoder(stdout, opts.format)
	if err != nil {
		return err
	}

	session, err := pipeline.FromConfig(cfg)
	if err != nil {
		return err
	}
	detector, closers := app.LoadDetectors(cfg, log)
	for _, c := range closers {
		defer c.Close()
	}

	start := time.Now()
	sum, err := replay.Run(ctx, session, videoSource{video}, audio, replay.Options{
		FPS:        cfg.FPS,
		SampleRate: cfg.SampleRate,
		Every:      opts.every,
		Detector:   detector,
	}, enc)
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Info("🏁 Replayed %d frames (%d records) in %s: honesty %.1f (%s), BPM %.1f",
		sum.Ticks, sum.Written, time.Since(start).Round(time.Millisecond),
		sum.Final.HonestyScore, sum.Final.AlertLevel, sum.Final.BPM)
	return nil
}

// videoSource adapts the gocv reader to replay.Source.
type videoSource struct {
	video *vision.VideoFile
}

func (s videoSource) Next() (service.Frame, error) {
	f, err := s.video.Next()
	if err != nil {
		return nil, err
	}
	return f, nil
}
