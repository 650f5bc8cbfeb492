// Package replay runs a recorded session through the analysis pipeline as
// fast as it can be read, keeping audio aligned with video time.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"liedar/internal/landmark"
	"liedar/internal/pipeline"
	"liedar/internal/service"
)

// Source yields decoded video frames and io.EOF after the last one.
type Source interface {
	Next() (service.Frame, error)
}

type Options struct {
	FPS        int
	SampleRate int
	Every      int       // write every Nth record, values below 1 mean every record
	Start      time.Time // timestamp of the first frame
	Detector   landmark.Detector
}

// Summary describes a finished replay.
type Summary struct {
	Ticks   int
	Written int
	Final   pipeline.Status
}

// Run ticks p once per frame of src. Before each tick it feeds audio
// (little-endian 16-bit mono PCM, may be nil) up to the frame's time.
func Run(ctx context.Context, p *pipeline.Pipeline, src Source, audio io.Reader, opts Options, enc Encoder) (Summary, error) {
	if opts.FPS <= 0 || opts.SampleRate <= 0 {
		return Summary{}, fmt.Errorf("fps %d and sample rate %d must be positive", opts.FPS, opts.SampleRate)
	}
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}

	frames := make(chan service.Frame, opts.FPS)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		for {
			f, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read frame: %w", err)
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				f.Close()
				return ctx.Err()
			}
		}
	})

	var sum Summary
	g.Go(func() error {
		feed := &audioFeed{r: audio, rate: opts.SampleRate, fps: opts.FPS}
		for f := range frames {
			sum.Ticks++
			if err := feed.until(sum.Ticks, p); err != nil {
				f.Close()
				return err
			}

			in := pipeline.Input{
				Time:  opts.Start.Add(time.Duration(sum.Ticks-1) * time.Second / time.Duration(opts.FPS)),
				Frame: f,
			}
			if opts.Detector != nil {
				in.Observation, _ = opts.Detector.Detect(f)
			}
			rec := p.Tick(in)
			f.Close()

			if rec.Tick%opts.Every != 0 {
				continue
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("write record %d: %w", rec.Tick, err)
			}
			sum.Written++
		}
		return nil
	})

	err := g.Wait()
	// Frames left behind by a failed consumer.
	for f := range frames {
		f.Close()
	}
	sum.Final = p.Status()
	return sum, err
}

type audioFeed struct {
	r    io.Reader
	rate int
	fps  int
	fed  int
	done bool
}

// until feeds every sample recorded before the end of video tick n.
func (a *audioFeed) until(n int, p *pipeline.Pipeline) error {
	if a.r == nil || a.done {
		return nil
	}
	want := n * a.rate / a.fps
	if want <= a.fed {
		return nil
	}
	buf := make([]byte, 2*(want-a.fed))
	read, err := io.ReadFull(a.r, buf)
	read -= read % 2
	if read > 0 {
		p.WritePCM16(buf[:read])
		a.fed += read / 2
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		a.done = true
		return nil
	default:
		return fmt.Errorf("read audio: %w", err)
	}
}
