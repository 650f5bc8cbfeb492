// Package pulse estimates heart rate from the color of a skin region over
// time (remote photoplethysmography) and maps it to a stress score.
package pulse

import (
	"errors"
	"image"

	"liedar/internal/dsp"
	"liedar/internal/rolling"
)

// Channel indexes a color plane in BGR order.
type Channel int

const (
	Blue Channel = iota
	Green
	Red
)

// Frame is a video frame the estimator can sample.
type Frame interface {
	Bounds() image.Rectangle
	// ChannelMean returns the mean intensity of channel inside region.
	ChannelMean(region image.Rectangle, channel Channel) (float64, error)
}

var ErrEmptyRegion = errors.New("pulse: empty region")

// Quality labels for the smoothed BPM.
const (
	QualityGood = "good"
	QualityPoor = "poor"
)

// Plausible heart rate range for the quality label.
const (
	minPlausibleBPM = 50
	maxPlausibleBPM = 180
)

// StressPolicy maps a heart rate to a stress score. Rates above High ramp to
// 100 over HighSpan; rates below Low score LowScore; a zero rate means no
// estimate yet and scores 0.
type StressPolicy struct {
	High     float64 `mapstructure:"high" json:"high"`
	HighSpan float64 `mapstructure:"high_span" json:"high_span"`
	Low      float64 `mapstructure:"low" json:"low"`
	LowScore float64 `mapstructure:"low_score" json:"low_score"`
}

func DefaultStressPolicy() StressPolicy {
	return StressPolicy{High: 90, HighSpan: 40, Low: 50, LowScore: 20}
}

// Score returns the stress score for bpm, in [0,100].
func (p StressPolicy) Score(bpm float64) float64 {
	switch {
	case bpm <= 0:
		return 0
	case bpm > p.High:
		if p.HighSpan <= 0 {
			return 100
		}
		return dsp.Clamp((bpm-p.High)/p.HighSpan*100, 0, 100)
	case bpm < p.Low:
		return dsp.Clamp(p.LowScore, 0, 100)
	}
	return 0
}

// StressFromBPM scores bpm with the default policy.
func StressFromBPM(bpm float64) float64 {
	return DefaultStressPolicy().Score(bpm)
}

// Result of one Process call.
type Result struct {
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	// BPM is the median of the recent raw estimates.
	BPM           float64 `json:"bpm"`
	RawBPM        float64 `json:"raw_bpm"`
	Stress        float64 `json:"stress_score"`
	BufferSize    int     `json:"buffer_size"`
	SignalQuality string  `json:"signal_quality,omitempty"`
	// Filtered is false when the band-pass stage was skipped.
	Filtered bool   `json:"filtered"`
	Err      string `json:"error,omitempty"`
}

type config struct {
	bufferSeconds float64
	minSeconds    float64
	lowHz         float64
	highHz        float64
	order         int
	history       int
	policy        StressPolicy
}

type Option func(*config)

// WithBuffer sets how many seconds of samples are kept.
func WithBuffer(seconds float64) Option { return func(c *config) { c.bufferSeconds = seconds } }

// WithMinFill sets how many seconds of samples are needed before estimating.
func WithMinFill(seconds float64) Option { return func(c *config) { c.minSeconds = seconds } }

// WithBand sets the heart rate pass band in Hz.
func WithBand(lowHz, highHz float64) Option {
	return func(c *config) { c.lowHz, c.highHz = lowHz, highHz }
}

// WithOrder sets the Butterworth prototype order.
func WithOrder(n int) Option { return func(c *config) { c.order = n } }

// WithHistory sets how many raw estimates the reported median covers.
func WithHistory(n int) Option { return func(c *config) { c.history = n } }

func WithStressPolicy(p StressPolicy) Option { return func(c *config) { c.policy = p } }

// Estimator turns a stream of frames into a heart rate estimate. It is not
// safe for concurrent use.
type Estimator struct {
	fps     float64
	minFill int
	lowHz   float64
	highHz  float64
	order   int
	policy  StressPolicy

	samples *rolling.Window[float64]
	bpms    *rolling.Window[float64]
	current float64
}

// New creates an Estimator for frames arriving at fps.
func New(fps int, opts ...Option) *Estimator {
	c := config{
		bufferSeconds: 10,
		minSeconds:    5,
		lowHz:         0.8,
		highHz:        3.0,
		order:         3,
		history:       10,
		policy:        DefaultStressPolicy(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if fps < 1 {
		fps = 1
	}

	return &Estimator{
		fps:     float64(fps),
		minFill: max(1, int(float64(fps)*c.minSeconds)),
		lowHz:   c.lowHz,
		highHz:  c.highHz,
		order:   c.order,
		policy:  c.policy,
		samples: rolling.New[float64](max(1, int(float64(fps)*c.bufferSeconds))),
		bpms:    rolling.New[float64](c.history),
	}
}

// Process samples the green channel of region and updates the estimate.
// When region cannot be sampled the buffer is left untouched and the last
// BPM is reported with StatusNoSignal and a stress of 0.
func (e *Estimator) Process(frame Frame, region image.Rectangle) Result {
	v, err := e.sample(frame, region)
	if err != nil {
		return Result{
			Status:     StatusNoSignal,
			BPM:        e.current,
			BufferSize: e.samples.Len(),
			Err:        err.Error(),
		}
	}
	e.samples.Push(v)

	if e.samples.Len() < e.minFill {
		return Result{
			Status:     StatusBuffering,
			Progress:   float64(e.samples.Len()) / float64(e.minFill) * 100,
			BufferSize: e.samples.Len(),
		}
	}

	signal := dsp.Detrend(e.samples.Values())
	filtered := true
	if out, err := e.bandpass(signal); err == nil {
		signal = out
	} else {
		filtered = false
	}

	raw, ok := dsp.DominantFrequency(signal, e.fps, e.lowHz, e.highHz)
	if ok {
		raw *= 60
	}
	e.bpms.Push(raw)
	e.current = e.bpms.Median()

	return Result{
		Status:        StatusActive,
		Progress:      100,
		BPM:           e.current,
		RawBPM:        raw,
		Stress:        e.policy.Score(e.current),
		BufferSize:    e.samples.Len(),
		SignalQuality: quality(e.current),
		Filtered:      filtered,
	}
}

func (e *Estimator) sample(frame Frame, region image.Rectangle) (float64, error) {
	if frame == nil {
		return 0, ErrEmptyRegion
	}
	region = region.Intersect(frame.Bounds())
	if region.Empty() {
		return 0, ErrEmptyRegion
	}
	return frame.ChannelMean(region, Green)
}

func (e *Estimator) bandpass(x []float64) ([]float64, error) {
	low, high, err := dsp.NormalizedBand(e.lowHz, e.highHz, e.fps)
	if err != nil {
		return nil, err
	}
	c, err := dsp.ButterBandpass(e.order, low, high)
	if err != nil {
		return nil, err
	}
	return dsp.FiltFilt(c, x)
}

// BPM returns the current smoothed estimate, 0 before the first one.
func (e *Estimator) BPM() float64 { return e.current }

// Stress scores the current estimate.
func (e *Estimator) Stress() float64 { return e.policy.Score(e.current) }

// Reset drops every sample and estimate; the estimator buffers again.
func (e *Estimator) Reset() {
	e.samples.Reset()
	e.bpms.Reset()
	e.current = 0
}

func quality(bpm float64) string {
	if bpm >= minPlausibleBPM && bpm <= maxPlausibleBPM {
		return QualityGood
	}
	return QualityPoor
}
