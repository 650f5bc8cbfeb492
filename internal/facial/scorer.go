// Package facial scores facial micro-expression anomalies against a rolling
// per-subject baseline.
package facial

import (
	"math"

	"liedar/internal/dsp"
	"liedar/internal/landmark"
	"liedar/internal/rolling"
)

// Composite weights of the three facial metrics.
const (
	eyebrowWeight = 0.4
	lipWeight     = 0.3
	blinkWeight   = 0.3
)

// minBaseline is the number of samples a metric needs before it can be
// scored against its own history.
const minBaseline = 5

// BlinkPolicy maps a blink rate in blinks/minute to an anomaly score. Rates
// above High ramp to 100 over HighSpan; rates below Low ramp to 100 over
// LowSpan.
type BlinkPolicy struct {
	High     float64 `mapstructure:"high" json:"high"`
	HighSpan float64 `mapstructure:"high_span" json:"high_span"`
	Low      float64 `mapstructure:"low" json:"low"`
	LowSpan  float64 `mapstructure:"low_span" json:"low_span"`
}

// DefaultBlinkPolicy treats 10 to 25 blinks/minute as normal.
func DefaultBlinkPolicy() BlinkPolicy {
	return BlinkPolicy{High: 25, HighSpan: 20, Low: 10, LowSpan: 10}
}

// Anomaly returns the anomaly score for rate, in [0,100].
func (p BlinkPolicy) Anomaly(rate float64) float64 {
	switch {
	case rate > p.High:
		return ramp(rate-p.High, p.HighSpan)
	case rate < p.Low:
		return ramp(p.Low-rate, p.LowSpan)
	}
	return 0
}

func ramp(excess, span float64) float64 {
	if span <= 0 {
		return 100
	}
	return dsp.Clamp(excess/span*100, 0, 100)
}

// Metrics is the per-frame breakdown behind a facial score.
type Metrics struct {
	EyebrowDistance float64 `json:"eyebrow_distance"`
	EyebrowAnomaly  float64 `json:"eyebrow_anomaly"`
	LipRatio        float64 `json:"lip_ratio"`
	LipAnomaly      float64 `json:"lip_anomaly"`
	BlinkRate       float64 `json:"blink_rate"`
	BlinkAnomaly    float64 `json:"blink_anomaly"`
	BlinkCount      int     `json:"blink_count"`
	Blinking        bool    `json:"blinking"`
	StressScore     float64 `json:"stress_score"`
}

// Result of one Analyze call. When NoSignal is set Score is 0 and Metrics is
// zero.
type Result struct {
	Score    float64
	NoSignal bool
	Metrics  Metrics
}

// Scorer tracks eyebrow height, lip opening and blink rate and reports how
// far the current frame departs from the recent baseline. It is not safe for
// concurrent use.
type Scorer struct {
	sensitivity    float64
	fps            float64
	blinkThreshold float64
	blinkPolicy    BlinkPolicy

	eyebrow *rolling.Window[float64]
	lip     *rolling.Window[float64]
	blinks  *rolling.Window[int]

	blinking   bool
	blinkCount int
	frames     int
}

type config struct {
	window         int
	sensitivity    float64
	fps            float64
	blinkWindow    int
	blinkThreshold float64
	blinkPolicy    BlinkPolicy
}

// Option configures a Scorer.
type Option func(*config)

// WithWindow sets the number of frames in the metric baselines.
func WithWindow(n int) Option { return func(c *config) { c.window = n } }

// WithSensitivity sets the z-score that maps to a full anomaly.
func WithSensitivity(s float64) Option { return func(c *config) { c.sensitivity = s } }

// WithFPS sets the frame rate used to turn blink flags into blinks/minute.
func WithFPS(fps float64) Option { return func(c *config) { c.fps = fps } }

// WithBlinkWindow sets how many frames of blink onsets the rate covers.
func WithBlinkWindow(n int) Option { return func(c *config) { c.blinkWindow = n } }

// WithBlinkThreshold sets the eyelid gap in pixels below which the eye is
// considered closed.
func WithBlinkThreshold(px float64) Option { return func(c *config) { c.blinkThreshold = px } }

func WithBlinkPolicy(p BlinkPolicy) Option { return func(c *config) { c.blinkPolicy = p } }

func New(opts ...Option) *Scorer {
	c := config{
		window:         30,
		sensitivity:    2.0,
		fps:            30,
		blinkWindow:    60,
		blinkThreshold: 5.0,
		blinkPolicy:    DefaultBlinkPolicy(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.sensitivity <= 0 {
		c.sensitivity = 2.0
	}

	return &Scorer{
		sensitivity:    c.sensitivity,
		fps:            c.fps,
		blinkThreshold: c.blinkThreshold,
		blinkPolicy:    c.blinkPolicy,
		eyebrow:        rolling.New[float64](c.window),
		lip:            rolling.New[float64](c.window),
		blinks:         rolling.New[int](c.blinkWindow),
	}
}

var required = func() []landmark.ID {
	ids := []landmark.ID{
		landmark.LeftEyeBelow, landmark.RightEyeBelow,
		landmark.UpperLipCenter, landmark.LowerLipCenter,
		landmark.MouthLeft, landmark.MouthRight,
	}
	ids = append(ids, landmark.LeftBrow...)
	ids = append(ids, landmark.RightBrow...)
	ids = append(ids, landmark.LeftEyeTop...)
	return append(ids, landmark.RightEyeTop...)
}()

// Analyze scores one landmark frame. A nil frame or one missing any of the
// tracked points yields NoSignal and leaves the baselines untouched.
func (s *Scorer) Analyze(f *landmark.Frame) Result {
	if f == nil || !f.Has(required...) {
		return Result{NoSignal: true}
	}
	s.frames++

	brow := eyebrowDistance(f)
	lip := lipRatio(f)
	blinking := eyelidGap(f) < s.blinkThreshold

	s.eyebrow.Push(brow)
	s.lip.Push(lip)

	if blinking && !s.blinking {
		s.blinkCount++
		s.blinks.Push(1)
	} else {
		s.blinks.Push(0)
	}
	s.blinking = blinking

	rate := s.blinks.Mean() * 60 * s.fps

	m := Metrics{
		EyebrowDistance: brow,
		EyebrowAnomaly:  s.anomaly(brow, s.eyebrow),
		LipRatio:        lip,
		LipAnomaly:      s.anomaly(lip, s.lip),
		BlinkRate:       rate,
		BlinkAnomaly:    s.blinkPolicy.Anomaly(rate),
		BlinkCount:      s.blinkCount,
		Blinking:        blinking,
	}
	m.StressScore = dsp.Clamp(
		m.EyebrowAnomaly*eyebrowWeight+m.LipAnomaly*lipWeight+m.BlinkAnomaly*blinkWeight,
		0, 100)

	return Result{Score: m.StressScore, Metrics: m}
}

// anomaly returns the z-score of v against history scaled so that a
// deviation of sensitivity standard deviations scores 100.
func (s *Scorer) anomaly(v float64, history *rolling.Window[float64]) float64 {
	if history.Len() < minBaseline {
		return 0
	}
	z := math.Abs(v-history.Mean()) / (history.Std() + dsp.Epsilon)
	return dsp.Clamp(z/s.sensitivity*100, 0, 100)
}

// BlinkCount returns the number of blink onsets since the last Reset.
func (s *Scorer) BlinkCount() int { return s.blinkCount }

// Frames returns the number of frames scored since the last Reset.
func (s *Scorer) Frames() int { return s.frames }

// Reset drops every baseline and the blink state.
func (s *Scorer) Reset() {
	s.eyebrow.Reset()
	s.lip.Reset()
	s.blinks.Reset()
	s.blinking = false
	s.blinkCount = 0
	s.frames = 0
}

// eyebrowDistance is the vertical pixel gap between the eyelids and the
// brows; it shrinks as the brows are lowered.
func eyebrowDistance(f *landmark.Frame) float64 {
	lb, _ := f.Pixels(landmark.LeftBrow)
	rb, _ := f.Pixels(landmark.RightBrow)
	le, _ := f.Pixels(landmark.LeftEyeTop)
	re, _ := f.Pixels(landmark.RightEyeTop)

	browY := (landmark.MeanY(lb) + landmark.MeanY(rb)) / 2
	eyeY := (landmark.MeanY(le) + landmark.MeanY(re)) / 2
	return eyeY - browY
}

// lipRatio is mouth opening over mouth width.
func lipRatio(f *landmark.Frame) float64 {
	upper, _ := f.Pixel(landmark.UpperLipCenter)
	lower, _ := f.Pixel(landmark.LowerLipCenter)
	left, _ := f.Pixel(landmark.MouthLeft)
	right, _ := f.Pixel(landmark.MouthRight)
	return upper.Dist(lower) / (left.Dist(right) + dsp.Epsilon)
}

// eyelidGap is the mean pixel distance between upper lid and lower eye
// contour of both eyes.
func eyelidGap(f *landmark.Frame) float64 {
	lu, _ := f.Pixel(landmark.LeftEyeUpperLid)
	ll, _ := f.Pixel(landmark.LeftEyeBelow)
	ru, _ := f.Pixel(landmark.RightEyeUpperLid)
	rl, _ := f.Pixel(landmark.RightEyeBelow)
	return (lu.Dist(ll) + ru.Dist(rl)) / 2
}
