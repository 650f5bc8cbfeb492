// Package voice extracts acoustic stress features (pitch variation, jitter,
// shimmer, energy) from a rolling audio buffer.
package voice

import (
	"fmt"

	"liedar/internal/dsp"
	"liedar/internal/rolling"
)

// Stress scaling: a pitch deviation equal to the baseline scores 50, 2%
// jitter and 5% shimmer each score 100.
const (
	pitchScale   = 50.0
	jitterScale  = 2.0
	shimmerScale = 5.0

	// minPitchHistory is the number of voiced windows needed before pitch
	// variation is scored against its baseline.
	minPitchHistory = 5
)

// Status is the extractor state for one Analyze call.
type Status int

const (
	StatusBuffering Status = iota
	StatusNoSignal
	StatusActive
)

var statusNames = map[Status]string{
	StatusBuffering: "buffering",
	StatusNoSignal:  "no_signal",
	StatusActive:    "active",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for status, name := range statusNames {
		if name == string(b) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("voice: unknown status %q", b)
}

// Metrics is the feature breakdown of one analysis window.
type Metrics struct {
	PitchMean    float64 `json:"pitch_mean"`
	PitchStd     float64 `json:"pitch_std"`
	Jitter       float64 `json:"jitter"`
	Shimmer      float64 `json:"shimmer"`
	Energy       float64 `json:"energy"`
	VoicedFrames int     `json:"voiced_frames"`
	StressScore  float64 `json:"stress_score"`
}

// Result of one Analyze call. Score is 0 while buffering and on
// StatusNoSignal. An unvoiced window with an unsteady amplitude still scores
// through shimmer and is reported active with VoicedFrames == 0.
type Result struct {
	Status   Status
	Progress float64
	Score    float64
	Metrics  Metrics
}

type config struct {
	sampleRate    int
	bufferSeconds float64
	windowSeconds float64
	history       int
}

type Option func(*config)

func WithSampleRate(hz int) Option { return func(c *config) { c.sampleRate = hz } }

// WithBuffer sets how many seconds of audio are retained.
func WithBuffer(seconds float64) Option { return func(c *config) { c.bufferSeconds = seconds } }

// WithWindow sets the length of the analysis window in seconds.
func WithWindow(seconds float64) Option { return func(c *config) { c.windowSeconds = seconds } }

// WithHistory sets how many voiced windows form the feature baselines.
func WithHistory(n int) Option { return func(c *config) { c.history = n } }

// Extractor scores vocal stress. Write may be called from a capture
// goroutine while another goroutine calls Analyze; Analyze and Reset must
// not run concurrently with each other.
type Extractor struct {
	sampleRate int
	window     int
	pitch      PitchTracker

	audio *rolling.SyncWindow[float32]

	pitchStd *rolling.Window[float64]
	jitter   *rolling.Window[float64]
	shimmer  *rolling.Window[float64]
	energy   *rolling.Window[float64]

	last Metrics
}

func New(opts ...Option) *Extractor {
	c := config{
		sampleRate:    16000,
		bufferSeconds: 5,
		windowSeconds: 1,
		history:       30,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.sampleRate < 1 {
		c.sampleRate = 16000
	}
	window := max(1, int(float64(c.sampleRate)*c.windowSeconds))
	capacity := max(window, int(float64(c.sampleRate)*c.bufferSeconds))

	return &Extractor{
		sampleRate: c.sampleRate,
		window:     window,
		pitch:      NewPitchTracker(c.sampleRate),
		audio:      rolling.NewSync[float32](capacity),
		pitchStd:   rolling.New[float64](c.history),
		jitter:     rolling.New[float64](c.history),
		shimmer:    rolling.New[float64](c.history),
		energy:     rolling.New[float64](c.history),
	}
}

// Write appends captured samples.
func (e *Extractor) Write(samples []float32) {
	e.audio.Append(samples...)
}

// WritePCM16 decodes and appends little-endian signed 16-bit mono samples.
func (e *Extractor) WritePCM16(b []byte) {
	e.audio.Append(DecodePCM16(b)...)
}

// Buffered returns the number of samples held.
func (e *Extractor) Buffered() int { return e.audio.Len() }

// Analyze scores the most recent window of audio.
func (e *Extractor) Analyze() Result {
	n := e.audio.Len()
	if n < e.window {
		return Result{
			Status:   StatusBuffering,
			Progress: float64(n) / float64(e.window) * 100,
		}
	}

	raw := e.audio.Tail(e.window)
	x := make([]float64, len(raw))
	for i, v := range raw {
		x[i] = float64(v)
	}
	x = dsp.PeakNormalize(x)

	f0 := Voiced(e.pitch.Track(x))
	m := Metrics{VoicedFrames: len(f0)}
	m.PitchMean, m.PitchStd = PitchStats(f0)
	m.Jitter = Jitter(f0)
	m.Shimmer = Shimmer(x)
	m.Energy = Energy(x)

	if m.PitchMean > 0 {
		e.pitchStd.Push(m.PitchStd)
		e.jitter.Push(m.Jitter)
		e.shimmer.Push(m.Shimmer)
		e.energy.Push(m.Energy)
	}

	var terms []float64
	if e.pitchStd.Len() > minPitchHistory {
		if baseline := e.pitchStd.Median(); baseline > 0 {
			terms = append(terms, dsp.Clamp(m.PitchStd/baseline*pitchScale, 0, 100))
		}
	}
	terms = append(terms,
		dsp.Clamp(m.Jitter/jitterScale*100, 0, 100),
		dsp.Clamp(m.Shimmer/shimmerScale*100, 0, 100),
	)
	var sum float64
	for _, v := range terms {
		sum += v
	}
	m.StressScore = dsp.Clamp(sum/float64(len(terms)), 0, 100)
	e.last = m

	status := StatusActive
	if m.VoicedFrames == 0 && m.StressScore == 0 {
		status = StatusNoSignal
	}
	return Result{Status: status, Progress: 100, Score: m.StressScore, Metrics: m}
}

// Score returns the stress score of the last analyzed window.
func (e *Extractor) Score() float64 { return e.last.StressScore }

// Baseline returns the median of each feature history.
func (e *Extractor) Baseline() Metrics {
	return Metrics{
		PitchStd: e.pitchStd.Median(),
		Jitter:   e.jitter.Median(),
		Shimmer:  e.shimmer.Median(),
		Energy:   e.energy.Median(),
	}
}

// Reset drops buffered audio and every feature history.
func (e *Extractor) Reset() {
	e.audio.Reset()
	e.pitchStd.Reset()
	e.jitter.Reset()
	e.shimmer.Reset()
	e.energy.Reset()
	e.last = Metrics{}
}
