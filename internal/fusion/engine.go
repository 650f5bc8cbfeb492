// Package fusion combines the per-modality stress scores into a smoothed
// honesty score and an alert level.
package fusion

import (
	"liedar/internal/dsp"
	"liedar/internal/rolling"
)

// neutralHonesty is reported before any sample has been fused.
const neutralHonesty = 50.0

// Components breaks a combined score down by modality.
type Components struct {
	FacialRaw          float64 `json:"facial_raw"`
	VoiceRaw           float64 `json:"voice_raw"`
	PulseRaw           float64 `json:"pulse_raw"`
	FacialContribution float64 `json:"facial_contribution"`
	VoiceContribution  float64 `json:"voice_contribution"`
	PulseContribution  float64 `json:"pulse_contribution"`
}

// Assessment is the result of one Analyze call.
type Assessment struct {
	HonestyScore   float64    `json:"honesty_score"`
	Instantaneous  float64    `json:"instantaneous_honesty"`
	Combined       float64    `json:"combined_stress"`
	AlertLevel     AlertLevel `json:"alert_level"`
	Components     Components `json:"component_scores"`
	Interpretation string     `json:"interpretation"`
	Weights        Weights    `json:"weights"`
}

type Option func(*Engine)

// WithSmoothing sets how many instantaneous scores the honesty score
// averages.
func WithSmoothing(n int) Option {
	return func(e *Engine) { e.history = rolling.New[float64](n) }
}

// Engine fuses stress scores. It is not safe for concurrent use.
type Engine struct {
	weights Weights
	history *rolling.Window[float64]
}

// New creates an Engine with w normalized to sum to 1.
func New(w Weights, opts ...Option) (*Engine, error) {
	norm, err := w.Normalize()
	if err != nil {
		return nil, err
	}
	e := &Engine{weights: norm, history: rolling.New[float64](10)}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Analyze fuses one set of stress scores, each clamped to [0,100].
func (e *Engine) Analyze(facial, voice, pulse float64) Assessment {
	facial = dsp.Clamp(facial, 0, 100)
	voice = dsp.Clamp(voice, 0, 100)
	pulse = dsp.Clamp(pulse, 0, 100)

	c := Components{
		FacialRaw:          facial,
		VoiceRaw:           voice,
		PulseRaw:           pulse,
		FacialContribution: facial * e.weights.Facial,
		VoiceContribution:  voice * e.weights.Voice,
		PulseContribution:  pulse * e.weights.Pulse,
	}
	combined := c.FacialContribution + c.VoiceContribution + c.PulseContribution
	instant := dsp.Clamp(100-combined, 0, 100)

	e.history.Push(instant)
	honesty := e.Honesty()
	level := Classify(honesty)

	return Assessment{
		HonestyScore:   honesty,
		Instantaneous:  instant,
		Combined:       combined,
		AlertLevel:     level,
		Components:     c,
		Interpretation: Interpret(honesty, level),
		Weights:        e.weights,
	}
}

// Honesty returns the mean of the recent instantaneous scores, or 50 when
// nothing has been fused since the last Reset.
func (e *Engine) Honesty() float64 {
	if e.history.Len() == 0 {
		return neutralHonesty
	}
	return dsp.Clamp(e.history.Mean(), 0, 100)
}

// Weights returns the current normalized weights.
func (e *Engine) Weights() Weights { return e.weights }

// UpdateWeights applies opts to the current weights and renormalizes. On
// error the previous weights are kept.
func (e *Engine) UpdateWeights(opts ...WeightOption) (Weights, error) {
	next := e.weights
	for _, opt := range opts {
		opt(&next)
	}
	norm, err := next.Normalize()
	if err != nil {
		return e.weights, err
	}
	e.weights = norm
	return norm, nil
}

// Reset clears the smoothing history. Weights are kept.
func (e *Engine) Reset() {
	e.history.Reset()
}
