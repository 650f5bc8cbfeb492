// Package pipeline runs one analysis tick across the facial, pulse and voice
// scorers and fuses their scores into a Record.
package pipeline

import (
	"sync"
	"time"

	"liedar/internal/facial"
	"liedar/internal/fusion"
	"liedar/internal/landmark"
	"liedar/internal/pulse"
	"liedar/internal/voice"
)

// Input is everything one video tick provides. Frame may be nil when the
// image could not be decoded; Observation may be empty when no face was
// found.
type Input struct {
	Time        time.Time
	Frame       pulse.Frame
	Observation landmark.Observation
}

// Record is the per-tick output handed to viewers and the replay CLI.
type Record struct {
	Tick            int               `json:"tick"`
	Timestamp       time.Time         `json:"timestamp"`
	HonestyScore    float64           `json:"honesty_score"`
	AlertLevel      fusion.AlertLevel `json:"alert_level"`
	Interpretation  string            `json:"interpretation"`
	ComponentScores fusion.Components `json:"component_scores"`
	Weights         fusion.Weights    `json:"weights"`
	BPM             float64           `json:"bpm"`
	Pulse           pulse.Result      `json:"pulse"`
	FaceDetected    bool              `json:"face_detected"`
	FacialMetrics   *facial.Metrics   `json:"facial_metrics,omitempty"`
	VoiceMetrics    voice.Metrics     `json:"voice_metrics"`
	VoiceStatus     voice.Status      `json:"voice_status"`
	VoiceProgress   float64           `json:"voice_progress"`
}

// Status is a snapshot of the running session.
type Status struct {
	Ticks         int               `json:"ticks"`
	HonestyScore  float64           `json:"honesty_score"`
	AlertLevel    fusion.AlertLevel `json:"alert_level"`
	BPM           float64           `json:"bpm"`
	PulseStress   float64           `json:"pulse_stress"`
	Weights       fusion.Weights    `json:"weights"`
	FacialEnabled bool              `json:"facial_enabled"`
	FacialFrames  int               `json:"facial_frames"`
	BlinkCount    int               `json:"blink_count"`
	VoiceScore    float64           `json:"voice_score"`
	VoiceBaseline voice.Metrics     `json:"voice_baseline"`
	AudioBuffered int               `json:"audio_buffered"`
}

// Pipeline owns the scorers of one session. Tick, Reset and UpdateWeights
// are serialized; WriteAudio may be called from any goroutine.
type Pipeline struct {
	mu     sync.Mutex
	facial *facial.Scorer
	pulse  *pulse.Estimator
	voice  *voice.Extractor
	engine *fusion.Engine
	ticks  int
}

// New assembles a Pipeline. A nil facial scorer runs the session without
// the facial modality; its stress is then fused as 0.
func New(f *facial.Scorer, p *pulse.Estimator, v *voice.Extractor, e *fusion.Engine) *Pipeline {
	return &Pipeline{facial: f, pulse: p, voice: v, engine: e}
}

// Tick analyzes one video frame together with the audio buffered so far.
func (p *Pipeline) Tick(in Input) Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ticks++
	if in.Time.IsZero() {
		in.Time = time.Now()
	}

	rec := Record{
		Tick:         p.ticks,
		Timestamp:    in.Time,
		FaceDetected: !in.Observation.Empty(),
	}

	var facialStress float64
	if p.facial != nil {
		fr := p.facial.Analyze(in.Observation.Landmarks)
		if !fr.NoSignal {
			facialStress = fr.Score
			m := fr.Metrics
			rec.FacialMetrics = &m
		}
	}

	region, _ := pulse.Region(in.Observation)
	rec.Pulse = p.pulse.Process(in.Frame, region)
	rec.BPM = rec.Pulse.BPM

	vr := p.voice.Analyze()
	rec.VoiceMetrics = vr.Metrics
	rec.VoiceStatus = vr.Status
	rec.VoiceProgress = vr.Progress

	a := p.engine.Analyze(facialStress, vr.Score, rec.Pulse.Stress)
	rec.HonestyScore = a.HonestyScore
	rec.AlertLevel = a.AlertLevel
	rec.Interpretation = a.Interpretation
	rec.ComponentScores = a.Components
	rec.Weights = a.Weights

	return rec
}

// WriteAudio feeds captured samples to the voice extractor.
func (p *Pipeline) WriteAudio(samples []float32) {
	p.voice.Write(samples)
}

// WritePCM16 feeds little-endian signed 16-bit mono audio.
func (p *Pipeline) WritePCM16(b []byte) {
	p.voice.WritePCM16(b)
}

// Reset clears every scorer history and the tick counter. Weights are kept.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.facial != nil {
		p.facial.Reset()
	}
	p.pulse.Reset()
	p.voice.Reset()
	p.engine.Reset()
	p.ticks = 0
}

// UpdateWeights changes the fusion weights between ticks.
func (p *Pipeline) UpdateWeights(opts ...fusion.WeightOption) (fusion.Weights, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.UpdateWeights(opts...)
}

func (p *Pipeline) Weights() fusion.Weights {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Weights()
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	honesty := p.engine.Honesty()
	st := Status{
		Ticks:         p.ticks,
		HonestyScore:  honesty,
		AlertLevel:    fusion.Classify(honesty),
		BPM:           p.pulse.BPM(),
		PulseStress:   p.pulse.Stress(),
		Weights:       p.engine.Weights(),
		FacialEnabled: p.facial != nil,
		VoiceScore:    p.voice.Score(),
		VoiceBaseline: p.voice.Baseline(),
		AudioBuffered: p.voice.Buffered(),
	}
	if p.facial != nil {
		st.FacialFrames = p.facial.Frames()
		st.BlinkCount = p.facial.BlinkCount()
	}
	return st
}
