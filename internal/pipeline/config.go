package pipeline

import (
	"fmt"

	"liedar/internal/config"
	"liedar/internal/facial"
	"liedar/internal/fusion"
	"liedar/internal/pulse"
	"liedar/internal/voice"
)

// FromConfig builds a session with every scorer tuned from cfg. The facial
// modality is left out, and the degraded weights used, when cfg disables it.
func FromConfig(cfg *config.Config) (*Pipeline, error) {
	var f *facial.Scorer
	if cfg.FacialEnabled {
		f = facial.New(
			facial.WithWindow(cfg.FacialWindow),
			facial.WithSensitivity(cfg.Sensitivity),
			facial.WithFPS(float64(cfg.FPS)),
			facial.WithBlinkWindow(cfg.BlinkWindow),
			facial.WithBlinkThreshold(cfg.BlinkThreshold),
			facial.WithBlinkPolicy(cfg.BlinkPolicy),
		)
	}

	p := pulse.New(cfg.FPS,
		pulse.WithBuffer(cfg.PulseBufferSeconds),
		pulse.WithMinFill(cfg.PulseMinSeconds),
		pulse.WithBand(cfg.PulseLowHz, cfg.PulseHighHz),
		pulse.WithOrder(cfg.FilterOrder),
		pulse.WithHistory(cfg.BPMHistory),
		pulse.WithStressPolicy(cfg.StressPolicy),
	)

	v := voice.New(
		voice.WithSampleRate(cfg.SampleRate),
		voice.WithBuffer(cfg.AudioBufferSeconds),
		voice.WithWindow(cfg.VoiceWindowSeconds),
		voice.WithHistory(cfg.VoiceHistory),
	)

	e, err := fusion.New(cfg.SessionWeights(), fusion.WithSmoothing(cfg.SmoothingWindow))
	if err != nil {
		return nil, fmt.Errorf("fusion engine: %w", err)
	}
	return New(f, p, v, e), nil
}
