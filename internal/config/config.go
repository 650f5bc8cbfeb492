package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"liedar/internal/facial"
	"liedar/internal/fusion"
	"liedar/internal/pulse"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Capture modes.
const (
	CaptureLocal  = "local"
	CaptureRemote = "remote"
)

// FileEnv names the environment variable pointing at an optional YAML file.
const FileEnv = "LIEDAR_CONFIG"

type Config struct {
	Port         int
	Password     string
	LogDirectory string
	LogLevel     string

	CaptureMode string // local: camera + microphone on this host, remote: websocket ingest
	CameraID    int
	AudioInput  string // ffmpeg input device, empty for the platform default
	UDPPort     int    // chunked JPEG ingest over UDP, 0 disables it

	FPS                int
	PulseBufferSeconds float64
	PulseMinSeconds    float64
	PulseLowHz         float64
	PulseHighHz        float64
	FilterOrder        int
	BPMHistory         int

	SampleRate         int
	AudioBufferSeconds float64
	VoiceWindowSeconds float64
	VoiceHistory       int

	FacialEnabled  bool
	FacialWindow   int
	Sensitivity    float64
	BlinkWindow    int
	BlinkThreshold float64

	Weights         fusion.Weights
	SmoothingWindow int
	QueueSize       int
	StatusEvery     int // ticks between status log lines, 0 means once per second of video

	CascadePath    string
	FaceModelPath  string
	FaceConfigPath string

	BlinkPolicy  facial.BlinkPolicy
	StressPolicy pulse.StressPolicy
}

// Load reads .env (when present), the optional YAML file named by
// LIEDAR_CONFIG and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(FileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:         v.GetInt("port"),
		Password:     v.GetString("password"),
		LogDirectory: v.GetString("log_dir"),
		LogLevel:     v.GetString("log_level"),

		CaptureMode: strings.ToLower(v.GetString("capture_mode")),
		CameraID:    v.GetInt("camera_id"),
		AudioInput:  v.GetString("audio_input"),
		UDPPort:     v.GetInt("udp_port"),

		FPS:                v.GetInt("fps"),
		PulseBufferSeconds: v.GetFloat64("pulse_buffer_seconds"),
		PulseMinSeconds:    v.GetFloat64("pulse_min_seconds"),
		PulseLowHz:         v.GetFloat64("pulse_low_hz"),
		PulseHighHz:        v.GetFloat64("pulse_high_hz"),
		FilterOrder:        v.GetInt("filter_order"),
		BPMHistory:         v.GetInt("bpm_history"),

		SampleRate:         v.GetInt("sample_rate"),
		AudioBufferSeconds: v.GetFloat64("audio_buffer_seconds"),
		VoiceWindowSeconds: v.GetFloat64("voice_window_seconds"),
		VoiceHistory:       v.GetInt("voice_history"),

		FacialEnabled:  v.GetBool("facial_enabled"),
		FacialWindow:   v.GetInt("facial_window"),
		Sensitivity:    v.GetFloat64("sensitivity"),
		BlinkWindow:    v.GetInt("blink_window"),
		BlinkThreshold: v.GetFloat64("blink_threshold"),

		Weights: fusion.Weights{
			Facial: v.GetFloat64("weight_facial"),
			Voice:  v.GetFloat64("weight_voice"),
			Pulse:  v.GetFloat64("weight_pulse"),
		},
		SmoothingWindow: v.GetInt("smoothing_window"),
		QueueSize:       v.GetInt("queue_size"),
		StatusEvery:     v.GetInt("status_every"),

		CascadePath:    v.GetString("cascade_path"),
		FaceModelPath:  v.GetString("face_model_path"),
		FaceConfigPath: v.GetString("face_config_path"),

		BlinkPolicy: facial.BlinkPolicy{
			High:     v.GetFloat64("blink_high"),
			HighSpan: v.GetFloat64("blink_high_span"),
			Low:      v.GetFloat64("blink_low"),
			LowSpan:  v.GetFloat64("blink_low_span"),
		},
		StressPolicy: pulse.StressPolicy{
			High:     v.GetFloat64("bpm_high"),
			HighSpan: v.GetFloat64("bpm_high_span"),
			Low:      v.GetFloat64("bpm_low"),
			LowScore: v.GetFloat64("bpm_low_score"),
		},
	}
	if cfg.StatusEvery <= 0 {
		cfg.StatusEvery = cfg.FPS
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	blink := facial.DefaultBlinkPolicy()
	stress := pulse.DefaultStressPolicy()
	weights := fusion.DefaultWeights()

	defaults := map[string]any{
		"port":      8080,
		"password":  "liedar",
		"log_dir":   filepath.Join(".", "logs"),
		"log_level": "info",

		"capture_mode": CaptureRemote,
		"camera_id":    0,
		"audio_input":  "",
		"udp_port":     0,

		"fps":                  30,
		"pulse_buffer_seconds": 10.0,
		"pulse_min_seconds":    5.0,
		"pulse_low_hz":         0.8,
		"pulse_high_hz":        3.0,
		"filter_order":         3,
		"bpm_history":          10,

		"sample_rate":          16000,
		"audio_buffer_seconds": 5.0,
		"voice_window_seconds": 1.0,
		"voice_history":        30,

		"facial_enabled":  true,
		"facial_window":   30,
		"sensitivity":     2.0,
		"blink_window":    60,
		"blink_threshold": 5.0,

		"weight_facial":    weights.Facial,
		"weight_voice":     weights.Voice,
		"weight_pulse":     weights.Pulse,
		"smoothing_window": 10,
		"queue_size":       100,
		"status_every":     0,

		"cascade_path":     filepath.Join(".", "models", "haarcascade_frontalface_default.xml"),
		"face_model_path":  filepath.Join(".", "models", "res10_300x300_ssd_iter_140000.caffemodel"),
		"face_config_path": filepath.Join(".", "models", "deploy.prototxt"),

		"blink_high":      blink.High,
		"blink_high_span": blink.HighSpan,
		"blink_low":       blink.Low,
		"blink_low_span":  blink.LowSpan,

		"bpm_high":      stress.High,
		"bpm_high_span": stress.HighSpan,
		"bpm_low":       stress.Low,
		"bpm_low_score": stress.LowScore,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Validate reports the first setting the analysis cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d: %w", c.Port, ErrInvalid)
	case c.UDPPort < 0 || c.UDPPort > 65535:
		return fmt.Errorf("udp port %d: %w", c.UDPPort, ErrInvalid)
	case c.CaptureMode != CaptureLocal && c.CaptureMode != CaptureRemote:
		return fmt.Errorf("capture mode %q: %w", c.CaptureMode, ErrInvalid)
	case c.FPS <= 0:
		return fmt.Errorf("fps %d: %w", c.FPS, ErrInvalid)
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate %d: %w", c.SampleRate, ErrInvalid)
	case c.PulseMinSeconds <= 0 || c.PulseBufferSeconds < c.PulseMinSeconds:
		return fmt.Errorf("pulse buffer %.1fs with minimum %.1fs: %w", c.PulseBufferSeconds, c.PulseMinSeconds, ErrInvalid)
	case c.VoiceWindowSeconds <= 0 || c.AudioBufferSeconds < c.VoiceWindowSeconds:
		return fmt.Errorf("audio buffer %.1fs with window %.1fs: %w", c.AudioBufferSeconds, c.VoiceWindowSeconds, ErrInvalid)
	case c.FilterOrder < 1:
		return fmt.Errorf("filter order %d: %w", c.FilterOrder, ErrInvalid)
	case c.PulseLowHz <= 0 || c.PulseLowHz >= c.PulseHighHz || c.PulseHighHz >= float64(c.FPS)/2:
		return fmt.Errorf("pulse band %.2f-%.2f Hz at %d fps: %w", c.PulseLowHz, c.PulseHighHz, c.FPS, ErrInvalid)
	case c.FacialWindow <= 0 || c.BlinkWindow <= 0 || c.SmoothingWindow <= 0 || c.BPMHistory <= 0 || c.VoiceHistory <= 0:
		return fmt.Errorf("window sizes must be positive: %w", ErrInvalid)
	case c.Sensitivity <= 0:
		return fmt.Errorf("sensitivity %.2f: %w", c.Sensitivity, ErrInvalid)
	case c.QueueSize <= 0:
		return fmt.Errorf("queue size %d: %w", c.QueueSize, ErrInvalid)
	}
	if _, err := c.Weights.Normalize(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// SessionWeights returns the configured weights, or the degraded split when
// the facial modality is disabled.
func (c *Config) SessionWeights() fusion.Weights {
	if !c.FacialEnabled {
		return fusion.DegradedWeights()
	}
	return c.Weights
}
