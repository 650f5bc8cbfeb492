package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liedar/internal/fusion"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.FPS)
	assert.Equal(t, 16000, cfg.SampleRate)
	assert.Equal(t, CaptureRemote, cfg.CaptureMode)
	assert.Equal(t, 30, cfg.StatusEvery)
	assert.Equal(t, fusion.DefaultWeights(), cfg.Weights)
	assert.Equal(t, 25.0, cfg.BlinkPolicy.High)
	assert.Equal(t, 90.0, cfg.StressPolicy.High)
	assert.True(t, cfg.FacialEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FPS", "25")
	t.Setenv("CAPTURE_MODE", "LOCAL")
	t.Setenv("WEIGHT_FACIAL", "0.5")
	t.Setenv("BPM_HIGH", "95")
	t.Setenv("FACIAL_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.FPS)
	assert.Equal(t, 25, cfg.StatusEvery)
	assert.Equal(t, CaptureLocal, cfg.CaptureMode)
	assert.Equal(t, 0.5, cfg.Weights.Facial)
	assert.Equal(t, 95.0, cfg.StressPolicy.High)
	assert.Equal(t, fusion.DegradedWeights(), cfg.SessionWeights())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liedar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fps: 15\nsensitivity: 3\nblink_low: 8\n"), 0o644))
	t.Setenv(FileEnv, path)
	t.Setenv("SENSITIVITY", "2.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.FPS)
	assert.Equal(t, 8.0, cfg.BlinkPolicy.Low)
	// Environment wins over the file.
	assert.Equal(t, 2.5, cfg.Sensitivity)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"FPS":                  "0",
		"SAMPLE_RATE":          "-1",
		"CAPTURE_MODE":         "satellite",
		"PULSE_MIN_SECONDS":    "20",
		"VOICE_WINDOW_SECONDS": "0",
		"QUEUE_SIZE":           "0",
		"SENSITIVITY":          "0",
		"WEIGHT_VOICE":         "-1",
		"UDP_PORT":             "70000",
		"FILTER_ORDER":         "0",
		"PULSE_LOW_HZ":         "3.5",
		"PULSE_HIGH_HZ":        "16",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate_AllZeroWeights(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Weights = fusion.Weights{}
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, fusion.ErrInvalidWeights)
}
