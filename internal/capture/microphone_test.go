package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicrophoneArgs(t *testing.T) {
	args, err := microphoneArgs("linux", 16000, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "pulse", "-i", "default",
		"-ac", "1", "-ar", "16000",
		"-f", "s16le", "-",
	}, args)

	args, err = microphoneArgs("darwin", 8000, ":2")
	require.NoError(t, err)
	assert.Contains(t, args, "avfoundation")
	assert.Contains(t, args, ":2")
	assert.Contains(t, args, "8000")

	_, err = microphoneArgs("plan9", 16000, "")
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestPump_DeliversWholeSamples(t *testing.T) {
	var got [][]byte
	err := Pump(context.Background(), bytes.NewReader(make([]byte, 2501)), 1001, func(b []byte) {
		got = append(got, b)
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Len(t, got[0], 1000)
	assert.Len(t, got[1], 1000)
	assert.Len(t, got[2], 500)
}

func TestPump_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Pump(ctx, zeroReader{}, 64, func([]byte) {
		calls++
		if calls == 3 {
			cancel()
		}
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPump_ReadError(t *testing.T) {
	boom := errors.New("device gone")
	err := Pump(context.Background(), io.MultiReader(bytes.NewReader(make([]byte, 10)), errReader{boom}), 64, func([]byte) {})
	assert.ErrorIs(t, err, boom)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// fakeFFmpeg puts a shell script named ffmpeg first on PATH.
func fakeFFmpeg(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestOpenMicrophone_DeviceMissing(t *testing.T) {
	fakeFFmpeg(t, `echo "default: No such device" >&2; exit 1`)

	mic, err := OpenMicrophone(context.Background(), 16000, "")
	assert.Nil(t, mic)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "No such device")
}

func TestOpenMicrophone_NoAudioTimesOut(t *testing.T) {
	fakeFFmpeg(t, `exec sleep 10`)
	prev := startupTimeout
	startupTimeout = 200 * time.Millisecond
	t.Cleanup(func() { startupTimeout = prev })

	start := time.Now()
	_, err := OpenMicrophone(context.Background(), 16000, "")
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMicrophone_StreamEndingIsDeviceFailure(t *testing.T) {
	fakeFFmpeg(t, `head -c 6400 /dev/zero; echo "device unplugged" >&2`)

	mic, err := OpenMicrophone(context.Background(), 16000, "")
	require.NoError(t, err)
	defer mic.Close()

	total := 0
	err = Pump(context.Background(), mic, 3200, func(b []byte) { total += len(b) })
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.True(t, strings.Contains(err.Error(), "device unplugged"), err.Error())
	assert.Equal(t, 6400, total)
}

func TestMicrophone_CancelIsCleanStop(t *testing.T) {
	fakeFFmpeg(t, `exec cat /dev/zero`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mic, err := OpenMicrophone(ctx, 16000, "")
	require.NoError(t, err)
	defer mic.Close()

	chunks := 0
	err = Pump(ctx, mic, 3200, func([]byte) {
		chunks++
		if chunks == 2 {
			cancel()
		}
	})
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, chunks, 2)
}
