// Package capture runs the audio device producer feeding the voice
// extractor.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrDeviceUnavailable is returned when a capture device cannot be opened
// or stops delivering data.
var ErrDeviceUnavailable = errors.New("capture: device unavailable")

// startupTimeout bounds the wait for the first audio bytes.
var startupTimeout = 5 * time.Second

const stderrTail = 4096

// Microphone streams 16-bit little-endian mono PCM from ffmpeg.
type Microphone struct {
	ctx    context.Context
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr *tailBuffer

	waitOnce sync.Once
}

// OpenMicrophone starts ffmpeg on input (the platform default when empty)
// resampled to sampleRate and waits until it delivers audio. The process
// ends with ctx.
func OpenMicrophone(ctx context.Context, sampleRate int, input string) (*Microphone, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg is required for microphone capture: %w", ErrDeviceUnavailable)
	}
	args, err := microphoneArgs(runtime.GOOS, sampleRate, input)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.WaitDelay = time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg microphone capture: %w: %w", ErrDeviceUnavailable, err)
	}

	m := &Microphone{ctx: ctx, cmd: cmd, stdout: bufio.NewReaderSize(stdout, 64<<10), stderr: stderr}
	if err := m.awaitAudio(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Microphone) awaitAudio() error {
	ready := make(chan error, 1)
	go func() {
		_, err := m.stdout.Peek(2)
		ready <- err
	}()

	timer := time.NewTimer(startupTimeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			return m.failure("ffmpeg produced no audio")
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("no audio from ffmpeg within %s: %w", startupTimeout, ErrDeviceUnavailable)
	case <-m.ctx.Done():
		return m.ctx.Err()
	}
}

func microphoneArgs(goos string, sampleRate int, input string) ([]string, error) {
	var format string
	switch goos {
	case "darwin":
		format = "avfoundation"
		if input == "" {
			input = ":0"
		}
	case "linux":
		format = "pulse"
		if input == "" {
			input = "default"
		}
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s: %w", goos, ErrDeviceUnavailable)
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format, "-i", input,
		"-ac", "1", "-ar", strconv.Itoa(sampleRate),
		"-f", "s16le", "-",
	}, nil
}

// Read returns PCM bytes. The stream ending before ctx is cancelled means
// the device went away and is reported as ErrDeviceUnavailable.
func (m *Microphone) Read(p []byte) (int, error) {
	n, err := m.stdout.Read(p)
	if errors.Is(err, io.EOF) && m.ctx.Err() == nil {
		return n, m.failure("ffmpeg stopped delivering audio")
	}
	return n, err
}

// failure reaps ffmpeg and reports what it printed.
func (m *Microphone) failure(what string) error {
	m.wait()
	if msg := strings.TrimSpace(m.stderr.String()); msg != "" {
		return fmt.Errorf("%s: %w: %s", what, ErrDeviceUnavailable, msg)
	}
	return fmt.Errorf("%s: %w", what, ErrDeviceUnavailable)
}

func (m *Microphone) wait() {
	m.waitOnce.Do(func() { _ = m.cmd.Wait() })
}

func (m *Microphone) Close() error {
	if m == nil || m.cmd == nil || m.cmd.Process == nil {
		return nil
	}
	_ = m.cmd.Process.Kill()
	m.wait()
	return nil
}

// Pump reads r in chunks of chunkBytes (rounded down to whole 16-bit
// samples) and hands each chunk to sink until r ends or ctx is cancelled.
// A final partial chunk is delivered too. Reaching the end of r is not an
// error.
func Pump(ctx context.Context, r io.Reader, chunkBytes int, sink func([]byte)) error {
	chunkBytes -= chunkBytes % 2
	if chunkBytes <= 0 {
		chunkBytes = 2
	}
	buf := make([]byte, chunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := io.ReadFull(r, buf)
		if n -= n % 2; n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sink(chunk)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		default:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read audio: %w", err)
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
