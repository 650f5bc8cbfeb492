package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liedar/internal/config"
	"liedar/internal/facial"
	"liedar/internal/fusion"
	"liedar/internal/landmark"
	"liedar/internal/logger"
	"liedar/internal/pipeline"
	"liedar/internal/pulse"
	"liedar/internal/voice"
)

type fakeFrame struct {
	closed atomic.Bool
}

func (f *fakeFrame) Bounds() image.Rectangle { return image.Rect(0, 0, 640, 480) }

func (f *fakeFrame) ChannelMean(image.Rectangle, pulse.Channel) (float64, error) {
	return 100, nil
}

func (f *fakeFrame) Close() error {
	f.closed.Store(true)
	return nil
}

type recordingViewer struct {
	mu       sync.Mutex
	messages [][]byte
	entered  chan struct{}
	gate     chan struct{}
}

func (v *recordingViewer) Broadcast(msg []byte) {
	if v.entered != nil {
		v.entered <- struct{}{}
	}
	if v.gate != nil {
		<-v.gate
	}
	v.mu.Lock()
	v.messages = append(v.messages, msg)
	v.mu.Unlock()
}

func (v *recordingViewer) records(t *testing.T) []pipeline.Record {
	t.Helper()
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]pipeline.Record, 0, len(v.messages))
	for _, msg := range v.messages {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(msg, &rec))
		out = append(out, pipeline.Record{Tick: int(rec["tick"].(float64)), FaceDetected: rec["face_detected"].(bool)})
	}
	return out
}

// syncBuffer lets a test read logs while the worker may still write them.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(queue int) *config.Config {
	return &config.Config{FPS: 30, QueueSize: queue, StatusEvery: 2}
}

func newTestManager(t *testing.T, queue int, viewers Broadcaster, log io.Writer, opts ...Option) *Manager {
	t.Helper()
	e, err := fusion.New(fusion.DefaultWeights())
	require.NoError(t, err)
	p := pipeline.New(facial.New(), pulse.New(30), voice.New(), e)
	return NewManager(p, viewers, testConfig(queue), logger.NewWriterLogger(log), opts...)
}

func TestManager_TicksInOrderAndBroadcasts(t *testing.T) {
	viewers := &recordingViewer{}
	var logs bytes.Buffer
	m := newTestManager(t, 10, viewers, &logs)

	frames := make([]*fakeFrame, 4)
	for i := range frames {
		frames[i] = &fakeFrame{}
		require.True(t, m.HandleFrame(FrameTask{Frame: frames[i]}))
	}
	m.Stop()

	recs := viewers.records(t)
	require.Len(t, recs, 4)
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.Tick)
	}
	for _, f := range frames {
		assert.True(t, f.closed.Load(), "frame must be released after its tick")
	}

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, 4, latest.Tick)
	assert.Equal(t, 4, m.Status().Ticks)

	assert.Contains(t, logs.String(), "Tick 2:")
	assert.Contains(t, logs.String(), "Tick 4:")
	assert.NotContains(t, logs.String(), "Tick 3:")
}

func TestManager_DecodesImages(t *testing.T) {
	viewers := &recordingViewer{}
	decoded := &fakeFrame{}
	var detected atomic.Int32
	detector := landmark.DetectorFunc(func(img landmark.Image) (landmark.Observation, bool) {
		detected.Add(1)
		return landmark.Observation{Face: image.Rect(100, 100, 300, 350)}, true
	})
	m := newTestManager(t, 10, viewers, io.Discard,
		WithDecoder(func(b []byte) (Frame, error) {
			if string(b) == "broken" {
				return nil, errors.New("not an image")
			}
			return decoded, nil
		}),
		WithDetector(detector),
	)

	m.HandleFrame(FrameTask{Image: []byte("jpeg")})
	m.HandleFrame(FrameTask{Image: []byte("broken")})
	m.Stop()

	recs := viewers.records(t)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].FaceDetected)
	assert.False(t, recs[1].FaceDetected, "an undecodable image ticks without a frame")
	assert.Equal(t, int32(1), detected.Load())
	assert.True(t, decoded.closed.Load())
}

func TestManager_LandmarksSkipDetection(t *testing.T) {
	viewers := &recordingViewer{}
	detector := landmark.DetectorFunc(func(landmark.Image) (landmark.Observation, bool) {
		t.Error("detector must not run when landmarks are supplied")
		return landmark.Observation{}, false
	})
	m := newTestManager(t, 10, viewers, io.Discard, WithDetector(detector))

	lm := landmark.NewFrame(640, 480, map[landmark.ID]landmark.Point{landmark.UpperLipCenter: {X: 0.5, Y: 0.6}})
	m.HandleFrame(FrameTask{Frame: &fakeFrame{}, Landmarks: lm})
	m.Stop()

	recs := viewers.records(t)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].FaceDetected)
}

func TestManager_DropsWhenQueueFull(t *testing.T) {
	viewers := &recordingViewer{entered: make(chan struct{}, 3), gate: make(chan struct{})}
	var logs bytes.Buffer
	m := newTestManager(t, 1, viewers, &logs)

	require.True(t, m.HandleFrame(FrameTask{Frame: &fakeFrame{}}))
	select {
	case <-viewers.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never reached the broadcast")
	}

	require.True(t, m.HandleFrame(FrameTask{Frame: &fakeFrame{}}))
	assert.Equal(t, 1, m.QueueDepth())

	dropped := &fakeFrame{}
	assert.False(t, m.HandleFrame(FrameTask{Frame: dropped}))
	assert.True(t, dropped.closed.Load())

	close(viewers.gate)
	m.Stop()

	assert.Len(t, viewers.records(t), 2)
	assert.Contains(t, logs.String(), "Tick queue full")
}

func TestManager_StopRejectsFrames(t *testing.T) {
	m := newTestManager(t, 4, nil, io.Discard)
	m.Stop()
	m.Stop()

	f := &fakeFrame{}
	assert.False(t, m.HandleFrame(FrameTask{Frame: f}))
	assert.True(t, f.closed.Load())
}

func TestManager_ResetClearsLatest(t *testing.T) {
	m := newTestManager(t, 4, nil, io.Discard)
	m.HandleFrame(FrameTask{})
	m.Stop()

	_, ok := m.Latest()
	require.True(t, ok)

	m.Reset()
	_, ok = m.Latest()
	assert.False(t, ok)
	assert.Equal(t, 0, m.Status().Ticks)
}

func TestManager_UpdateWeights(t *testing.T) {
	var logs syncBuffer
	m := newTestManager(t, 4, nil, &logs)
	defer m.Stop()

	w, err := m.UpdateWeights(fusion.Facial(1), fusion.Voice(1), fusion.Pulse(2))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w.Pulse, 1e-9)
	assert.Equal(t, w, m.Weights())

	_, err = m.UpdateWeights(fusion.Facial(-1))
	assert.ErrorIs(t, err, fusion.ErrInvalidWeights)
	assert.Equal(t, w, m.Weights())
	assert.Contains(t, logs.String(), "Rejected weights update")
}

func TestManager_HandleAudio(t *testing.T) {
	m := newTestManager(t, 4, nil, io.Discard)
	defer m.Stop()

	m.HandleAudio(make([]byte, 3200))
	assert.Equal(t, 1600, m.Status().AudioBuffered)
}
