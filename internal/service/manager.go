// Package service runs the live session: a bounded tick queue drained by a
// single worker that advances the pipeline and broadcasts every Record.
package service

import (
	"encoding/json"
	"sync"
	"time"

	"liedar/internal/config"
	"liedar/internal/fusion"
	"liedar/internal/landmark"
	"liedar/internal/logger"
	"liedar/internal/pipeline"
	"liedar/internal/pulse"
)

// Frame is a decoded video frame the worker samples and then releases.
type Frame interface {
	pulse.Frame
	Close() error
}

// Decoder turns an encoded image (JPEG, PNG) into a Frame.
type Decoder func(b []byte) (Frame, error)

// Broadcaster delivers serialized Records to viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// FrameTask is one queued video tick. Frame, when set, is used as is;
// otherwise Image is decoded. Landmarks supplied by the client take the
// place of face detection.
type FrameTask struct {
	Time      time.Time
	Image     []byte
	Frame     Frame
	Landmarks *landmark.Frame
}

type Option func(*Manager)

// WithDecoder sets how raw images are decoded. Without one, tasks carrying
// only Image bytes tick with no frame.
func WithDecoder(d Decoder) Option {
	return func(m *Manager) { m.decode = d }
}

// WithDetector sets the face detector used when a task has no landmarks.
func WithDetector(d landmark.Detector) Option {
	return func(m *Manager) { m.detector = d }
}

type Manager struct {
	pipeline *pipeline.Pipeline
	viewers  Broadcaster
	decode   Decoder
	detector landmark.Detector
	logger   *logger.Logger

	processingQueue chan FrameTask
	statusEvery     int

	mu     sync.RWMutex // guards closed against sends on a closed queue
	closed bool

	latestMu sync.RWMutex
	latest   *pipeline.Record

	wg sync.WaitGroup
}

func NewManager(p *pipeline.Pipeline, viewers Broadcaster, cfg *config.Config, logger *logger.Logger, opts ...Option) *Manager {
	statusEvery := cfg.StatusEvery
	if statusEvery <= 0 {
		statusEvery = cfg.FPS
	}
	m := &Manager{
		pipeline:        p,
		viewers:         viewers,
		logger:          logger,
		processingQueue: make(chan FrameTask, cfg.QueueSize),
		statusEvery:     statusEvery,
	}
	for _, opt := range opts {
		opt(m)
	}

	// Ticks must be analyzed in arrival order, so there is exactly one worker.
	m.wg.Add(1)
	go m.tickWorker()

	m.logger.Info("🎬 Manager started - queue of %d frames, status every %d ticks", cfg.QueueSize, statusEvery)
	return m
}

// HandleFrame queues a tick without blocking. It reports false when the
// frame was dropped because the queue is full or the manager stopped.
func (m *Manager) HandleFrame(task FrameTask) bool {
	if task.Time.IsZero() {
		task.Time = time.Now()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		release(task.Frame)
		return false
	}
	select {
	case m.processingQueue <- task:
		return true
	default:
		m.logger.Warning("⚠️  Tick queue full - dropping frame")
		release(task.Frame)
		return false
	}
}

// HandleAudio feeds little-endian 16-bit mono PCM to the voice buffer.
func (m *Manager) HandleAudio(pcm []byte) {
	m.pipeline.WritePCM16(pcm)
}

func (m *Manager) tickWorker() {
	defer m.wg.Done()

	m.logger.Info("🔧 Tick worker started")
	for task := range m.processingQueue {
		m.tick(task)
	}
	m.logger.Info("🔧 Tick worker stopped")
}

func (m *Manager) tick(task FrameTask) {
	frame := task.Frame
	if frame == nil && len(task.Image) > 0 && m.decode != nil {
		decoded, err := m.decode(task.Image)
		if err != nil {
			m.logger.Warning("🖼️  Frame decode failed: %v", err)
		} else {
			frame = decoded
		}
	}
	defer release(frame)

	in := pipeline.Input{Time: task.Time}
	if frame != nil {
		in.Frame = frame
	}
	switch {
	case task.Landmarks != nil:
		in.Observation = landmark.Observation{Landmarks: task.Landmarks}
	case frame != nil && m.detector != nil:
		in.Observation, _ = m.detector.Detect(frame)
	}

	rec := m.pipeline.Tick(in)
	m.latestMu.Lock()
	m.latest = &rec
	m.latestMu.Unlock()

	if m.viewers != nil {
		msg, err := json.Marshal(rec)
		if err != nil {
			m.logger.Error("Failed to encode record: %v", err)
		} else {
			m.viewers.Broadcast(msg)
		}
	}

	if rec.Tick%m.statusEvery == 0 {
		m.logger.Info("📊 Tick %d: honesty %.1f (%s), BPM %.1f, pulse %s, voice %s",
			rec.Tick, rec.HonestyScore, rec.AlertLevel, rec.BPM, rec.Pulse.Status, rec.VoiceStatus)
	}
}

// Latest returns the most recent Record, if any tick ran since the last reset.
func (m *Manager) Latest() (pipeline.Record, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	if m.latest == nil {
		return pipeline.Record{}, false
	}
	return *m.latest, true
}

func (m *Manager) Status() pipeline.Status {
	return m.pipeline.Status()
}

// QueueDepth is the number of frames waiting for the worker.
func (m *Manager) QueueDepth() int {
	return len(m.processingQueue)
}

// Reset starts a new session. Queued frames are still analyzed, against the
// fresh histories.
func (m *Manager) Reset() {
	m.pipeline.Reset()
	m.latestMu.Lock()
	m.latest = nil
	m.latestMu.Unlock()
	m.logger.Info("🔄 Session reset")
}

func (m *Manager) UpdateWeights(opts ...fusion.WeightOption) (fusion.Weights, error) {
	w, err := m.pipeline.UpdateWeights(opts...)
	if err != nil {
		m.logger.Warning("⚖️  Rejected weights update: %v", err)
		return w, err
	}
	m.logger.Info("⚖️  Weights set to facial %.3f, voice %.3f, pulse %.3f", w.Facial, w.Voice, w.Pulse)
	return w, nil
}

func (m *Manager) Weights() fusion.Weights {
	return m.pipeline.Weights()
}

// Stop drains the queue and waits for the worker. Later frames are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.processingQueue)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("🛑 Tick worker stopped, manager closed")
}

func release(f Frame) {
	if f != nil {
		_ = f.Close()
	}
}

