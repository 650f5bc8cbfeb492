// Package app wires configuration, logging, capture and the HTTP surface
// into one running session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"liedar/internal/capture"
	"liedar/internal/config"
	"liedar/internal/handler"
	"liedar/internal/landmark"
	"liedar/internal/logger"
	"liedar/internal/pipeline"
	"liedar/internal/route"
	"liedar/internal/service"
	"liedar/internal/service/websocket"
	"liedar/internal/vision"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	hubService *websocket.HubService
	manager    *service.Manager
	camera     *vision.Camera
	microphone *capture.Microphone
	closers    []io.Closer
}

// New loads the configuration and prepares every component. In local
// capture mode it opens the camera and the microphone; failing to do so is
// an error. The microphone process lives as long as ctx.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.config

	session, err := pipeline.FromConfig(cfg)
	if err != nil {
		return err
	}
	if !cfg.FacialEnabled {
		a.logger.Warning("🙈 Facial analysis disabled - running on voice and pulse only")
	}

	a.hubService = websocket.NewHubService(a.logger)
	opts := []service.Option{service.WithDecoder(decodeFrame)}
	detector, closers := LoadDetectors(cfg, a.logger)
	a.closers = append(a.closers, closers...)
	if detector != nil {
		opts = append(opts, service.WithDetector(detector))
	}
	a.manager = service.NewManager(session, a.hubService, cfg, a.logger, opts...)

	if cfg.CaptureMode != config.CaptureLocal {
		return nil
	}
	a.camera, err = vision.OpenCamera(cfg.CameraID, cfg.FPS)
	if err != nil {
		return err
	}
	a.microphone, err = capture.OpenMicrophone(ctx, cfg.SampleRate, cfg.AudioInput)
	if err != nil {
		return err
	}
	a.logger.Info("📷 Local capture: camera %d at %d fps, microphone at %d Hz", cfg.CameraID, cfg.FPS, cfg.SampleRate)
	return nil
}

// LoadDetectors prefers the DNN face detector and falls back to the Haar
// cascade. Without either the detector is nil and pulse relies on
// client-supplied landmarks. The closers release whatever was loaded.
func LoadDetectors(cfg *config.Config, log *logger.Logger) (landmark.Detector, []io.Closer) {
	var (
		chain   []landmark.Detector
		closers []io.Closer
	)

	dnn, err := vision.NewDNNDetector(cfg.FaceModelPath, cfg.FaceConfigPath)
	if err != nil {
		log.Warning("🤖 DNN face detector unavailable: %v", err)
	} else {
		closers = append(closers, dnn)
		chain = append(chain, dnn)
		log.Info("🤖 DNN face detector loaded from %s", cfg.FaceModelPath)
	}

	cascade, err := vision.NewCascadeDetector(cfg.CascadePath)
	if err != nil {
		log.Warning("🤖 Haar face cascade unavailable: %v", err)
	} else {
		closers = append(closers, cascade)
		chain = append(chain, cascade)
		log.Info("🤖 Haar face cascade loaded from %s", cascade.Path())
	}

	if len(chain) == 0 {
		log.Warning("⚠️  No face detector - pulse needs landmarks from the client")
		return nil, closers
	}
	return landmark.Chain(chain...), closers
}

func decodeFrame(b []byte) (service.Frame, error) {
	f, err := vision.DecodeFrame(b)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Run serves HTTP and runs the hub and the capture producers until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.hubService.Run(ctx) })

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.hubService, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if a.config.UDPPort > 0 {
		g.Go(func() error { return handler.UDPCameraHandler(ctx, a.manager, a.logger, a.config.UDPPort) })
	}
	if a.camera != nil {
		g.Go(func() error {
			return a.camera.Run(ctx, func(frame *vision.MatFrame, at time.Time) {
				a.manager.HandleFrame(service.FrameTask{Time: at, Frame: frame})
			})
		})
	}
	if a.microphone != nil {
		// 100 ms of 16-bit samples per chunk.
		chunk := a.config.SampleRate / 10 * 2
		g.Go(func() error { return capture.Pump(ctx, a.microphone, chunk, a.manager.HandleAudio) })
	}

	fmt.Printf("🚀 liedar session server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🎥 Capture: %s\n", a.config.CaptureMode)
	fmt.Printf("⚖️  Weights: %+v\n", a.manager.Weights())

	return g.Wait()
}

func (a *App) close() {
	if a.microphone != nil {
		a.microphone.Close()
	}
	if a.camera != nil {
		a.camera.Close()
	}
	if a.manager != nil {
		a.manager.Stop()
	}
	for _, c := range a.closers {
		c.Close()
	}
	a.logger.Close()
}
