package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"parkingserver/internal/config"
	"parkingserver/internal/logger"
	"parkingserver/internal/route"
	"parkingserver/internal/service/camera"
	"parkingserver/internal/service/detection"
	"parkingserver/internal/service/telemetry"
	"parkingserver/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	detector   *detection.Detector
	hubService *websocket.HubService
	server     *http.Server
}

// NewApp builds every service from cfg. Nothing runs until Run.
func NewApp(cfg *config.Config, log *logger.Logger) *App {
	return newApp(cfg, log, camera.NewDevice(cfg.CameraIndex), telemetry.NewThingSpeak(cfg))
}

func newApp(cfg *config.Config, log *logger.Logger, source camera.FrameSource, sink detection.Publisher) *App {
	hub := websocket.NewHubService(log)

	opts := []detection.Option{detection.WithListener(hub.PublishState)}
	if cfg.PreviewEnabled {
		opts = append(opts, detection.WithPreview(hub.PublishPreview))
	}
	detector := detection.NewDetector(cfg, source, sink, log, opts...)

	return &App{
		config:     cfg,
		logger:     log,
		detector:   detector,
		hubService: hub,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           route.SetupRoutes(detector, hub, cfg, log),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Detector returns the detection loop driven by the app.
func (a *App) Detector() *detection.Detector {
	return a.detector
}

// Run starts detection and serves HTTP until ctx is cancelled, then shuts the
// server down and stops the detector.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hubService.Run(hubCtx)

	if err := a.detector.Start(); err != nil {
		ln.Close()
		return fmt.Errorf("failed to start detector: %w", err)
	}
	defer a.detector.Stop()

	a.logger.Info("Parking monitor listening on %s", ln.Addr())
	a.logger.Info("Camera %d, %d slots, telemetry %s", a.config.CameraIndex, len(a.config.SlotBoxes), a.config.ThingSpeakURL)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}
	return nil
}
