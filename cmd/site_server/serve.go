package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/cobra"

	"github.com/ironwatch/site/internal/assets"
	"github.com/ironwatch/site/internal/blocks"
	"github.com/ironwatch/site/internal/camera"
	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/internal/dispatcher"
	"github.com/ironwatch/site/internal/logging"
	"github.com/ironwatch/site/internal/mail"
	"github.com/ironwatch/site/internal/monitor"
	"github.com/ironwatch/site/internal/request"
	"github.com/ironwatch/site/internal/scene"
	"github.com/ironwatch/site/internal/server"
	"github.com/ironwatch/site/internal/session"
	"github.com/ironwatch/site/internal/storage"
	"github.com/ironwatch/site/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(serviceName)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger
	logger.Info("Starting up", "version", Version, "build", BuildDate)

	a.connectInflux(ctx)

	client, cache, err := a.newCMSClient(ctx)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("CMS is not reachable yet", "error", err)
	}

	scenes, err := a.newSceneSource(ctx, client)
	if err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	backend, err := a.initStorage(client)
	if err != nil {
		return err
	}

	mailCfg := config.GetMailConfig()
	sender, err := mail.NewSender(mailCfg, logger.With("component", "mail"))
	if err != nil {
		_ = backend.Close()
		return err
	}
	if hs, ok := sender.(*mail.HTTPSender); ok {
		if err := hs.Healthcheck(ctx); err != nil {
			logger.Warn("Mail API is not reachable", "error", err)
		}
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		_ = backend.Close()
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	workers := worker.NewManager(worker.Dependencies{
		Backend:       backend,
		Sender:        sender,
		Logger:        logger.With("component", "worker"),
		MailQueueSize: mailCfg.QueueSize,
	})
	workers.RegisterHandlers(d)

	var reqOpts []request.Option
	if a.influx != nil {
		reqOpts = append(reqOpts, request.WithRecorder(a.influx))
	}
	requests, err := request.NewService(request.Config{
		MailFrom:   mailCfg.From,
		BusinessTo: mailCfg.BusinessTo,
	}, d, logger.With("component", "request"), reqOpts...)
	if err != nil {
		_ = backend.Close()
		return err
	}

	camCfg, err := cameraConfig(config.GetCameraConfig())
	if err != nil {
		_ = backend.Close()
		return err
	}
	srvCfg := config.GetServerConfig()
	sessions := session.NewManager(session.Config{
		Camera:         camCfg,
		MainRoute:      srvCfg.MainRoute,
		AllowedOrigins: srvCfg.AllowedOrigins,
	}, scenes, d, logger.With("component", "session"))

	a.attrs = func() []slog.Attr {
		return []slog.Attr{
			slog.Int("sessions", sessions.Active()),
			slog.String("storage", storageCfg.Type),
		}
	}

	preloader := a.newPreloader()
	if config.GetAssetsConfig().PreloadOnStart {
		go preloadAll(ctx, scenes, preloader, logger)
	}

	renderer, err := blocks.NewRenderer(logger.With("component", "blocks"))
	if err != nil {
		_ = backend.Close()
		return err
	}

	monCfg := config.GetMonitorConfig()
	var sink monitor.Sink
	if a.influx != nil {
		sink = a.influx
	}
	mon := monitor.NewService(monitor.Dependencies{
		Logger:      logger.With("component", "monitor"),
		Sessions:    sessions.Active,
		Dispatcher:  d,
		MailCommand: worker.CmdSendMail,
		Mails: func() (int, int) {
			st := workers.Stats()
			return st.MailsSent, st.MailsFailed
		},
		PendingDeliveries: workers.PendingDeliveries,
		CacheStats:        client.CacheStats,
		PreloadedModels:   preloader.Count,
		Sink:              sink,
		StatusFile:        monCfg.StatusFile,
		Interval:          monCfg.Interval,
	})
	if err := mon.Start(); err != nil {
		logger.Warn("Status monitor not started", "error", err)
	}

	srv := server.New(server.Dependencies{
		Content:   client,
		Scenes:    scenes,
		Assets:    preloader,
		Requests:  requests,
		Renderer:  renderer,
		Sessions:  sessions,
		Logger:    logger.With("component", "http"),
		MainRoute: srvCfg.MainRoute,
		StaticDir: srvCfg.StaticDir,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(srvCfg.Address, srvCfg.ReadTimeout, srvCfg.WriteTimeout)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srvCfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sessions.Close()
	mon.Stop()
	// Queued mails are delivered before the store closes.
	if err := d.Close(shutdownCtx); err != nil {
		logger.Warn("Dispatcher did not drain", "error", err)
	}
	closeStorage(backend, logger)

	return serveErr
}

func closeStorage(backend storage.Backend, logger *slog.Logger) {
	if err := backend.Close(); err != nil {
		logger.Error("Closing storage backend", "error", err)
		return
	}
	if ex, ok := backend.(storage.Exporter); ok && ex.ExportedFilePath() != "" {
		logger.Info("Requests exported", "path", ex.ExportedFilePath())
	}
}

// cameraConfig turns the camera settings into a coordinator config.
func cameraConfig(cfg config.CameraConfig) (camera.Config, error) {
	policy, err := camera.ParsePolicy(cfg.Policy)
	if err != nil {
		return camera.Config{}, err
	}
	return camera.Config{
		Duration:      cfg.Duration,
		FrameInterval: cfg.FrameInterval,
		Policy:        policy,
		DefaultPose: camera.Pose{
			Position: mgl64.Vec3(cfg.DefaultPosition),
			Target:   mgl64.Vec3(cfg.DefaultTarget),
		},
		DefaultControl: camera.ControlMap,
	}, nil
}

// preloadAll loads the models of every scene. Failures are logged.
func preloadAll(ctx context.Context, scenes scene.Source, p *assets.Preloader, logger *slog.Logger) {
	slugs, err := scenes.Slugs(ctx)
	if err != nil {
		logger.Warn("Listing scenes for preload failed", "error", err)
		return
	}
	for _, slug := range slugs {
		sc, err := scenes.Scene(ctx, slug)
		if err == nil {
			err = p.PreloadScene(ctx, sc)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("Preloading scene failed", "scene", slug, "error", err)
		}
	}
	logger.Info("Scene models preloaded", "scenes", len(slugs), "models", p.Count())
}
