package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/ironwatch/site/internal/assets"
	"github.com/ironwatch/site/internal/cms"
	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/internal/influx"
	"github.com/ironwatch/site/internal/logging"
	intOtel "github.com/ironwatch/site/internal/otel"
	"github.com/ironwatch/site/internal/scene"
)

// app holds the process-wide services every command shares.
type app struct {
	start   time.Time
	slogs   *logging.SlogManager
	logger  *slog.Logger
	zlog    zerolog.Logger
	logFile *os.File
	otel    *intOtel.Provider
	influx  *influx.Manager

	// attrs is read by the log context handler on every record.
	attrs func() []slog.Attr
}

// newApp sets up logging, telemetry and the metrics sink.
func newApp(name string) (*app, error) {
	a := &app{start: time.Now(), slogs: logging.NewSlogManager()}
	a.slogs.Context = func() []slog.Attr {
		if a.attrs == nil {
			return nil
		}
		return a.attrs()
	}

	logsDir := config.GetString("logsDir")
	level := config.GetString("logLevel")

	var out io.Writer = os.Stdout
	f, err := logging.OpenLogFile(logsDir, name, a.start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging to stdout only: %v\n", err)
	} else {
		a.logFile = f
		out = io.MultiWriter(os.Stdout, f)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && a.logFile != nil {
		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      a.logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize OTel provider: %v\n", err)
		}
	}

	if gl := config.GetGraylogConfig(); gl.Enabled {
		if err := a.slogs.EnableGraylog(gl.Address, name); err != nil {
			fmt.Fprintf(os.Stderr, "Graylog disabled: %v\n", err)
		}
	}

	var provider *sdklog.LoggerProvider
	if a.otel != nil {
		provider = a.otel.LoggerProvider()
	}
	a.slogs.Setup(out, level, provider)
	a.logger = a.slogs.Logger()
	slog.SetDefault(a.logger)

	zlevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zlevel = zerolog.InfoLevel
	}
	a.zlog = zerolog.New(zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}).
		Level(zlevel).With().Timestamp().Str("service", name).Logger()

	if a.logFile != nil {
		a.logger.Info("Logging to file", "path", a.logFile.Name())
	}
	return a, nil
}

// connectInflux connects the metrics sink. It returns nil when influx is
// disabled or unusable.
func (a *app) connectInflux(ctx context.Context) *influx.Manager {
	backup := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("%s_metrics_%s.gz", serviceName, a.start.Format("20060102_150405")))
	m := influx.NewManager(config.GetInfluxConfig(), a.zlog, backup)
	if err := m.Connect(ctx); err != nil {
		if !errors.Is(err, influx.ErrDisabled) {
			a.logger.Error("Failed to set up InfluxDB", "error", err)
		}
		return nil
	}
	a.influx = m
	return m
}

// newCMSClient builds the content client with its response cache.
func (a *app) newCMSClient(ctx context.Context) (*cms.Client, cms.ResponseCache, error) {
	cacheCfg := config.GetCacheConfig()
	cache, err := cms.NewCache(ctx, cacheCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating CMS cache: %w", err)
	}

	cfg := config.GetCMSConfig()
	opts := []cms.Option{cms.WithLogger(a.logger.With("component", "cms"))}
	if cache != nil {
		opts = append(opts, cms.WithCache(cache))
	}
	if a.influx != nil {
		opts = append(opts, cms.WithObserver(a.influx.ObserveFetch))
	}
	client := cms.New(cms.Config{
		BaseURL:    cmsBaseURL(cfg),
		Dataset:    cfg.Dataset,
		APIVersion: cfg.APIVersion,
		Token:      cfg.Token,
		Timeout:    cfg.Timeout,
		TTL:        cacheCfg.TTL,
	}, opts...)
	return client, cache, nil
}

// cmsBaseURL uses the configured base URL, or the hosted API URL of the
// project when only a project ID is set.
func cmsBaseURL(cfg config.CMSConfig) string {
	if cfg.BaseURL == "" && cfg.ProjectID != "" {
		return fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID)
	}
	return cfg.BaseURL
}

// newSceneSource returns the configured scene source. File sources are
// watched for changes until ctx is done when scenes.watch is set.
func (a *app) newSceneSource(ctx context.Context, client *cms.Client) (scene.Source, error) {
	cfg := config.GetScenesConfig()
	switch cfg.Source {
	case "file":
		src, err := scene.NewFileSource(cfg.Dir, a.logger.With("component", "scenes"))
		if err != nil {
			return nil, err
		}
		if cfg.Watch {
			if err := src.Watch(ctx, nil); err != nil {
				a.logger.Warn("Scene hot reload disabled", "error", err)
			}
		}
		return src, nil
	case "", "cms":
		return scene.NewCMSSource(client, cms.ErrNotFound), nil
	default:
		return nil, fmt.Errorf("unknown scene source: %s", cfg.Source)
	}
}

func (a *app) newPreloader() *assets.Preloader {
	cfg := config.GetAssetsConfig()
	loader := assets.NewGLTFLoader(cfg.BaseURL, cfg.Root, cfg.MaxBytes)
	return assets.NewPreloader(loader, cfg.Concurrency, a.logger.With("component", "assets"))
}

// close flushes and releases logging and telemetry.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.influx != nil {
		if err := a.influx.Close(); err != nil {
			a.logger.Warn("Closing InfluxDB", "error", err)
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("Shutting down OTel provider", "error", err)
		}
	}
	_ = a.slogs.Close(ctx)
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
