// Command ticksync connects to the simulation, keeps a synchronized copy of
// its state and records what happens.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/marsgrid/ticksync/internal/api"
	"github.com/marsgrid/ticksync/internal/config"
	"github.com/marsgrid/ticksync/internal/control"
	"github.com/marsgrid/ticksync/internal/dispatcher"
	"github.com/marsgrid/ticksync/internal/gridmap"
	"github.com/marsgrid/ticksync/internal/influx"
	"github.com/marsgrid/ticksync/internal/killfeed"
	"github.com/marsgrid/ticksync/internal/logging"
	"github.com/marsgrid/ticksync/internal/monitor"
	intOtel "github.com/marsgrid/ticksync/internal/otel"
	"github.com/marsgrid/ticksync/internal/registry"
	"github.com/marsgrid/ticksync/internal/scenario"
	"github.com/marsgrid/ticksync/internal/session"
	"github.com/marsgrid/ticksync/internal/storage"
	"github.com/marsgrid/ticksync/internal/transport"
	"github.com/marsgrid/ticksync/internal/worker"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const AppName = "ticksync"

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if opts.version {
		fmt.Printf("%s %s (%s)\n", AppName, Version, BuildDate)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	start := time.Now()

	configErr := config.Load(opts.configDir)
	if configErr != nil && !errors.Is(configErr, config.ErrNotFound) {
		return configErr
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, start)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	level := viper.GetString("logLevel")

	// Session attributes are attached once the runner exists.
	var runner *session.Runner
	slogManager := logging.NewSlogManager().
		WithContext(func() []slog.Attr {
			if runner == nil {
				return nil
			}
			return runner.LogAttrs()
		}).
		WithConsole()

	var graylog io.Writer
	if viper.GetBool("graylog.enabled") {
		w, err := logging.OpenGraylog(viper.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			graylog = w
			slogManager.WithHandler(logging.NewGELFHandler(w, level))
		}
	}

	otelProvider, err := setupOTel(logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "otel disabled: %v\n", err)
	}
	slogManager.Setup(logFile, level, otelProvider.LoggerProvider())
	logger := slogManager.Logger()
	slog.SetDefault(logger)

	zl := logging.NewZerolog(logging.ZerologConfig{
		Level:   level,
		Console: os.Stdout,
		File:    logFile,
		Graylog: graylog,
	})

	logger.Info("Starting up", "version", Version, "build", BuildDate, "log", logPath)
	if configErr != nil {
		logger.Warn("Failed to load config, using defaults", "error", configErr)
	}

	gameCfg := resolveGame(config.GetGameConfig(), logger)
	if gameCfg.MapPath != "" {
		if grid, err := gridmap.Load(gameCfg.MapPath); err != nil {
			logger.Warn("Map file is not usable", "path", gameCfg.MapPath, "error", err)
		} else {
			w, h := grid.Size()
			logger.Info("Map loaded", "path", gameCfg.MapPath, "width", w, "height", h)
		}
	}

	transportCfg := config.GetTransportConfig()
	client := transport.New(transport.Config{
		Backoff:     transportCfg.Backoff,
		BackoffMode: transportCfg.BackoffMode,
		MaxBackoff:  transportCfg.MaxBackoff,
		WriteWait:   transportCfg.WriteWait,
		InboxSize:   transportCfg.InboxSize,
	}, logger)

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(zl.With().Str("component", "dispatcher").Logger()))
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	storageCfg := config.GetStorageConfig()
	backend, dbCloser, err := createStorageBackend(storageCfg, zl, start)
	if err != nil {
		return err
	}
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		logger.Info("Storage backend initialized", "type", storageCfg.Type)
	}

	influxManager := connectInflux(ctx, zl, logsDir, start, logger)

	runner, err = session.New(session.Config{
		Address:    transportCfg.Address,
		TotalSteps: gameCfg.Steps,
		MapPath:    gameCfg.MapPath,
	}, client, eventDispatcher, backend, logger)
	if err != nil {
		return err
	}

	feed := killfeed.New(killfeed.DefaultSize)
	workerDeps := worker.Dependencies{
		Backend:   backend,
		Feed:      feed,
		Logger:    logger,
		SessionID: runner.Session().ID,
		Sizes:     func() registry.Sizes { return runner.Status().Sizes },
		LoadMap:   gridmap.Load,
	}
	monitorDeps := monitor.Dependencies{
		Status:     runner.Status,
		Logger:     logger,
		StatusFile: filepath.Join(logsDir, "status.txt"),
		Interval:   viper.GetDuration("monitor.interval"),
	}
	if influxManager != nil {
		workerDeps.Points = influxManager
		monitorDeps.Points = influxManager
	}
	worker.NewManager(workerDeps).RegisterHandlers(eventDispatcher)

	monitorService := monitor.NewService(monitorDeps)
	if err := monitorService.Start(); err != nil {
		logger.Error("Failed to start status monitor", "error", err)
	}

	controlCfg := config.GetControlConfig()
	controlCtx, stopControl := context.WithCancel(ctx)
	controlDone := make(chan struct{})
	if controlCfg.Enabled {
		srv := control.NewServer(runner, feed, logger)
		go func() {
			defer close(controlDone)
			if err := srv.ListenAndServe(controlCtx, controlCfg.Listen); err != nil {
				logger.Error("Control server stopped", "error", err)
			}
		}()
	} else {
		close(controlDone)
	}

	runErr := runner.Run(ctx, gameCfg.LoopInterval)

	stopControl()
	<-controlDone
	monitorService.Stop()

	if outcome := feed.Outcome(); outcome != "" {
		logger.Info(outcome)
	}
	if exp, ok := backend.(storage.Exporter); ok && exp.ExportedFilePath() != "" {
		logger.Info("Recording exported", "path", exp.ExportedFilePath())
		uploadRecording(exp.ExportedFilePath(), runner, feed.Outcome(), logger)
	}

	var errs []error
	errs = append(errs, runErr)
	if backend != nil {
		errs = append(errs, backend.Close())
	}
	if dbCloser != nil {
		errs = append(errs, dbCloser.Close())
	}
	if influxManager != nil {
		errs = append(errs, influxManager.Close())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := slogManager.Flush(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, otelProvider.Shutdown(shutdownCtx))

	logger.Info("Shut down", "uptime", time.Since(start).Round(time.Second))
	return errors.Join(errs...)
}

// uploadRecording sends the exported file to the recording server when one
// is configured. Failures are logged; the local file stays either way.
func uploadRecording(path string, runner *session.Runner, outcome string, logger *slog.Logger) {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.Enabled {
		return
	}

	sess := runner.Session().Get()
	meta := api.UploadMetadata{
		SessionID: sess.ID,
		MapPath:   sess.MapPath,
		Ticks:     runner.Status().Tick,
		Duration:  time.Since(sess.StartTime),
		Outcome:   outcome,
	}
	if sess.GameMode != nil {
		meta.GameMode = sess.GameMode.String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		logger.Warn("Recording server is offline, keeping local file", "error", err)
		return
	}
	if err := client.Upload(ctx, path, meta); err != nil {
		logger.Error("Failed to upload recording", "path", path, "error", err)
		return
	}
	logger.Info("Recording uploaded", "server", apiCfg.ServerURL)
}

// setupOTel always returns a usable provider; on error it is the disabled one.
func setupOTel(logFile io.Writer) (*intOtel.Provider, error) {
	otelCfg := config.GetOTelConfig()
	p, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      logFile,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		disabled, _ := intOtel.New(intOtel.Config{})
		return disabled, err
	}
	return p, nil
}

// resolveGame fills in the step count and map from the LaserTagBox config
// when the configuration leaves the step count at zero.
func resolveGame(cfg config.GameConfig, logger *slog.Logger) config.GameConfig {
	if cfg.Steps > 0 {
		return cfg
	}

	var (
		sc  scenario.Scenario
		err error
	)
	if cfg.ScenarioPath != "" {
		sc, err = scenario.Load(cfg.ScenarioPath)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			sc, err = scenario.Discover(wd)
		}
	}
	if err != nil {
		logger.Warn("No scenario found, running without a step limit", "error", err)
		return cfg
	}

	logger.Info("Scenario loaded", "config", sc.ConfigPath, "steps", sc.Steps, "map", sc.MapPath)
	cfg.Steps = sc.Steps
	if cfg.MapPath == "" {
		cfg.MapPath = sc.MapPath
	}
	return cfg
}

// connectInflux returns nil when influx is disabled. An unreachable server
// still yields a manager that writes to the gzip backup.
func connectInflux(ctx context.Context, zl zerolog.Logger, logsDir string, start time.Time, logger *slog.Logger) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}
	backupPath := filepath.Join(logsDir, fmt.Sprintf("%s_influx_%s.lp.gz", AppName, start.Format("20060102_150405")))
	m := influx.NewManager(cfg, zl.With().Str("component", "influx").Logger(), backupPath)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.Connect(connectCtx); err != nil {
		logger.Error("InfluxDB unavailable", "error", err)
		if !m.IsValid && m.BackupWriter == nil {
			return nil
		}
	}
	return m
}
