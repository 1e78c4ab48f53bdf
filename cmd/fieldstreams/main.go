// Package main implements the fieldstreams collector: it receives sensor
// broadcasts over UDP and flushes the latest reading per sensor slot to a
// CSV log, a remote HTTP endpoint, and optional NATS and InfluxDB mirrors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/fieldstreams/collector"
	"github.com/c360/fieldstreams/config"
	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/health"
	"github.com/c360/fieldstreams/input/udp"
	"github.com/c360/fieldstreams/metric"
	"github.com/c360/fieldstreams/natsclient"
	"github.com/c360/fieldstreams/output/file"
	"github.com/c360/fieldstreams/output/httppost"
	"github.com/c360/fieldstreams/output/influx"
	"github.com/c360/fieldstreams/output/natspub"
	"github.com/c360/fieldstreams/pkg/buffer"
	"github.com/c360/fieldstreams/pkg/clock"
	"github.com/c360/fieldstreams/pkg/retry"
	"github.com/c360/fieldstreams/processor/parser"
	"github.com/c360/fieldstreams/reading"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "fieldstreams"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	cliCfg, err := parseFlags(fs, args)
	if err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		fs.Usage()
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, format := cfg.Log.Level, cfg.Log.Format
	if cliCfg.LogLevel != "" {
		level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		format = cliCfg.LogFormat
	}
	logger := setupLogger(os.Stdout, level, format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		fmt.Println(cfg.String())
		return nil
	}

	logger.Info("Starting fieldstreams collector",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := waitForClock(ctx, cfg.Clock, logger); err != nil {
		return err
	}

	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()
	if cfg.Metrics.Port > 0 {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry)
		server.SetHealthHandler(monitor.Handler(appName))
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Stop() }()
	}

	p, err := buildPipeline(ctx, cfg, metricsRegistry, monitor, logger)
	if err != nil {
		return err
	}
	defer p.close(logger)

	if err := p.input.Start(ctx); err != nil {
		monitor.Update("udp", health.FromError("udp", err))
		return fmt.Errorf("start udp input: %w", err)
	}
	monitor.UpdateHealthy("udp", "listening")
	metricsRegistry.CoreMetrics().RecordServiceStatus(appName, 1)
	logger.Info("Collector ready", "listen", p.input.LocalAddr().String())

	err = p.loop.Run(ctx)
	metricsRegistry.CoreMetrics().RecordServiceStatus(appName, 0)
	logger.Info("fieldstreams shutdown complete", "stats", p.loop.Stats())
	return err
}

// loadConfig layers the optional config file, .env file and environment
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	if cliCfg.EnvFile != "" {
		loader.AddDotEnv(cliCfg.EnvFile)
	}
	return loader.Load()
}

// waitForClock blocks until the wall clock is past cfg.NotBefore so readings
// are never stamped with an unsynchronized time
func waitForClock(ctx context.Context, cfg config.ClockConfig, logger *slog.Logger) error {
	if cfg.NotBefore.IsZero() {
		return nil
	}

	waitCtx := ctx
	if cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.WaitTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := clock.WaitReady(waitCtx, clock.System(), cfg.NotBefore, time.Second); err != nil {
		return fmt.Errorf("wait for clock: %w", err)
	}
	if waited := time.Since(start); waited > time.Second {
		logger.Info("Wall clock synchronized", "waited", waited)
	}
	return nil
}

// pipeline holds everything run needs to tear down
type pipeline struct {
	input   *udp.Input
	loop    *collector.Loop
	logFile *file.Output
	nats    *natsclient.Client
	influx  *influx.Output
}

func buildPipeline(
	ctx context.Context,
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	logger *slog.Logger,
) (*pipeline, error) {
	p := &pipeline{}

	p.input = udp.NewInput(udp.InputDeps{
		Name: "udp",
		Config: udp.InputConfig{
			Bind:            cfg.Listen.Bind,
			Port:            cfg.Listen.Port,
			MaxDatagramSize: cfg.Listen.MaxDatagramSize,
			PollTimeout:     cfg.Listen.PollTimeout,
		},
		MetricsRegistry: registry,
		Logger:          logger,
	})

	logFile, err := file.NewOutput(file.OutputDeps{
		Config: file.Config{
			Directory: cfg.LogFile.Directory,
			Filename:  cfg.LogFile.Filename,
			Sync:      cfg.LogFile.Sync,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create log file sink: %w", err)
	}
	p.logFile = logFile

	remote, err := httppost.NewOutput(httppost.OutputDeps{
		Config: httppost.Config{
			URL:     cfg.Remote.URL,
			Headers: cfg.Remote.Headers,
			Timeout: cfg.Remote.Timeout,
		},
		Logger: logger,
	})
	if err != nil {
		p.close(logger)
		return nil, fmt.Errorf("create remote sink: %w", err)
	}

	mirrors, err := p.buildMirrors(ctx, cfg, registry, monitor, logger)
	if err != nil {
		p.close(logger)
		return nil, err
	}

	buf, err := buffer.NewKeyed(reading.KeyOf,
		buffer.WithMaxKeys[reading.Reading](cfg.Buffer.MaxKeys),
		buffer.WithMetrics[reading.Reading](registry, "buffer"),
	)
	if err != nil {
		p.close(logger)
		return nil, fmt.Errorf("create buffer: %w", err)
	}

	p.loop, err = collector.NewLoop(collector.LoopDeps{
		Config: collector.LoopConfig{
			Interval:          cfg.Flush.Interval,
			YieldInterval:     cfg.Flush.YieldInterval,
			SkipShutdownFlush: !cfg.Flush.FlushOnShutdown,
			ShutdownTimeout:   cfg.Flush.ShutdownTimeout,
		},
		Receiver: p.input,
		Parser: parser.New(
			parser.WithLocation(clock.FixedZone(cfg.Parser.UTCOffset)),
			parser.WithMaxKindLength(cfg.Parser.MaxKindLength),
			parser.WithControlPrefix(cfg.Parser.ControlPrefix),
		),
		Buffer:  buf,
		Flusher: &collector.Flusher{Log: logFile, Remote: remote, Mirrors: mirrors},
		Metrics: registry.CoreMetrics(),
		Health:  monitor,
		Logger:  logger,
	})
	if err != nil {
		p.close(logger)
		return nil, fmt.Errorf("create collector loop: %w", err)
	}
	return p, nil
}

// buildMirrors creates the optional NATS and InfluxDB sinks
func (p *pipeline) buildMirrors(
	ctx context.Context,
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	logger *slog.Logger,
) ([]collector.Sink, error) {
	var mirrors []collector.Sink

	if cfg.NATS.URL != "" {
		opts := []natsclient.ClientOption{
			natsclient.WithName(cfg.NATS.ClientName),
			natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
			natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
			natsclient.WithLogger(logger),
			natsclient.WithMetrics(registry),
			natsclient.WithHealthChangeCallback(func(healthy bool) {
				if healthy {
					monitor.UpdateHealthy("nats", "connected")
				} else {
					monitor.UpdateDegraded("nats", "disconnected, readings are not mirrored")
				}
			}),
		}
		switch {
		case cfg.NATS.Token != "":
			opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
		case cfg.NATS.Username != "":
			opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
		}

		client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create NATS client: %w", err)
		}
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = retry.Do(connCtx, retry.Quick(), func() error {
			err := client.Connect(connCtx)
			if err != nil && !errors.IsTransient(err) {
				return retry.NonRetryable(err)
			}
			return err
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		p.nats = client

		out, err := natspub.NewOutput(natspub.OutputDeps{
			Config:    natspub.Config{SubjectPrefix: cfg.NATS.SubjectPrefix},
			Publisher: client,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create NATS sink: %w", err)
		}
		mirrors = append(mirrors, out)
	}

	if cfg.Influx.URL != "" {
		out, err := influx.NewOutput(influx.OutputDeps{
			Config: influx.Config{
				URL:     cfg.Influx.URL,
				Token:   cfg.Influx.Token,
				Org:     cfg.Influx.Org,
				Bucket:  cfg.Influx.Bucket,
				Timeout: cfg.Influx.Timeout,
			},
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create InfluxDB sink: %w", err)
		}
		p.influx = out
		mirrors = append(mirrors, out)
	}

	return mirrors, nil
}

func (p *pipeline) close(logger *slog.Logger) {
	if p.input != nil {
		if err := p.input.Stop(); err != nil {
			logger.Warn("Failed to stop udp input", "error", err)
		}
	}
	if p.logFile != nil {
		if err := p.logFile.Close(); err != nil {
			logger.Warn("Failed to close log file", "error", err)
		}
	}
	if p.influx != nil {
		_ = p.influx.Close()
	}
	if p.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.nats.Close(ctx); err != nil {
			logger.Warn("Failed to close NATS client", "error", err)
		}
	}
}
