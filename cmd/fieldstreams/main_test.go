package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fieldstreams/config"
	"github.com/c360/fieldstreams/health"
	"github.com/c360/fieldstreams/metric"
)

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	cfg, err := parseFlags(fs, []string{"-c", "site.yaml", "--log-format=text", "--debug"})
	require.NoError(t, err)

	assert.Equal(t, "site.yaml", cfg.ConfigPath)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ".env", cfg.EnvFile)
}

func TestValidateFlags(t *testing.T) {
	assert.NoError(t, validateFlags(&CLIConfig{}))
	assert.NoError(t, validateFlags(&CLIConfig{ShowVersion: true, ConfigPath: "missing.json"}))
	assert.Error(t, validateFlags(&CLIConfig{ConfigPath: filepath.Join(t.TempDir(), "missing.json")}))
	assert.Error(t, validateFlags(&CLIConfig{LogLevel: "verbose"}))
	assert.Error(t, validateFlags(&CLIConfig{LogFormat: "xml"}))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"service":"fieldstreams"`)

	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
}

func TestBuildPipeline_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Listen.Bind = "127.0.0.1"
	cfg.Listen.Port = 0
	cfg.LogFile.Directory = dir
	cfg.Flush.Interval = time.Hour

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := metric.NewMetricsRegistry()

	monitor := health.NewMonitor()
	p, err := buildPipeline(context.Background(), cfg, registry, monitor, logger)
	require.NoError(t, err)
	defer p.close(logger)

	ctx := context.Background()
	require.NoError(t, p.input.Start(ctx))

	conn, err := net.DialUDP("udp", nil, p.input.LocalAddr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(`<DATA type="SoilTemp.mIC" room="1" region="1" order="1" priority="15">23.5</DATA><IP>192.168.1.20</IP>`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.loop.Step(ctx).Accepted
	}, 2*time.Second, time.Millisecond)

	report := p.loop.Flush(ctx)
	require.Equal(t, 1, report.Len())
	assert.Zero(t, report.Failed())

	status, ok := monitor.Get("collector")
	require.True(t, ok)
	assert.True(t, status.IsHealthy())

	data, err := os.ReadFile(filepath.Join(dir, "uecs_log.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(data)), ",SoilTemp.mIC,1,1,1,15,23.50,192.168.1.20"))
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldstreams.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"flush": {"interval": "2m"}}`), 0o600))
	t.Setenv("FIELDSTREAMS_LISTEN_PORT", "17001")

	cfg, err := loadConfig(&CLIConfig{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Flush.Interval)
	assert.Equal(t, 17001, cfg.Listen.Port)
}
