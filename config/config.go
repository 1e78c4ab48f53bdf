package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360/fieldstreams/errors"
)

// Config represents the complete collector configuration
type Config struct {
	Listen  ListenConfig  `json:"listen"`
	Flush   FlushConfig   `json:"flush"`
	Parser  ParserConfig  `json:"parser"`
	Buffer  BufferConfig  `json:"buffer"`
	LogFile LogFileConfig `json:"log_file"`
	Remote  RemoteConfig  `json:"remote"`
	NATS    NATSConfig    `json:"nats"`
	Influx  InfluxConfig  `json:"influx"`
	Metrics MetricsConfig `json:"metrics"`
	Clock   ClockConfig   `json:"clock"`
	Log     LogConfig     `json:"log"`
}

// ListenConfig configures the datagram listener
type ListenConfig struct {
	Bind            string        `json:"bind"`
	Port            int           `json:"port"`
	MaxDatagramSize int           `json:"max_datagram_size"`
	PollTimeout     time.Duration `json:"poll_timeout"`
}

// FlushConfig configures the flush window
type FlushConfig struct {
	Interval        time.Duration `json:"interval"`
	FlushOnShutdown bool          `json:"flush_on_shutdown"`
	YieldInterval   time.Duration `json:"yield_interval"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// ParserConfig configures message parsing
type ParserConfig struct {
	UTCOffset     time.Duration `json:"utc_offset"`
	MaxKindLength int           `json:"max_kind_length"`
	ControlPrefix string        `json:"control_prefix"`
}

// BufferConfig configures the dedup buffer. MaxKeys 0 means unbounded.
type BufferConfig struct {
	MaxKeys int `json:"max_keys"`
}

// LogFileConfig configures the durable CSV log
type LogFileConfig struct {
	Directory string `json:"directory"`
	Filename  string `json:"filename"`
	Sync      bool   `json:"sync"`
}

// RemoteConfig configures the remote ingestion endpoint. An empty URL
// disables remote delivery.
type RemoteConfig struct {
	URL     string            `json:"url"`
	Timeout time.Duration     `json:"timeout"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NATSConfig configures the optional NATS mirror. An empty URL disables it.
type NATSConfig struct {
	URL           string        `json:"url"`
	SubjectPrefix string        `json:"subject_prefix"`
	ClientName    string        `json:"client_name"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	MaxReconnects int           `json:"max_reconnects"`
	ReconnectWait time.Duration `json:"reconnect_wait"`
}

// InfluxConfig configures the optional InfluxDB mirror. An empty URL
// disables it.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token,omitempty"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// MetricsConfig configures the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int    `json:"port"`
	Path string `json:"path"`
}

// ClockConfig configures the wait for a trustworthy wall clock
type ClockConfig struct {
	NotBefore   time.Time     `json:"not_before"`
	WaitTimeout time.Duration `json:"wait_timeout"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the configuration used when no file or override sets a value
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Bind:            "0.0.0.0",
			Port:            16520,
			MaxDatagramSize: 512,
			PollTimeout:     time.Millisecond,
		},
		Flush: FlushConfig{
			Interval:        300 * time.Second,
			FlushOnShutdown: true,
			YieldInterval:   10 * time.Millisecond,
			ShutdownTimeout: 30 * time.Second,
		},
		Parser: ParserConfig{
			UTCOffset:     9 * time.Hour,
			MaxKindLength: 19,
			ControlPrefix: "cnd.",
		},
		LogFile: LogFileConfig{
			Directory: ".",
			Filename:  "uecs_log.csv",
		},
		Remote: RemoteConfig{
			Timeout: 30 * time.Second,
		},
		NATS: NATSConfig{
			SubjectPrefix: "fieldstreams.readings",
			ClientName:    "fieldstreams",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Influx: InfluxConfig{
			Timeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
		Clock: ClockConfig{
			NotBefore:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			WaitTimeout: time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		add("listen.port %d out of range", c.Listen.Port)
	}
	if c.Listen.MaxDatagramSize < 1 || c.Listen.MaxDatagramSize > 65507 {
		add("listen.max_datagram_size %d out of range", c.Listen.MaxDatagramSize)
	}
	if c.Listen.PollTimeout <= 0 {
		add("listen.poll_timeout must be positive")
	}

	if c.Flush.Interval <= 0 {
		add("flush.interval must be positive")
	}
	if c.Flush.YieldInterval < 0 {
		add("flush.yield_interval cannot be negative")
	}

	if c.Parser.UTCOffset < -14*time.Hour || c.Parser.UTCOffset > 14*time.Hour {
		add("parser.utc_offset %s out of range", c.Parser.UTCOffset)
	}
	if c.Parser.MaxKindLength < 0 {
		add("parser.max_kind_length cannot be negative")
	}
	if c.Parser.ControlPrefix == "" {
		add("parser.control_prefix is required")
	}

	if c.Buffer.MaxKeys < 0 {
		add("buffer.max_keys cannot be negative")
	}

	if c.LogFile.Directory == "" {
		add("log_file.directory is required")
	}
	if c.LogFile.Filename == "" || filepath.Base(c.LogFile.Filename) != c.LogFile.Filename {
		add("log_file.filename %q must be a bare file name", c.LogFile.Filename)
	}

	if c.Remote.URL != "" && !isHTTPURL(c.Remote.URL) {
		add("remote.url %q must be an http or https URL", c.Remote.URL)
	}
	if c.Remote.Timeout < 0 {
		add("remote.timeout cannot be negative")
	}

	if c.NATS.URL != "" {
		if c.NATS.SubjectPrefix == "" || strings.ContainsAny(c.NATS.SubjectPrefix, "*> ") {
			add("nats.subject_prefix %q is not a valid subject", c.NATS.SubjectPrefix)
		}
	}

	if c.Influx.URL != "" {
		if !isHTTPURL(c.Influx.URL) {
			add("influx.url %q must be an http or https URL", c.Influx.URL)
		}
		if c.Influx.Org == "" || c.Influx.Bucket == "" {
			add("influx.org and influx.bucket are required when influx.url is set")
		}
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		add("metrics.port %d out of range", c.Metrics.Port)
	}
	if c.Metrics.Port > 0 && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path %q must start with /", c.Metrics.Path)
	}

	if c.Clock.WaitTimeout < 0 {
		add("clock.wait_timeout cannot be negative")
	}

	if len(problems) > 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", strings.Join(problems, "; "))
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// String returns the configuration as indented JSON with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.NATS.Password = maskSecret(masked.NATS.Password)
	masked.NATS.Token = maskSecret(masked.NATS.Token)
	masked.Influx.Token = maskSecret(masked.Influx.Token)
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
