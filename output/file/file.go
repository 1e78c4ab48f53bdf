// Package file provides the durable CSV log sink
package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/reading"
)

// DefaultFilename is the log file name used by the field gateways
const DefaultFilename = "uecs_log.csv"

// Config holds configuration for the file sink
type Config struct {
	Directory    string `json:"directory"      yaml:"directory"`
	Filename     string `json:"filename"       yaml:"filename"`
	Sync         bool   `json:"sync"           yaml:"sync"`
	OpenPerWrite bool   `json:"open_per_write" yaml:"open_per_write"`
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory is required")
	}
	if c.Filename == "" || filepath.Base(c.Filename) != c.Filename {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("filename %q must be a bare file name", c.Filename))
	}
	return nil
}

// DefaultConfig returns default configuration for the file sink
func DefaultConfig() Config {
	return Config{
		Directory: ".",
		Filename:  DefaultFilename,
	}
}

// OutputDeps holds runtime dependencies for the file sink
type OutputDeps struct {
	Name   string
	Config Config
	Logger *slog.Logger
}

// Output appends one CSV record per reading to a single log file.
// Records are never rewritten or removed.
type Output struct {
	name   string
	path   string
	config Config
	logger *slog.Logger

	fileMu sync.Mutex
	file   *os.File
	closed bool

	recordsWritten atomic.Int64
	bytesWritten   atomic.Int64
	errors         atomic.Int64
	lastActivity   atomic.Value // time.Time
}

// NewOutput validates the configuration and creates the log directory. The
// file itself is opened on first write.
func NewOutput(deps OutputDeps) (*Output, error) {
	cfg := deps.Config
	if cfg.Filename == "" {
		cfg.Filename = DefaultFilename
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "Output", "NewOutput", "create log directory")
	}

	name := deps.Name
	if name == "" {
		name = "file"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Output{
		name:   name,
		path:   filepath.Join(cfg.Directory, cfg.Filename),
		config: cfg,
		logger: logger.With("component", "file-output", "path", filepath.Join(cfg.Directory, cfg.Filename)),
	}
	o.lastActivity.Store(time.Time{})
	return o, nil
}

// Name returns the sink name used in reports and metrics
func (f *Output) Name() string {
	return f.name
}

// Path returns the log file path
func (f *Output) Path() string {
	return f.path
}

// Write appends the CSV record for r. Failures wrap errors.ErrSinkWrite.
func (f *Output) Write(_ context.Context, r reading.Reading) error {
	f.fileMu.Lock()
	defer f.fileMu.Unlock()

	if f.closed {
		return f.fail(errors.WrapInvalid(errors.ErrNotStarted, "Output", "Write", "sink closed"))
	}

	if f.file == nil {
		file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return f.fail(err)
		}
		f.file = file
	}

	n, err := io.WriteString(f.file, r.CSVRecord())
	if err == nil && f.config.Sync {
		err = f.file.Sync()
	}
	if f.config.OpenPerWrite {
		if cerr := f.file.Close(); err == nil {
			err = cerr
		}
		f.file = nil
	}
	if err != nil {
		return f.fail(err)
	}

	f.recordsWritten.Add(1)
	f.bytesWritten.Add(int64(n))
	f.lastActivity.Store(time.Now())
	return nil
}

func (f *Output) fail(err error) error {
	f.errors.Add(1)
	return errors.SinkError(errors.ErrSinkWrite, f.name, err)
}

// Close closes the log file. Further writes fail.
func (f *Output) Close() error {
	f.fileMu.Lock()
	defer f.fileMu.Unlock()

	f.closed = true
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		f.logger.Warn("failed to close log file", "error", err)
		return errors.WrapTransient(err, "Output", "Close", "close log file")
	}
	return nil
}

// Stats is a point-in-time copy of the write counters
type Stats struct {
	RecordsWritten int64
	BytesWritten   int64
	Errors         int64
	LastActivity   time.Time
}

// Stats returns the write counters
func (f *Output) Stats() Stats {
	last, _ := f.lastActivity.Load().(time.Time)
	return Stats{
		RecordsWritten: f.recordsWritten.Load(),
		BytesWritten:   f.bytesWritten.Load(),
		Errors:         f.errors.Load(),
		LastActivity:   last,
	}
}
