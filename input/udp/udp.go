// Package udp provides the UDP receiver for field-network broadcasts
package udp

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/metric"
	"github.com/c360/fieldstreams/pkg/retry"
)

const (
	// DefaultPort is the well-known field-network status port
	DefaultPort = 16520

	// DefaultMaxDatagramSize matches the receive buffer of the field gateways.
	// Longer datagrams are truncated.
	DefaultMaxDatagramSize = 512

	// DefaultPollTimeout bounds how long Poll waits when no data is pending
	DefaultPollTimeout = time.Millisecond
)

// Metrics holds Prometheus metrics for the UDP input
type Metrics struct {
	packetsReceived  prometheus.Counter
	bytesReceived    prometheus.Counter
	packetsTruncated prometheus.Counter
	socketErrors     prometheus.Counter
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers UDP input metrics. A nil registry yields nil.
func newMetrics(registry *metric.MetricsRegistry, port int, logger *slog.Logger) *Metrics {
	if registry == nil {
		return nil
	}

	labels := prometheus.Labels{"port": fmt.Sprintf("%d", port)}
	m := &Metrics{
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "udp",
			Name:        "packets_received_total",
			Help:        "Total UDP packets received",
			ConstLabels: labels,
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "udp",
			Name:        "bytes_received_total",
			Help:        "Total bytes received from UDP",
			ConstLabels: labels,
		}),
		packetsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "udp",
			Name:        "packets_truncated_total",
			Help:        "Packets longer than the maximum datagram size",
			ConstLabels: labels,
		}),
		socketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "udp",
			Name:        "socket_errors_total",
			Help:        "Socket read errors encountered",
			ConstLabels: labels,
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "fieldstreams",
			Subsystem:   "udp",
			Name:        "last_activity_timestamp",
			Help:        "Unix timestamp of last received packet",
			ConstLabels: labels,
		}),
	}

	serviceName := fmt.Sprintf("udp_%d", port)
	register := []error{
		registry.RegisterCounter(serviceName, "packets_received", m.packetsReceived),
		registry.RegisterCounter(serviceName, "bytes_received", m.bytesReceived),
		registry.RegisterCounter(serviceName, "packets_truncated", m.packetsTruncated),
		registry.RegisterCounter(serviceName, "socket_errors", m.socketErrors),
		registry.RegisterGauge(serviceName, "last_activity", m.lastActivity),
	}
	if err := stderrors.Join(register...); err != nil {
		logger.Warn("UDP metrics registration incomplete", "error", err)
	}

	return m
}

// Datagram is one received packet and its sender
type Datagram struct {
	Data []byte
	Addr *net.UDPAddr
}

// InputConfig holds configuration for the UDP input
type InputConfig struct {
	Bind            string        `json:"bind" yaml:"bind"`
	Port            int           `json:"port" yaml:"port"`
	MaxDatagramSize int           `json:"max_datagram_size" yaml:"max_datagram_size"`
	PollTimeout     time.Duration `json:"poll_timeout" yaml:"poll_timeout"`
}

// DefaultConfig returns the field-network defaults
func DefaultConfig() InputConfig {
	return InputConfig{
		Bind:            "0.0.0.0",
		Port:            DefaultPort,
		MaxDatagramSize: DefaultMaxDatagramSize,
		PollTimeout:     DefaultPollTimeout,
	}
}

// Validate checks the configuration. Port 0 is allowed for OS assignment.
func (c InputConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", c.Port),
			"InputConfig", "Validate", "port validation")
	}
	if c.Bind != "" && net.ParseIP(c.Bind) == nil {
		return errors.WrapInvalid(fmt.Errorf("invalid bind address %q", c.Bind),
			"InputConfig", "Validate", "bind validation")
	}
	if c.MaxDatagramSize <= 0 {
		return errors.WrapInvalid(fmt.Errorf("max datagram size must be positive, got %d", c.MaxDatagramSize),
			"InputConfig", "Validate", "datagram size validation")
	}
	if c.PollTimeout <= 0 {
		return errors.WrapInvalid(fmt.Errorf("poll timeout must be positive, got %v", c.PollTimeout),
			"InputConfig", "Validate", "poll timeout validation")
	}
	return nil
}

// InputDeps holds runtime dependencies for the UDP input
type InputDeps struct {
	Name            string                  // Instance name
	Config          InputConfig             // Listener configuration
	MetricsRegistry *metric.MetricsRegistry // Optional
	Logger          *slog.Logger            // Optional
}

// Stats is a point-in-time copy of the receive counters
type Stats struct {
	MessagesReceived int64
	BytesReceived    int64
	Truncated        int64
	Errors           int64
	LastActivity     time.Time
}

// Input is a non-blocking UDP receiver. The owner calls Poll from a single
// goroutine; Stop may be called from any goroutine.
type Input struct {
	name   string
	config InputConfig
	logger *slog.Logger

	retryConfig retry.Config

	mu      sync.RWMutex
	conn    *net.UDPConn
	buf     []byte
	running atomic.Bool

	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	truncated        atomic.Int64
	errors           atomic.Int64
	lastActivity     atomic.Value // time.Time

	metrics *Metrics
}

// NewInput creates a UDP input. Zero config fields take their defaults.
func NewInput(deps InputDeps) *Input {
	cfg := deps.Config
	def := DefaultConfig()
	if cfg.Bind == "" {
		cfg.Bind = def.Bind
	}
	if cfg.MaxDatagramSize == 0 {
		cfg.MaxDatagramSize = def.MaxDatagramSize
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = def.PollTimeout
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "udp-input", "port", cfg.Port)

	name := deps.Name
	if name == "" {
		name = fmt.Sprintf("udp-input-%d", cfg.Port)
	}

	u := &Input{
		name:        name,
		config:      cfg,
		logger:      logger,
		retryConfig: retry.Quick(),
		metrics:     newMetrics(deps.MetricsRegistry, cfg.Port, logger),
	}
	u.lastActivity.Store(time.Time{})
	return u
}

// Name returns the instance name
func (u *Input) Name() string {
	return u.name
}

// Start binds the socket, retrying transient bind failures. Calling Start on
// a running input is a no-op.
func (u *Input) Start(ctx context.Context) error {
	if err := u.config.Validate(); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running.Load() {
		return nil
	}

	if err := retry.Do(ctx, u.retryConfig, u.bindSocket); err != nil {
		return errors.WrapTransient(err, "udp-input", "Start", "socket binding")
	}

	// one extra byte detects datagrams longer than the maximum
	u.buf = make([]byte, u.config.MaxDatagramSize+1)
	u.running.Store(true)

	u.logger.Info("UDP input listening", "addr", u.conn.LocalAddr().String())
	return nil
}

// bindSocket creates and binds the UDP socket. Caller holds u.mu.
func (u *Input) bindSocket() error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(u.config.Bind, fmt.Sprintf("%d", u.config.Port)))
	if err != nil {
		return retry.NonRetryable(fmt.Errorf("resolve UDP address %s:%d: %w", u.config.Bind, u.config.Port, err))
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on UDP port %d: %w", u.config.Port, err)
	}

	u.conn = conn
	return nil
}

// LocalAddr returns the bound address, or nil when not started
func (u *Input) LocalAddr() *net.UDPAddr {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.conn == nil {
		return nil
	}
	addr, _ := u.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Poll reads at most one pending datagram. It waits no longer than the poll
// timeout; when nothing arrived it returns ok=false and a nil error. The
// returned data is a copy owned by the caller, truncated to the maximum
// datagram size.
func (u *Input) Poll(ctx context.Context) (Datagram, bool, error) {
	if err := ctx.Err(); err != nil {
		return Datagram{}, false, err
	}

	u.mu.RLock()
	conn, buf := u.conn, u.buf
	u.mu.RUnlock()
	if !u.running.Load() || conn == nil {
		return Datagram{}, false, errors.WrapInvalid(errors.ErrNotStarted, "udp-input", "Poll", "state check")
	}

	_ = conn.SetReadDeadline(time.Now().Add(u.config.PollTimeout))

	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			return Datagram{}, false, nil
		}
		if stderrors.Is(err, net.ErrClosed) {
			return Datagram{}, false, errors.WrapInvalid(errors.ErrNotStarted, "udp-input", "Poll", "socket closed")
		}

		u.errors.Add(1)
		if u.metrics != nil {
			u.metrics.socketErrors.Inc()
		}
		return Datagram{}, false, errors.WrapTransient(err, "udp-input", "Poll", "read datagram")
	}

	if n > u.config.MaxDatagramSize {
		n = u.config.MaxDatagramSize
		u.truncated.Add(1)
		if u.metrics != nil {
			u.metrics.packetsTruncated.Inc()
		}
	}

	now := time.Now()
	u.messagesReceived.Add(1)
	u.bytesReceived.Add(int64(n))
	u.lastActivity.Store(now)
	if u.metrics != nil {
		u.metrics.packetsReceived.Inc()
		u.metrics.bytesReceived.Add(float64(n))
		u.metrics.lastActivity.Set(float64(now.Unix()))
	}

	data := make([]byte, n)
	copy(data, buf[:n])
	return Datagram{Data: data, Addr: addr}, true, nil
}

// Stop closes the socket. Stopping a stopped input is a no-op.
func (u *Input) Stop() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.running.Swap(false) {
		return nil
	}

	var err error
	if u.conn != nil {
		err = u.conn.Close()
		u.conn = nil
	}
	if err != nil {
		return errors.WrapTransient(err, "udp-input", "Stop", "close socket")
	}
	return nil
}

// Stats returns the receive counters
func (u *Input) Stats() Stats {
	last, _ := u.lastActivity.Load().(time.Time)
	return Stats{
		MessagesReceived: u.messagesReceived.Load(),
		BytesReceived:    u.bytesReceived.Load(),
		Truncated:        u.truncated.Load(),
		Errors:           u.errors.Load(),
		LastActivity:     last,
	}
}
