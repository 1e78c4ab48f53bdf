package httppost

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/reading"
)

func testReading() reading.Reading {
	return reading.Reading{
		Kind:            "SoilTemp.mIC",
		Room:            1,
		Region:          1,
		Order:           1,
		Priority:        15,
		Value:           23.5,
		SourceAddress:   "192.168.1.20",
		ObservedAtUTC:   time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC),
		ObservedAtLocal: "2025-06-01 09:30:00",
	}
}

type capture struct {
	mu      sync.Mutex
	bodies  []string
	headers []http.Header
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, string(body))
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ignored"))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "application/json", cfg.ContentType)
	assert.Empty(t, cfg.URL)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty url disables", Config{}, false},
		{"http url", Config{URL: "http://example.com/ingest"}, false},
		{"https url", Config{URL: "https://example.com/ingest"}, false},
		{"ftp url", Config{URL: "ftp://example.com"}, true},
		{"unparseable url", Config{URL: "http://[::1"}, true},
		{"negative timeout", Config{Timeout: -time.Second}, true},
		{"huge timeout", Config{Timeout: time.Hour}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOutput_PostsPayload(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusOK))
	defer srv.Close()

	out, err := NewOutput(OutputDeps{Config: Config{
		URL:     srv.URL,
		Headers: map[string]string{"X-Gateway": "house-1"},
	}})
	require.NoError(t, err)
	assert.True(t, out.Enabled())
	assert.Equal(t, "remote", out.Name())

	require.NoError(t, out.Write(context.Background(), testReading()))

	require.Len(t, c.bodies, 1)
	assert.Equal(t,
		`{"timestamp":1748737800,"timeStr":"2025-06-01 09:30:00","type":"SoilTemp.mIC","room":1,"region":1,"order":1,"priority":15,"data":23.50,"ip":"192.168.1.20"}`,
		c.bodies[0])
	assert.True(t, json.Valid([]byte(c.bodies[0])))
	assert.Equal(t, "application/json", c.headers[0].Get("Content-Type"))
	assert.Equal(t, "house-1", c.headers[0].Get("X-Gateway"))
	assert.Equal(t, int64(1), out.Stats().MessagesSent)
}

func TestOutput_Non2xxIsDeliveryFailure(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(http.StatusInternalServerError))
	defer srv.Close()

	out, err := NewOutput(OutputDeps{Config: Config{URL: srv.URL}})
	require.NoError(t, err)

	err = out.Write(context.Background(), testReading())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSinkDelivery))
	assert.True(t, errors.IsTransient(err))
	assert.Contains(t, err.Error(), "HTTP 500")

	assert.Len(t, c.bodies, 1, "no retry")
	assert.Equal(t, int64(1), out.Stats().Errors)
}

func TestOutput_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, err := NewOutput(OutputDeps{Config: Config{URL: url, Timeout: time.Second}})
	require.NoError(t, err)

	err = out.Write(context.Background(), testReading())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSinkDelivery))
}

func TestOutput_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	out, err := NewOutput(OutputDeps{Config: Config{URL: srv.URL, Timeout: 50 * time.Millisecond}})
	require.NoError(t, err)

	start := time.Now()
	err = out.Write(context.Background(), testReading())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestOutput_Disabled(t *testing.T) {
	out, err := NewOutput(OutputDeps{Config: DefaultConfig()})
	require.NoError(t, err)
	assert.False(t, out.Enabled())

	assert.NoError(t, out.Write(context.Background(), testReading()))
	assert.Equal(t, int64(1), out.Stats().Skipped)
	assert.Zero(t, out.Stats().MessagesSent)
}

func TestOutput_InvalidConfig(t *testing.T) {
	_, err := NewOutput(OutputDeps{Config: Config{URL: "ftp://x"}})
	assert.True(t, errors.IsInvalid(err))
}
