package influx

import (
	"context"
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

type writeCapture struct {
	mu     sync.Mutex
	lines  []string
	bucket string
	org    string
	auth   string
}

func newInfluxServer(t *testing.T, status int) (*httptest.Server, *writeCapture) {
	t.Helper()
	c := &writeCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/write" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.lines = append(c.lines, string(body))
		c.bucket = r.URL.Query().Get("bucket")
		c.org = r.URL.Query().Get("org")
		c.auth = r.Header.Get("Authorization")
		c.mu.Unlock()

		if status >= 300 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":"internal error","message":"storage unavailable"}`))
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{URL: "http://localhost:8086", Org: "farm", Bucket: "readings"}
	assert.NoError(t, valid.Validate())

	noURL := valid
	noURL.URL = ""
	assert.Error(t, noURL.Validate())

	noBucket := valid
	noBucket.Bucket = ""
	assert.Error(t, noBucket.Validate())

	negative := valid
	negative.Timeout = -time.Second
	assert.Error(t, negative.Validate())
}

func TestOutput_Point(t *testing.T) {
	out, err := NewOutput(OutputDeps{Config: Config{URL: "http://localhost:8086", Org: "o", Bucket: "b"}})
	require.NoError(t, err)
	defer out.Close()

	p := out.Point(testReading())
	assert.Equal(t, "reading", p.Name())
	assert.Equal(t, testReading().ObservedAtUTC, p.Time())

	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	assert.Equal(t, map[string]string{
		"kind": "SoilTemp.mIC", "room": "1", "region": "1", "order": "1", "priority": "15", "ip": "192.168.1.20",
	}, tags)

	require.Len(t, p.FieldList(), 1)
	assert.Equal(t, "value", p.FieldList()[0].Key)
	assert.Equal(t, 23.5, p.FieldList()[0].Value)
}

func TestOutput_WritesLineProtocol(t *testing.T) {
	srv, c := newInfluxServer(t, http.StatusNoContent)

	out, err := NewOutput(OutputDeps{Config: Config{
		URL: srv.URL, Token: "tok", Org: "farm", Bucket: "readings", Timeout: 2 * time.Second,
	}})
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, out.Write(context.Background(), testReading()))

	require.Len(t, c.lines, 1)
	line := c.lines[0]
	assert.Contains(t, line, "reading,")
	assert.Contains(t, line, "kind=SoilTemp.mIC")
	assert.Contains(t, line, "priority=15")
	assert.Contains(t, line, "value=23.5")
	assert.Contains(t, line, "1748737800000000000")
	assert.Equal(t, "readings", c.bucket)
	assert.Equal(t, "farm", c.org)
	assert.Equal(t, "Token tok", c.auth)
	assert.Equal(t, int64(1), out.Written())
}

func TestOutput_WriteFailure(t *testing.T) {
	srv, _ := newInfluxServer(t, http.StatusInternalServerError)

	out, err := NewOutput(OutputDeps{Config: Config{URL: srv.URL, Org: "farm", Bucket: "readings"}})
	require.NoError(t, err)
	defer out.Close()

	err = out.Write(context.Background(), testReading())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSinkDelivery))
	assert.Equal(t, int64(1), out.Errors())
}
