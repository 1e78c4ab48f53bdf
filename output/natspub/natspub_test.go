package natspub

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fieldstreams/errors"
	"github.com/c360/fieldstreams/natsclient"
	"github.com/c360/fieldstreams/reading"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, string(data))
	return nil
}

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

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "SoilTemp_mIC", SubjectToken("SoilTemp.mIC"))
	assert.Equal(t, "a_b_c_d", SubjectToken("a*b>c d"))
	assert.Equal(t, "unknown", SubjectToken(""))
	assert.Equal(t, "InAirTemp", SubjectToken("InAirTemp"))
}

func TestOutput_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	out, err := NewOutput(OutputDeps{Config: Config{SubjectPrefix: "farm.house1."}, Publisher: pub})
	require.NoError(t, err)
	assert.Equal(t, "nats", out.Name())

	require.NoError(t, out.Write(context.Background(), testReading()))

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "farm.house1.SoilTemp_mIC", pub.subjects[0])
	assert.Contains(t, pub.payloads[0], `"data":23.50`)
	assert.Equal(t, int64(1), out.Published())
}

func TestOutput_DefaultPrefix(t *testing.T) {
	out, err := NewOutput(OutputDeps{Publisher: &fakePublisher{}})
	require.NoError(t, err)
	assert.Equal(t, "fieldstreams.readings.X", out.Subject("X"))
}

func TestOutput_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.ErrNoConnection}
	out, err := NewOutput(OutputDeps{Publisher: pub})
	require.NoError(t, err)

	err = out.Write(context.Background(), testReading())
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSinkDelivery))
	assert.True(t, stderrors.Is(err, errors.ErrNoConnection))
	assert.Equal(t, int64(1), out.Errors())
}

func TestNewOutput_Invalid(t *testing.T) {
	_, err := NewOutput(OutputDeps{})
	assert.True(t, errors.IsInvalid(err))

	_, err = NewOutput(OutputDeps{Publisher: &fakePublisher{}, Config: Config{SubjectPrefix: "a.*"}})
	assert.True(t, errors.IsInvalid(err))
}

func TestClientSatisfiesPublisher(t *testing.T) {
	var _ Publisher = (*natsclient.Client)(nil)
}
