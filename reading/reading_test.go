package reading

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soilTemp() Reading {
	return Reading{
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

func TestReading_Key(t *testing.T) {
	a := soilTemp()
	b := soilTemp()
	b.Value = 99
	b.SourceAddress = "10.0.0.1"
	b.ObservedAtUTC = b.ObservedAtUTC.Add(time.Minute)

	assert.Equal(t, a.Key(), b.Key(), "value, address and time are not part of identity")
	assert.Equal(t, "SoilTemp.mIC/1/1/1/15", a.Key().String())

	for _, mutate := range []func(*Reading){
		func(r *Reading) { r.Kind = "InAirTemp.mIC" },
		func(r *Reading) { r.Room = 2 },
		func(r *Reading) { r.Region = 2 },
		func(r *Reading) { r.Order = 2 },
		func(r *Reading) { r.Priority = 1 },
	} {
		c := soilTemp()
		mutate(&c)
		assert.NotEqual(t, a.Key(), c.Key())
	}
}

func TestReading_Degraded(t *testing.T) {
	r := soilTemp()
	assert.False(t, r.IsDegraded())

	r.Degraded = []string{FieldRoom}
	assert.True(t, r.IsDegraded())
	assert.True(t, r.DegradedField(FieldRoom))
	assert.False(t, r.DegradedField(FieldValue))
}

func TestReading_CSVRecord(t *testing.T) {
	assert.Equal(t,
		"2025-06-01 09:30:00,SoilTemp.mIC,1,1,1,15,23.50,192.168.1.20\n",
		soilTemp().CSVRecord())

	r := soilTemp()
	r.Value = -0.004
	r.SourceAddress = UnknownAddress
	assert.Equal(t,
		"2025-06-01 09:30:00,SoilTemp.mIC,1,1,1,15,-0.00,0.0.0.0\n",
		r.CSVRecord())
}

func TestReading_MarshalPayload(t *testing.T) {
	data, err := soilTemp().MarshalPayload()
	require.NoError(t, err)

	assert.Equal(t,
		`{"timestamp":1748737800,"timeStr":"2025-06-01 09:30:00","type":"SoilTemp.mIC",`+
			`"room":1,"region":1,"order":1,"priority":15,"data":23.50,"ip":"192.168.1.20"}`,
		string(data))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.InDelta(t, 23.5, decoded["data"], 1e-9)
}

func TestReading_MarshalPayloadKeepsMarkup(t *testing.T) {
	r := soilTemp()
	r.Kind = "A&lt;<b>"

	data, err := r.MarshalPayload()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"type":"A&lt;<b>"`)
	assert.NotContains(t, string(data), `\u0026`)
	assert.False(t, strings.HasSuffix(string(data), "\n"))
}

func TestDecimal2_MarshalJSON(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{0, "0.00"},
		{23.456, "23.46"},
		{-1.5, "-1.50"},
		{1e6, "1000000.00"},
	}

	for _, tt := range tests {
		out, err := json.Marshal(Decimal2(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.expected, string(out))
	}

	_, err := json.Marshal(Decimal2(math.NaN()))
	assert.Error(t, err, "NaN is not a valid JSON number")
}
