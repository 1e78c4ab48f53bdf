package reading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CSVRecord renders r as one durable-log line:
// local,kind,room,region,order,priority,value,address followed by a newline.
// Fields are written verbatim, matching the records the field devices have
// always produced, so downstream spreadsheets keep parsing them.
func (r Reading) CSVRecord() string {
	return fmt.Sprintf("%s,%s,%d,%d,%d,%d,%.2f,%s\n",
		r.ObservedAtLocal, r.Kind, r.Room, r.Region, r.Order, r.Priority, r.Value, r.SourceAddress)
}

// Decimal2 is a float that marshals to JSON with exactly two decimals
type Decimal2 float64

// MarshalJSON implements json.Marshaler
func (d Decimal2) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(d), 'f', 2, 64), nil
}

// Payload is the JSON document delivered to the remote endpoint
type Payload struct {
	Timestamp int64    `json:"timestamp"`
	TimeStr   string   `json:"timeStr"`
	Type      string   `json:"type"`
	Room      int      `json:"room"`
	Region    int      `json:"region"`
	Order     int      `json:"order"`
	Priority  int      `json:"priority"`
	Data      Decimal2 `json:"data"`
	IP        string   `json:"ip"`
}

// Payload returns the remote rendering of r
func (r Reading) Payload() Payload {
	return Payload{
		Timestamp: r.ObservedAtUTC.Unix(),
		TimeStr:   r.ObservedAtLocal,
		Type:      r.Kind,
		Room:      r.Room,
		Region:    r.Region,
		Order:     r.Order,
		Priority:  r.Priority,
		Data:      Decimal2(r.Value),
		IP:        r.SourceAddress,
	}
}

// MarshalPayload encodes the remote rendering of r. Strings are written
// without HTML escaping so kinds reach the endpoint byte for byte.
func (r Reading) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.Payload()); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
