// Package fieldstreams is a field-network telemetry collector.
//
// Sensor nodes broadcast small tag-formatted messages over UDP:
//
//	<DATA type="SoilTemp.mIC" room="1" region="1" order="1" priority="15">23.5</DATA><IP>192.168.1.20</IP>
//
// The collector parses each message into a reading, keeps only the latest
// reading per sensor slot (kind, room, region, order, priority), and on a
// fixed interval flushes the collected readings to a CSV log and a remote
// HTTP endpoint. NATS and InfluxDB mirrors are optional.
//
// # Packages
//
//   - reading: the Reading type, its identity key and wire renderings
//   - processor/parser: the tag-attribute message parser
//   - pkg/buffer: the keyed last-write-wins buffer
//   - collector: the ingest loop and flush cycle
//   - input/udp: the non-blocking datagram receiver
//   - output/file, output/httppost: the durable log and remote sinks
//   - output/natspub, output/influx: mirror sinks
//   - natsclient: NATS connection management
//   - config: layered JSON/YAML/env configuration
//   - metric, health: Prometheus metrics and health reporting
//   - errors: classified errors shared by every package
//   - pkg/clock, pkg/retry: time source and retry helpers
//
// The binary lives in cmd/fieldstreams.
//
// # Delivery policy
//
// A flush drains the buffer first and then attempts every sink once per
// reading. Failures are logged, counted and returned in a FlushReport; they
// are never retried and the reading is not put back.
package fieldstreams
