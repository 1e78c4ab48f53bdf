// Package metric provides Prometheus-based metrics collection and an HTTP
// server for fieldstreams.
//
// The registry holds the core pipeline metrics (datagrams received and
// dropped, readings accepted and degraded, flush cycles, sink writes, NATS
// connection state) and lets components register their own collectors under
// a service name:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server failed", "error", err)
//	    }
//	}()
//
//	core := registry.CoreMetrics()
//	core.RecordMessageReceived("collector")
//	core.RecordMessageDropped("collector", "malformed")
//
// All core metrics use the namespace "fieldstreams", for example
// fieldstreams_messages_dropped_total{service,reason} and
// fieldstreams_sink_writes_total{sink,status}. The server also answers
// /health with 200 OK.
package metric
