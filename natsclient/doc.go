// Package natsclient manages a single NATS connection for publishing.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("fieldstreams"),
//	    natsclient.WithMetrics(registry),
//	    natsclient.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Publish(ctx, "fieldstreams.readings.SoilTemp_mIC", payload)
//
// Reconnection is delegated to nats.go (infinite by default). While the
// connection is down Publish returns errors.ErrNoConnection and callers decide
// whether that matters; the mirror sink reports it and moves on.
package natsclient
