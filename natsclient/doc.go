// Package natsclient manages the hub's NATS connection.
//
// Client layers three behaviors over a raw nats.Conn:
//
//   - Reconnect handling. The underlying connection reconnects on its
//     own (bounded by NATSConfig.MaxReconnects); the client tracks the
//     resulting status transitions and exposes them through Status and
//     GetStatus.
//
//   - A circuit breaker. Consecutive dial, publish, and subscribe
//     failures count toward NATSConfig.CircuitThreshold. Once reached,
//     operations fail fast with a circuit breaker error until a timer
//     half-opens the breaker. The wait doubles after every open, from
//     one second up to NATSConfig.MaxBackoff, and any successful
//     operation resets it.
//
//   - Health monitoring. A background probe verifies liveness and
//     round-trip time, flips status when the connection degrades, and
//     reports flips through the OnHealthChange callback.
//
// Typical use:
//
//	client, err := natsclient.New(cfg.NATS,
//		natsclient.WithLogger(logger),
//		natsclient.WithMetricsRegistry(registry),
//	)
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Subscribe(ctx, "okta.events.>", func(ctx context.Context, data []byte) {
//		// decode and route
//	})
//
// Errors carry transport classification: dial and publish failures are
// transient, so callers can gate retries on errors.IsTransient.
package natsclient
