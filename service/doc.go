// Package service defines the lifecycle contract for the hub's
// long-running components and a BaseService that implements it.
//
// A Service moves through stopped -> starting -> running -> stopping,
// reports health through the health package, and exposes runtime
// counters (messages processed, health checks, uptime) via GetStatus.
// Concrete services embed BaseService and layer their own Start and
// Stop around the base lifecycle:
//
//	type Ingestor struct {
//		*service.BaseService
//		// ...
//	}
//
//	func (i *Ingestor) Start(ctx context.Context) error {
//		if err := i.BaseService.Start(ctx); err != nil {
//			return err
//		}
//		// subscribe, spawn loops
//		return nil
//	}
//
// BaseService handles the rest: a periodic health check (custom
// function first, then NATS connectivity when a client is attached),
// health-flip callbacks, the ssohub_service_status gauge, and shutdown
// on parent context cancellation.
package service
