// Package health implements periodic liveness monitoring for a shard
// connection set.
//
// # Overview
//
// A Monitor pings every shard in a set on a fixed interval and tracks
// per-shard status, last-check timestamps and consecutive failure
// counts. A shard is marked unhealthy after three consecutive failed
// checks and healthy again on the first success, with an optional
// callback on the unhealthy transition.
//
// The monitor observes, it does not mend: there is no reconnection or
// failover logic here. The shard set is immutable after startup, so an
// unhealthy shard stays in rotation and the operator decides what to
// do with the signal. The dbping command's watch mode is the primary
// consumer.
//
// # Usage Example
//
//	monitor := health.NewMonitor(set, 5*time.Second, logger)
//	monitor.SetOnUnhealthy(func(index int) {
//	    logger.Error("shard lost", "shard", index)
//	})
//	go monitor.Start(ctx)
//	...
//	monitor.Stop()
//
// The check function can be replaced for tests via SetCheckFunc.
package health
