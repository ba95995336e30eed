// Package health checks the dependencies a graph construction run needs.
//
// # Health Check Functions
//
//   - NetworkCheck: Verify TCP connectivity to a host:port
//   - EndpointCheck: Verify TCP connectivity to the host of a connection URI
//   - FileCheck: Verify a file or directory exists
//   - SchemaCheck: Verify a schema document loads and validates
//   - StoreCheck: Verify the graph store accepts connections
//   - ServerVersionCheck: Verify the store meets a minimum server version
//   - APOCCheck: Verify the APOC procedures used for batching are installed
//   - RedisCheck: Verify the run journal's Redis server answers
//   - Combine: Aggregate multiple health checks into a single status
//
// # Usage Example
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//
//	overall := health.Combine(
//	    health.SchemaCheck("schema.yaml"),
//	    health.StoreCheck(ctx, st),
//	    health.ServerVersionCheck(ctx, session, health.MinServerVersion),
//	    health.APOCCheck(ctx, session),
//	)
//	if overall.IsUnhealthy() {
//	    log.Printf("health check failed: %s %+v", overall.Message, overall.Details)
//	}
//
// # Health Status Priority
//
// When combining health checks with Combine(), the result follows this priority:
//
//   - Unhealthy: If any check is unhealthy, the combined result is unhealthy
//   - Degraded: If any check is degraded (and none unhealthy), the result is degraded
//   - Healthy: If all checks are healthy, the result is healthy
//
// # Version Comparison
//
// ServerVersionCheck compares versions numerically on each segment
// (major.minor.patch). Suffixes such as "-aura" or "+build" are ignored.
package health
