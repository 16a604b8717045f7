// Package monitoring provides Prometheus metrics for the supervisor.
//
// Collectors cover the app lifecycle (active apps, starts, stops), fault
// and watchdog dispatch by action, live appProc references, and the HTTP
// IPC surface. Metrics are exposed on /metrics in Prometheus exposition
// format.
package monitoring
