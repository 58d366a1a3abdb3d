// Package monitoring exposes Prometheus metrics for the orchestration
// core: open tabs, agent process liveness and restarts, live stream
// sessions and decoded frames, and bridge traffic. Collectors live in a
// per-instance registry so tests never collide on the global default.
package monitoring
