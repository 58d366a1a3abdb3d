// Package http exposes the host's read-only observability endpoints.
// All mutating operations go through the WebSocket bridge.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/luminabrowser/lumina/host/internal/domain/agent"
	"github.com/luminabrowser/lumina/host/internal/domain/tabs"
	"github.com/luminabrowser/lumina/host/internal/relay"
)

// Handlers serves the inspection endpoints.
type Handlers struct {
	registry   *tabs.Registry
	supervisor *agent.Supervisor
	relay      *relay.Relay
	started    time.Time
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(registry *tabs.Registry, supervisor *agent.Supervisor, streamRelay *relay.Relay) *Handlers {
	return &Handlers{
		registry:   registry,
		supervisor: supervisor,
		relay:      streamRelay,
		started:    time.Now(),
	}
}

// Root describes the service.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "lumina-host",
		"endpoints": gin.H{
			"health":  "/health",
			"tabs":    "/tabs",
			"agent":   "/agent",
			"metrics": "/metrics",
			"bridge":  "ws://.../stream",
		},
	})
}

// Health reports liveness and component state.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"tabs":           len(h.registry.List()),
		"streams":        h.relay.Active(),
		"agent":          h.supervisor.Status().State,
	})
}

// ListTabs dumps the current tab snapshots.
func (h *Handlers) ListTabs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tabs": h.registry.List()})
}

// AgentStatus dumps the supervised process state.
func (h *Handlers) AgentStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.supervisor.Status())
}
