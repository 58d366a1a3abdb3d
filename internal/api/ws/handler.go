package ws

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/luminabrowser/lumina/host/internal/domain/agent"
	"github.com/luminabrowser/lumina/host/internal/domain/tabs"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/monitoring"
	"github.com/luminabrowser/lumina/host/internal/relay"
	"github.com/luminabrowser/lumina/host/internal/shared/id"
	"github.com/luminabrowser/lumina/host/internal/shared/notify"
	"github.com/luminabrowser/lumina/host/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The UI process connects from a custom scheme, not an http origin.
		return true
	},
}

// Handler dispatches UI-process requests into the tab registry, the
// agent supervisor, and the stream relay.
type Handler struct {
	hub        *Hub
	registry   *tabs.Registry
	supervisor *agent.Supervisor
	relay      *relay.Relay
	logger     *logging.Logger
	metrics    *monitoring.Metrics
}

// NewHandler creates the bridge handler.
func NewHandler(hub *Hub, registry *tabs.Registry, supervisor *agent.Supervisor, streamRelay *relay.Relay, logger *logging.Logger) *Handler {
	return &Handler{
		hub:        hub,
		registry:   registry,
		supervisor: supervisor,
		relay:      streamRelay,
		logger:     logger.Named("bridge"),
	}
}

// WithMetrics attaches bridge metrics.
func (h *Handler) WithMetrics(m *monitoring.Metrics) *Handler {
	h.metrics = m
	return h
}

// HandleConnection upgrades the request and runs the read loop until the
// UI process disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := id.NewConnID()
	logger := h.logger.With(zap.String("conn", connID.String()))
	logger.Info("ui connected")
	defer logger.Info("ui disconnected")

	cl := &client{conn: conn}
	h.hub.add(cl)
	defer h.hub.remove(cl)
	if h.metrics != nil {
		h.metrics.BridgeConnections.Inc()
		defer h.metrics.BridgeConnections.Dec()
	}

	_ = cl.writeJSON(pushMessage{Type: "system.connected", Payload: gin.H{"connId": connID}})
	reqCtx := c.Request.Context()

	for {
		var req types.BridgeRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		if h.metrics != nil {
			h.metrics.BridgeMessages.WithLabelValues(req.Type).Inc()
		}

		result, err := h.dispatch(reqCtx, req)
		resp := types.BridgeResponse{Type: req.Type, RequestID: req.RequestID}
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
		if err := cl.writeJSON(resp); err != nil {
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, req types.BridgeRequest) (interface{}, error) {
	switch req.Type {
	case "ping":
		return gin.H{"pong": true}, nil

	case "tabs.create":
		var p types.CreateTabRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		tab, err := h.registry.Create(ctx, p.ClientID, p.URL)
		if err != nil {
			return nil, err
		}
		return gin.H{"tabId": tab.ID, "url": tab.URL}, nil

	case "tabs.close":
		var p types.TabRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		return gin.H{"success": h.registry.Close(ctx, p.TabID)}, nil

	case "tabs.switch":
		var p types.TabRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		return gin.H{"success": h.registry.Switch(ctx, p.TabID)}, nil

	case "tabs.list":
		return h.registry.List(), nil

	case "tabs.getContext":
		var p types.TabRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		tc, err := h.registry.GetContext(ctx, p.TabID)
		if err != nil {
			return gin.H{"success": false, "error": err.Error()}, nil
		}
		return gin.H{"success": true, "context": tc}, nil

	case "browser.navigate":
		var p types.NavigateRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		return h.registry.NavigateActive(ctx, p.URL), nil

	case "browser.search":
		var p types.SearchRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		return h.registry.Search(ctx, p.Query), nil

	case "browser.goBack":
		return gin.H{"success": h.registry.GoBack(ctx)}, nil

	case "browser.goForward":
		return gin.H{"success": h.registry.GoForward(ctx)}, nil

	case "browser.reload":
		return gin.H{"success": h.registry.Reload(ctx)}, nil

	case "browser.getUrl":
		return gin.H{"url": h.registry.ActiveURL()}, nil

	case "browser.canGoBack":
		return gin.H{"value": h.registry.CanGoBack()}, nil

	case "browser.canGoForward":
		return gin.H{"value": h.registry.CanGoForward()}, nil

	case "browser.askAssistant":
		var p types.AskAssistantRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		h.hub.Notify(notify.TopicAskAssistant, p)
		return gin.H{"success": true}, nil

	case "browser.setPanelOpen":
		var p types.PanelRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		h.registry.SetPanelOpen(p.Open)
		return gin.H{"success": true}, nil

	case "browser.resize":
		var p types.ResizeRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		h.registry.Resize(p.Width, p.Height)
		return gin.H{"success": true}, nil

	case "voiceAgent.start":
		var p types.AgentStartRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		status, err := h.supervisor.Start(p.Credential)
		if err != nil {
			return nil, err
		}
		return gin.H{"success": true, "pid": status.PID, "state": status.State}, nil

	case "voiceAgent.stop":
		// success is false when nothing was running.
		return gin.H{"success": h.supervisor.Stop()}, nil

	case "agent.startStream":
		var p types.StreamOpenRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		if p.StreamID == "" {
			p.StreamID = id.NewStreamID().String()
		}
		if err := h.relay.Open(p.StreamID, p.Request); err != nil {
			return gin.H{"success": false, "streamId": p.StreamID, "error": err.Error()}, nil
		}
		return gin.H{"success": true, "streamId": p.StreamID}, nil

	case "agent.abortStream":
		var p types.StreamAbortRequest
		if err := h.decode(req, &p); err != nil {
			return nil, err
		}
		return gin.H{"success": h.relay.Abort(p.StreamID)}, nil

	case "agent.abortAllStreams":
		h.relay.AbortAll()
		return gin.H{"success": true}, nil

	default:
		return nil, fmt.Errorf("unknown request type: %s", req.Type)
	}
}

func (h *Handler) decode(req types.BridgeRequest, out interface{}) error {
	if len(req.Payload) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(req.Payload, out); err != nil {
		return fmt.Errorf("invalid %s payload: %w", req.Type, err)
	}
	return nil
}
