package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminabrowser/lumina/host/internal/domain/agent"
	"github.com/luminabrowser/lumina/host/internal/domain/tabs"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/config"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/relay"
	"github.com/luminabrowser/lumina/host/internal/surface/surfacetest"
)

type bridgeMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Result    json.RawMessage `json:"result"`
	Error     string          `json:"error"`
	Payload   json.RawMessage `json:"payload"`
}

func newTestBridge(t *testing.T) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	logger := logging.NewNop()
	engine := surfacetest.NewEngine()
	registry := tabs.NewRegistry(engine, hub, logger, tabs.Layout{
		TopChromeHeight: 88,
		PanelWidth:      420,
		WindowWidth:     1280,
		WindowHeight:    800,
	})
	supervisor := agent.NewSupervisor(config.AgentConfig{
		Command:        "/bin/sh",
		Args:           []string{"-c", "sleep 60"},
		RestartDelayMs: 50,
		StopTimeoutMs:  2000,
	}, hub, logger)
	t.Cleanup(supervisor.Shutdown)
	streamRelay := relay.NewRelay(config.RelayConfig{ConnectTimeoutMs: 5000}, hub, logger)
	t.Cleanup(streamRelay.AbortAll)

	router := gin.New()
	handler := NewHandler(hub, registry, supervisor, streamRelay, logger)
	router.GET("/stream", handler.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// roundTrip sends one request and reads frames until the matching
// response arrives, skipping interleaved push notifications.
func roundTrip(t *testing.T, conn *websocket.Conn, reqType, requestID string, payload interface{}) bridgeMessage {
	t.Helper()

	req := map[string]interface{}{"type": reqType, "requestId": requestID}
	if payload != nil {
		req["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(req))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg bridgeMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.RequestID == requestID {
			return msg
		}
	}
	t.Fatalf("no response for request %s", requestID)
	return bridgeMessage{}
}

func decodeResult(t *testing.T, msg bridgeMessage, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(msg.Result, out))
}

func TestBridgeCreateListAndClose(t *testing.T) {
	conn := newTestBridge(t)

	resp := roundTrip(t, conn, "tabs.create", "r1", map[string]string{"url": "example.com"})
	require.Empty(t, resp.Error)
	var created struct {
		TabID string `json:"tabId"`
		URL   string `json:"url"`
	}
	decodeResult(t, resp, &created)
	assert.Equal(t, "https://example.com", created.URL)
	require.NotEmpty(t, created.TabID)

	resp = roundTrip(t, conn, "tabs.list", "r2", nil)
	var list []struct {
		ID       string `json:"id"`
		IsActive bool   `json:"isActive"`
	}
	decodeResult(t, resp, &list)
	require.Len(t, list, 1)
	assert.Equal(t, created.TabID, list[0].ID)
	assert.True(t, list[0].IsActive)

	resp = roundTrip(t, conn, "tabs.close", "r3", map[string]string{"tabId": created.TabID})
	var closed struct {
		Success bool `json:"success"`
	}
	decodeResult(t, resp, &closed)
	assert.True(t, closed.Success)

	resp = roundTrip(t, conn, "tabs.switch", "r4", map[string]string{"tabId": created.TabID})
	var switched struct {
		Success bool `json:"success"`
	}
	decodeResult(t, resp, &switched)
	assert.False(t, switched.Success)
}

func TestBridgeNavigateReportsExternality(t *testing.T) {
	conn := newTestBridge(t)

	resp := roundTrip(t, conn, "browser.navigate", "r1", map[string]string{"url": "lumina://home"})
	var nav struct {
		Success    bool   `json:"success"`
		IsExternal bool   `json:"isExternal"`
		URL        string `json:"url"`
	}
	decodeResult(t, resp, &nav)
	assert.True(t, nav.Success)
	assert.False(t, nav.IsExternal)
	assert.Equal(t, "lumina://home", nav.URL)

	resp = roundTrip(t, conn, "browser.getUrl", "r2", nil)
	var got struct {
		URL string `json:"url"`
	}
	decodeResult(t, resp, &got)
	assert.Equal(t, "lumina://home", got.URL)
}

func TestBridgeSearchBuildsInternalURL(t *testing.T) {
	conn := newTestBridge(t)

	resp := roundTrip(t, conn, "browser.search", "r1", map[string]string{"query": "go testing"})
	var nav struct {
		IsExternal bool   `json:"isExternal"`
		URL        string `json:"url"`
	}
	decodeResult(t, resp, &nav)
	assert.False(t, nav.IsExternal)
	assert.Equal(t, "lumina://search?q=go+testing", nav.URL)
}

func TestBridgeAgentLifecycle(t *testing.T) {
	conn := newTestBridge(t)

	resp := roundTrip(t, conn, "voiceAgent.start", "r1", map[string]string{})
	require.Empty(t, resp.Error)
	var started struct {
		Success bool `json:"success"`
		PID     int  `json:"pid"`
	}
	decodeResult(t, resp, &started)
	assert.True(t, started.Success)
	assert.NotZero(t, started.PID)

	// Starting again returns the same pid.
	resp = roundTrip(t, conn, "voiceAgent.start", "r2", nil)
	var again struct {
		PID int `json:"pid"`
	}
	decodeResult(t, resp, &again)
	assert.Equal(t, started.PID, again.PID)

	resp = roundTrip(t, conn, "voiceAgent.stop", "r3", nil)
	require.Empty(t, resp.Error)
	var stopped struct {
		Success bool `json:"success"`
	}
	decodeResult(t, resp, &stopped)
	assert.True(t, stopped.Success)

	// A second stop has nothing to terminate.
	resp = roundTrip(t, conn, "voiceAgent.stop", "r4", nil)
	require.Empty(t, resp.Error)
	decodeResult(t, resp, &stopped)
	assert.False(t, stopped.Success)
}

func TestBridgeAbortUnknownStream(t *testing.T) {
	conn := newTestBridge(t)

	resp := roundTrip(t, conn, "agent.abortStream", "r1", map[string]string{"streamId": "nope"})
	var aborted struct {
		Success bool `json:"success"`
	}
	decodeResult(t, resp, &aborted)
	assert.False(t, aborted.Success)
}

func TestBridgeUnknownType(t *testing.T) {
	conn := newTestBridge(t)

	resp := roundTrip(t, conn, "tabs.destroyAllHumans", "r1", nil)
	assert.Contains(t, resp.Error, "unknown request type")
}

func TestBridgePushesTabUpdates(t *testing.T) {
	conn := newTestBridge(t)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "tabs.create", "requestId": "r1",
		"payload": map[string]string{"url": "example.com"},
	}))

	// The create broadcasts tabs.updated alongside the response.
	sawPush := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !sawPush {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg bridgeMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "tabs.updated" {
			sawPush = true
		}
	}
	assert.True(t, sawPush)
}
