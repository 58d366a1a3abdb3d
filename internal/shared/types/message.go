package types

import "encoding/json"

// BridgeRequest is one UI-process request over the WebSocket channel.
// Type selects the operation ("tabs.create", "agent.startStream", ...);
// RequestID is echoed back on the matching response.
type BridgeRequest struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// BridgeResponse answers exactly one BridgeRequest.
type BridgeResponse struct {
	Type      string      `json:"type"`
	RequestID string      `json:"requestId,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// CreateTabRequest creates a browsing context. ClientID, when set, is an
// idempotency key: repeating it returns the existing tab.
type CreateTabRequest struct {
	URL      string `json:"url,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// TabRequest addresses an existing tab.
type TabRequest struct {
	TabID string `json:"tabId"`
}

// NavigateRequest navigates the active tab.
type NavigateRequest struct {
	URL string `json:"url"`
}

// SearchRequest wraps a query into an internal search navigation.
type SearchRequest struct {
	Query string `json:"query"`
}

// PanelRequest reports the UI side panel opening or closing.
type PanelRequest struct {
	Open bool `json:"open"`
}

// ResizeRequest reports a window content-area resize.
type ResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AskAssistantRequest forwards a context-menu "ask assistant" pick; the
// host rebroadcasts it so the assistant panel receives the selection.
type AskAssistantRequest struct {
	Selection string `json:"selection"`
	URL       string `json:"url,omitempty"`
}

// AgentStartRequest starts the supervised voice-agent process.
type AgentStartRequest struct {
	Credential string `json:"credential,omitempty"`
}

// StreamOpenRequest opens a relayed event stream.
type StreamOpenRequest struct {
	StreamID string        `json:"streamId"`
	Request  StreamRequest `json:"request"`
}

// StreamRequest describes the upstream HTTP call to proxy.
type StreamRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// StreamAbortRequest cancels one relayed stream.
type StreamAbortRequest struct {
	StreamID string `json:"streamId"`
}

// NavigationError is pushed when a surface load fails.
type NavigationError struct {
	ErrorCode        int    `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	URL              string `json:"url"`
}
