// Package notify abstracts host-to-UI push notifications behind a sink
// interface so components never hold a reference to the transport. The
// production sink writes to the WebSocket bridge; tests use Recorder.
package notify

import "sync"

// Topics pushed from the host to the UI process.
const (
	TopicTabsUpdated        = "tabs.updated"
	TopicURLChanged         = "browser.urlChanged"
	TopicNavigationComplete = "browser.navigationComplete"
	TopicNavigationError    = "browser.navigationError"
	TopicExternalMode       = "browser.externalMode"
	TopicContextMenu        = "browser.contextMenu"
	TopicAskAssistant       = "browser.askAssistant"

	TopicAgentEvent   = "voiceAgent.event"
	TopicAgentOutput  = "voiceAgent.output"
	TopicAgentError   = "voiceAgent.error"
	TopicAgentStopped = "voiceAgent.stopped"

	TopicStreamConnected = "agent.streamConnected"
	TopicStreamEvent     = "agent.streamEvent"
	TopicStreamComplete  = "agent.streamComplete"
	TopicStreamError     = "agent.streamError"
	TopicStreamAborted   = "agent.streamAborted"
)

// Sink receives fire-and-forget push notifications.
type Sink interface {
	Notify(topic string, payload interface{})
}

// Func adapts a function to the Sink interface.
type Func func(topic string, payload interface{})

// Notify implements Sink.
func (f Func) Notify(topic string, payload interface{}) { f(topic, payload) }

// Discard drops every notification.
var Discard Sink = Func(func(string, interface{}) {})

// Notification is one recorded push.
type Notification struct {
	Topic   string
	Payload interface{}
}

// Recorder is a Sink that captures notifications for inspection in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify implements Sink.
func (r *Recorder) Notify(topic string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Notification{Topic: topic, Payload: payload})
}

// All returns a copy of every recorded notification in order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.events))
	copy(out, r.events)
	return out
}

// Topic returns every recorded notification matching topic, in order.
func (r *Recorder) Topic(topic string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.events {
		if n.Topic == topic {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many notifications matched topic.
func (r *Recorder) Count(topic string) int {
	return len(r.Topic(topic))
}

// Reset discards recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
