// Package ws is the message-passing boundary between the host process
// and the UI process: one WebSocket per UI window carries request/response
// pairs in one direction and fire-and-forget push notifications in the
// other. The Hub is the production notify.Sink.
package ws
