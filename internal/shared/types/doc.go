// Package types defines the shared data model crossing package boundaries:
// tab snapshots, captured tab context, and the request/response envelopes
// exchanged with the UI process over the bridge.
package types
