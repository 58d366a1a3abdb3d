// Package agent supervises the voice agent child process: single-instance
// start, line-framed output forwarding, and crash recovery with a fixed
// restart delay. A requested stop never restarts.
package agent
