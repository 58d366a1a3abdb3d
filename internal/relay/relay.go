// Package relay proxies cancellable event streams from a remote HTTP
// endpoint to the UI process. The wire format is newline-delimited
// "data: <payload>" frames over chunked transfer; chunk boundaries never
// align with frame boundaries, so each session keeps a partial-line
// buffer across reads.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/luminabrowser/lumina/host/internal/infrastructure/config"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/monitoring"
	"github.com/luminabrowser/lumina/host/internal/shared/notify"
	"github.com/luminabrowser/lumina/host/internal/shared/types"
)

const (
	dataPrefix = "data:"
	endMarker  = "[DONE]"
)

// ConnectedPayload is pushed on agent.streamConnected.
type ConnectedPayload struct {
	StreamID string `json:"streamId"`
}

// EventPayload is pushed on agent.streamEvent, one per decoded frame.
type EventPayload struct {
	StreamID string      `json:"streamId"`
	Data     interface{} `json:"data"`
}

// CompletePayload is pushed on agent.streamComplete.
type CompletePayload struct {
	StreamID string `json:"streamId"`
}

// ErrorPayload is pushed on agent.streamError.
type ErrorPayload struct {
	StreamID string `json:"streamId"`
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
}

// AbortedPayload is pushed on agent.streamAborted.
type AbortedPayload struct {
	StreamID string `json:"streamId"`
}

type session struct {
	cancel context.CancelFunc
}

// Relay owns the table of live stream sessions, keyed by caller-supplied
// id, and the HTTP client used to reach the remote endpoint.
type Relay struct {
	client  *retryablehttp.Client
	sink    notify.Sink
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

// NewRelay creates a relay with its own retrying HTTP client. Retries
// apply to the initial connect only; an established stream is never
// replayed.
func NewRelay(cfg config.RelayConfig, sink notify.Sink, logger *logging.Logger) *Relay {
	if sink == nil {
		sink = notify.Discard
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.Logger = nil
	client.HTTPClient = &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond,
		},
	}
	// Retry transport failures only. An HTTP status, success or not, is
	// final: the caller maps non-success statuses to stream errors.
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		return false, nil
	}

	return &Relay{
		client:   client,
		sink:     sink,
		logger:   logger.Named("relay"),
		sessions: make(map[string]*session),
	}
}

// WithMetrics attaches stream metrics.
func (r *Relay) WithMetrics(m *monitoring.Metrics) *Relay {
	r.metrics = m
	return r
}

// Open connects to the remote endpoint and starts forwarding frames for
// streamID. It returns once the response headers arrive: a non-success
// status or a missing body fails the call (and pushes a streamError)
// without reading any body; on success the body is consumed on a
// background goroutine until complete, error, or abort. Reusing a live
// streamID aborts the previous session first.
func (r *Relay) Open(streamID string, req types.StreamRequest) error {
	if streamID == "" {
		return fmt.Errorf("stream id is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{cancel: cancel}

	r.mu.Lock()
	if prev, ok := r.sessions[streamID]; ok {
		prev.cancel()
	}
	r.sessions[streamID] = sess
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.StreamsActive.Inc()
	}

	resp, err := r.connect(ctx, req)
	if err != nil {
		r.finish(streamID, sess)
		if ctx.Err() == context.Canceled {
			r.sink.Notify(notify.TopicStreamAborted, AbortedPayload{StreamID: streamID})
			return err
		}
		r.fail(streamID, "connect_failed", err.Error())
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		r.finish(streamID, sess)
		code := fmt.Sprintf("http_%d", resp.StatusCode)
		r.fail(streamID, code, resp.Status)
		return fmt.Errorf("stream %s: upstream returned %s", streamID, resp.Status)
	}

	body, code, err := decodeBody(resp)
	if err != nil {
		resp.Body.Close()
		r.finish(streamID, sess)
		r.fail(streamID, code, err.Error())
		return err
	}

	r.sink.Notify(notify.TopicStreamConnected, ConnectedPayload{StreamID: streamID})
	r.logger.Debug("stream connected", zap.String("stream", streamID))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer resp.Body.Close()
		r.pump(ctx, streamID, sess, body)
	}()
	return nil
}

// Abort cancels one live session. Unknown ids report false rather than
// an error so stale aborts from the UI are harmless.
func (r *Relay) Abort(streamID string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[streamID]
	if ok {
		delete(r.sessions, streamID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	sess.cancel()
	return true
}

// AbortAll cancels every live session; used on host shutdown.
func (r *Relay) AbortAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.cancel()
	}
	r.wg.Wait()
}

// Active returns the number of live sessions.
func (r *Relay) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Relay) connect(ctx context.Context, req types.StreamRequest) (*http.Response, error) {
	method := req.Method
	if method == "" {
		if req.Body != "" {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	}

	var body interface{}
	if req.Body != "" {
		body = []byte(req.Body)
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("invalid stream request: %w", err)
	}
	for key, value := range req.Headers {
		hreq.Header.Set(key, value)
	}

	return r.client.Do(hreq)
}

// decodeBody unwraps gzip-encoded responses; the remote endpoint may
// compress even for streaming transfers. The second return value is the
// stream error code for a failure.
func decodeBody(resp *http.Response) (io.Reader, string, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, "no_body", fmt.Errorf("response has no body")
	}
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, "bad_encoding", fmt.Errorf("malformed gzip body: %w", err)
		}
		return gz, "", nil
	}
	return resp.Body, "", nil
}

// pump reads chunks, maintains the partial-line buffer, and forwards
// decoded frames until the stream ends or the session is cancelled.
func (r *Relay) pump(ctx context.Context, streamID string, sess *session, body io.Reader) {
	defer r.finish(streamID, sess)

	var lineBuffer string
	buf := make([]byte, 4096)

	for {
		n, err := body.Read(buf)
		if n > 0 {
			lineBuffer += string(buf[:n])
			for {
				idx := strings.IndexByte(lineBuffer, '\n')
				if idx < 0 {
					break
				}
				line := lineBuffer[:idx]
				lineBuffer = lineBuffer[idx+1:]
				r.processLine(streamID, line)
			}
		}

		if err == nil {
			continue
		}
		if err == io.EOF {
			if lineBuffer != "" {
				r.processLine(streamID, lineBuffer)
			}
			r.sink.Notify(notify.TopicStreamComplete, CompletePayload{StreamID: streamID})
			r.logger.Debug("stream complete", zap.String("stream", streamID))
			return
		}
		if ctx.Err() == context.Canceled {
			r.sink.Notify(notify.TopicStreamAborted, AbortedPayload{StreamID: streamID})
			r.logger.Debug("stream aborted", zap.String("stream", streamID))
			return
		}
		r.fail(streamID, "read_failed", err.Error())
		return
	}
}

// processLine decodes one complete line of the wire format. Blank lines
// and comment lines are ignored; the end marker is a no-op.
func (r *Relay) processLine(streamID, line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		return
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return
	}

	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == "" || payload == endMarker {
		return
	}

	var data interface{}
	if err := sonic.UnmarshalString(payload, &data); err != nil {
		data = payload
	}
	r.sink.Notify(notify.TopicStreamEvent, EventPayload{StreamID: streamID, Data: data})
	if r.metrics != nil {
		r.metrics.StreamFrames.Inc()
	}
}

// finish removes the session entry unless an abort already replaced or
// removed it.
func (r *Relay) finish(streamID string, sess *session) {
	r.mu.Lock()
	if current, ok := r.sessions[streamID]; ok && current == sess {
		delete(r.sessions, streamID)
	}
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.StreamsActive.Dec()
	}
}

func (r *Relay) fail(streamID, code, message string) {
	r.logger.Warn("stream failed",
		zap.String("stream", streamID),
		zap.String("code", code),
		zap.String("message", message))
	r.sink.Notify(notify.TopicStreamError, ErrorPayload{StreamID: streamID, Code: code, Message: message})
	if r.metrics != nil {
		r.metrics.StreamErrors.WithLabelValues(code).Inc()
	}
}
