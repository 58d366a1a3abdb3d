package relay

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminabrowser/lumina/host/internal/infrastructure/config"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/shared/notify"
	"github.com/luminabrowser/lumina/host/internal/shared/types"
)

func newTestRelay(t *testing.T) (*Relay, *notify.Recorder) {
	t.Helper()
	rec := notify.NewRecorder()
	r := NewRelay(config.RelayConfig{ConnectTimeoutMs: 5000, RetryMax: 0}, rec, logging.NewNop())
	t.Cleanup(r.AbortAll)
	return r, rec
}

// chunkServer writes each chunk followed by a flush, so the client sees
// the same read boundaries the server wrote.
func chunkServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func eventData(t *testing.T, n notify.Notification) interface{} {
	t.Helper()
	return n.Payload.(EventPayload).Data
}

func TestFramingIsChunkBoundaryInvariant(t *testing.T) {
	body := "data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: [DONE]\n\n"

	whole, wholeRec := newTestRelay(t)
	srv := chunkServer(t, body)
	require.NoError(t, whole.Open("s-whole", types.StreamRequest{URL: srv.URL}))

	// Cut mid-frame: the second chunk starts inside {"n":1}.
	split, splitRec := newTestRelay(t)
	srv2 := chunkServer(t, "data: {\"n\"", ":1}\n\ndata: {\"n\":2}\n", "\ndata: [DONE]\n\n")
	require.NoError(t, split.Open("s-split", types.StreamRequest{URL: srv2.URL}))

	for _, rec := range []*notify.Recorder{wholeRec, splitRec} {
		assert.Eventually(t, func() bool {
			return rec.Count(notify.TopicStreamComplete) == 1
		}, 5*time.Second, 5*time.Millisecond)

		events := rec.Topic(notify.TopicStreamEvent)
		require.Len(t, events, 2)
		assert.Equal(t, map[string]interface{}{"n": float64(1)}, eventData(t, events[0]))
		assert.Equal(t, map[string]interface{}{"n": float64(2)}, eventData(t, events[1]))
	}
}

func TestSequentialStreamsDoNotCrossTalk(t *testing.T) {
	r, rec := newTestRelay(t)

	for _, id := range []string{"turn-1", "turn-2"} {
		srv := chunkServer(t, "data: {\"n\":1}\n\n", "data: [DONE]\n\n")
		require.NoError(t, r.Open(id, types.StreamRequest{URL: srv.URL}))
		assert.Eventually(t, func() bool {
			return rec.Count(notify.TopicStreamComplete) >= 1
		}, 5*time.Second, 5*time.Millisecond)
		rec.Reset()
	}
}

func TestStreamLifecycleNotifications(t *testing.T) {
	r, rec := newTestRelay(t)
	srv := chunkServer(t, "data: {\"n\":1}\n\ndata: [DONE]\n\n")

	require.NoError(t, r.Open("s1", types.StreamRequest{URL: srv.URL}))

	assert.Eventually(t, func() bool {
		return rec.Count(notify.TopicStreamComplete) == 1
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, rec.Count(notify.TopicStreamConnected))
	assert.Equal(t, 1, rec.Count(notify.TopicStreamEvent))
	assert.Zero(t, rec.Count(notify.TopicStreamError))
	assert.Zero(t, rec.Count(notify.TopicStreamAborted))
	assert.Zero(t, r.Active())
}

func TestCommentsBlanksAndRawPayloads(t *testing.T) {
	r, rec := newTestRelay(t)
	srv := chunkServer(t, ": keep-alive\n\ndata: plain text\n\ndata: [DONE]\n\n")

	require.NoError(t, r.Open("s1", types.StreamRequest{URL: srv.URL}))

	assert.Eventually(t, func() bool {
		return rec.Count(notify.TopicStreamComplete) == 1
	}, 5*time.Second, 5*time.Millisecond)

	events := rec.Topic(notify.TopicStreamEvent)
	require.Len(t, events, 1)
	assert.Equal(t, "plain text", eventData(t, events[0]))
}

func TestTrailingBufferFlushedAtEOF(t *testing.T) {
	r, rec := newTestRelay(t)
	srv := chunkServer(t, "data: {\"tail\":true}")

	require.NoError(t, r.Open("s1", types.StreamRequest{URL: srv.URL}))

	assert.Eventually(t, func() bool {
		return rec.Count(notify.TopicStreamComplete) == 1
	}, 5*time.Second, 5*time.Millisecond)

	events := rec.Topic(notify.TopicStreamEvent)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]interface{}{"tail": true}, eventData(t, events[0]))
}

func TestAbortDuringTransfer(t *testing.T) {
	r, rec := newTestRelay(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"n\":1}\n\n"))
		flusher.Flush()
		select {
		case <-req.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	require.NoError(t, r.Open("s1", types.StreamRequest{URL: srv.URL}))
	assert.Eventually(t, func() bool {
		return rec.Count(notify.TopicStreamEvent) == 1
	}, 5*time.Second, 5*time.Millisecond)

	assert.True(t, r.Abort("s1"))
	assert.Eventually(t, func() bool {
		return rec.Count(notify.TopicStreamAborted) == 1
	}, 5*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.Count(notify.TopicStreamError))
	assert.Zero(t, rec.Count(notify.TopicStreamComplete))
	assert.Zero(t, r.Active())
}

func TestAbortUnknownStream(t *testing.T) {
	r, _ := newTestRelay(t)
	assert.False(t, r.Abort("never-opened"))
}

func TestNonSuccessStatusFailsWithoutBody(t *testing.T) {
	r, rec := newTestRelay(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	t.Cleanup(srv.Close)

	err := r.Open("s1", types.StreamRequest{URL: srv.URL})
	require.Error(t, err)

	errors := rec.Topic(notify.TopicStreamError)
	require.Len(t, errors, 1)
	assert.Equal(t, "http_502", errors[0].Payload.(ErrorPayload).Code)
	assert.Zero(t, rec.Count(notify.TopicStreamConnected))
	assert.Zero(t, r.Active())
}

func TestGzipEncodedBody(t *testing.T) {
	r, rec := newTestRelay(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("data: {\"n\":1}\n\ndata: [DONE]\n\n"))
		_ = gz.Close()
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, r.Open("s1", types.StreamRequest{URL: srv.URL}))

	assert.Eventually(t, func() bool {
		return rec.Count(notify.TopicStreamComplete) == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Len(t, rec.Topic(notify.TopicStreamEvent), 1)
}

func TestCorruptGzipBodyFailsWithBadEncoding(t *testing.T) {
	r, rec := newTestRelay(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write([]byte("this is not gzip"))
	}))
	t.Cleanup(srv.Close)

	// An explicit Accept-Encoding keeps the transport from transparently
	// decompressing, so the relay sees the Content-Encoding header itself.
	require.Error(t, r.Open("s1", types.StreamRequest{
		URL:     srv.URL,
		Headers: map[string]string{"Accept-Encoding": "gzip"},
	}))

	errors := rec.Topic(notify.TopicStreamError)
	require.Len(t, errors, 1)
	assert.Equal(t, "bad_encoding", errors[0].Payload.(ErrorPayload).Code)
	assert.Zero(t, rec.Count(notify.TopicStreamConnected))
	assert.Zero(t, r.Active())
}

func TestRequestCarriesMethodHeadersAndBody(t *testing.T) {
	r, rec := newTestRelay(t)

	var gotMethod, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotMethod = req.Method
		gotAuth = req.Header.Get("Authorization")
		buf := make([]byte, 256)
		n, _ := req.Body.Read(buf)
		gotBody = string(buf[:n])
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, r.Open("s1", types.StreamRequest{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer tok"},
		Body:    `{"messages":[]}`,
	}))

	assert.Eventually(t, func() bool {
		return rec.Count(notify.TopicStreamComplete) == 1
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, `{"messages":[]}`, gotBody)
}
