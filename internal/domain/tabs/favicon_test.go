package tabs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaviconProbeResolvesWellKnownLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/favicon.ico" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	probe := NewFaviconProbe()
	icon, err := probe.Resolve(srv.URL + "/some/page")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/favicon.ico", icon)
}

func TestFaviconProbeReportsMissingIcon(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	probe := NewFaviconProbe()
	_, err := probe.Resolve(srv.URL + "/page")
	assert.Error(t, err)
}

func TestFaviconProbeRejectsOriginlessURL(t *testing.T) {
	probe := NewFaviconProbe()
	_, err := probe.Resolve("not a url")
	assert.Error(t, err)
}
