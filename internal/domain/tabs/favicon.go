package tabs

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// FaviconProbe checks an origin's well-known favicon location when a page
// never announces an icon of its own.
type FaviconProbe struct {
	client *resty.Client
}

// NewFaviconProbe creates a probe with a short timeout; it is only ever
// used best-effort.
func NewFaviconProbe() *FaviconProbe {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0)
	return &FaviconProbe{client: client}
}

// Resolve returns the favicon URL for a page's origin, or an error when
// none is served there.
func (p *FaviconProbe) Resolve(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("no origin in %q", pageURL)
	}

	iconURL := u.Scheme + "://" + u.Host + "/favicon.ico"
	resp, err := p.client.R().Head(iconURL)
	if err != nil {
		return "", err
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("favicon probe: HTTP %d", resp.StatusCode())
	}
	return iconURL, nil
}
