package tabs

import (
	"net/url"
	"strings"
)

// InternalScheme prefixes virtual pages rendered by the UI process itself.
const InternalScheme = "lumina://"

// BlankURL is the engine's empty placeholder page.
const BlankURL = "about:blank"

// Normalize classifies a raw URL as internal or external and returns the
// canonical form. Internal: empty input (defaults to home), about:blank,
// or any lumina:// page. External input without a scheme gets https://
// prefixed.
func Normalize(raw, homeURL string) (normalized string, external bool) {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		return homeURL, false
	}
	if trimmed == BlankURL || strings.HasPrefix(trimmed, InternalScheme) {
		return trimmed, false
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	return trimmed, true
}

// SearchURL builds the internal search page URL for a query.
func SearchURL(base, query string) string {
	return base + "?q=" + url.QueryEscape(query)
}

// defaultTitle derives a tab title from its URL: the hostname for external
// pages, the page name for internal ones.
func defaultTitle(rawURL string, external bool) string {
	if external {
		if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
		return rawURL
	}

	name := strings.TrimPrefix(rawURL, InternalScheme)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" || name == BlankURL {
		return "New Tab"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
