package tabs

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/luminabrowser/lumina/host/internal/shared/types"
	"github.com/luminabrowser/lumina/host/internal/surface"
)

var (
	textPolicy = bluemonday.StrictPolicy()
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	blankRun   = regexp.MustCompile(`\n{3,}`)
)

// GetContext captures a tab's state for the assistant. Only an unknown id
// is a hard failure; every capture sub-step degrades to an omitted field.
func (r *Registry) GetContext(ctx context.Context, tabID string) (*types.TabContext, error) {
	r.mu.Lock()
	e, ok := r.entries[tabID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("tab not found: %s", tabID)
	}
	tc := &types.TabContext{ID: e.id, URL: e.url, Title: e.title}
	handle := e.handle
	external := e.external
	r.mu.Unlock()

	if !external || handle == nil {
		return tc, nil
	}

	r.captureDocument(ctx, handle, tc)
	r.captureCookies(ctx, handle, tc)
	r.captureScreenshot(ctx, handle, tc)
	return tc, nil
}

func (r *Registry) captureDocument(ctx context.Context, handle surface.Handle, tc *types.TabContext) {
	doc, err := handle.CaptureDocument(ctx)
	if err != nil {
		r.logger.Debug("document capture failed", zap.String("tab", tc.ID), zap.Error(err))
		return
	}

	if doc.URL != "" {
		tc.URL = doc.URL
	}
	if doc.Title != "" {
		tc.Title = doc.Title
	}
	tc.HTML = doc.HTML
	tc.LocalStorage = doc.LocalStorage
	tc.SessionStorage = doc.SessionStorage

	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		return
	}

	meta := make(map[string]string)
	parsed.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok || content == "" {
			return
		}
		if name, ok := s.Attr("name"); ok && name != "" {
			meta[name] = content
		} else if prop, ok := s.Attr("property"); ok && prop != "" {
			meta[prop] = content
		}
	})
	if len(meta) > 0 {
		tc.Meta = meta
	}

	parsed.Find("script, style, noscript").Remove()
	if body, err := parsed.Find("body").Html(); err == nil {
		tc.Text = collapseText(textPolicy.Sanitize(body))
	}
}

// collapseText normalizes sanitizer output into readable plain text.
func collapseText(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func (r *Registry) captureCookies(ctx context.Context, handle surface.Handle, tc *types.TabContext) {
	cookies, err := handle.Cookies(ctx, tc.URL)
	if err != nil {
		r.logger.Debug("cookie capture failed", zap.String("tab", tc.ID), zap.Error(err))
		return
	}

	snapshots := make([]types.CookieSnapshot, 0, len(cookies))
	for _, c := range cookies {
		snap := types.CookieSnapshot{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		host := strings.TrimPrefix(c.Domain, ".")
		if site, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			snap.Site = site
		}
		snapshots = append(snapshots, snap)
	}
	if len(snapshots) > 0 {
		tc.Cookies = snapshots
	}
}

func (r *Registry) captureScreenshot(ctx context.Context, handle surface.Handle, tc *types.TabContext) {
	buf, err := handle.CaptureScreenshot(ctx)
	if err != nil || len(buf) == 0 {
		if err != nil {
			r.logger.Debug("screenshot capture failed", zap.String("tab", tc.ID), zap.Error(err))
		}
		return
	}

	mime := mimetype.Detect(buf).String()
	tc.Screenshot = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf)
}
