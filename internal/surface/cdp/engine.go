// Package cdp implements the surface engine over the Chrome DevTools
// Protocol using chromedp. Each surface is one browser target; the host
// window embeds the browser, so attach/detach map to target activation
// rather than native window reparenting.
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/surface"
)

const queryTimeout = 10 * time.Second

// Engine drives surfaces through a shared browser process.
type Engine struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc
	logger      *logging.Logger

	mu      sync.Mutex
	handles map[*Handle]struct{}
	closed  bool
}

// Options configures the browser process.
type Options struct {
	Headless  bool
	UserAgent string
}

// New launches the browser allocator. The first surface starts the actual
// browser process.
func New(opts Options, logger *logging.Logger) (*Engine, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserStop := chromedp.NewContext(allocCtx)

	return &Engine{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		browserStop: browserStop,
		logger:      logger,
		handles:     make(map[*Handle]struct{}),
	}, nil
}

// CreateSurface implements surface.Engine.
func (e *Engine) CreateSurface(ctx context.Context, events surface.EventFunc) (surface.Handle, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine closed")
	}
	e.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)

	h := &Handle{
		ctx:    tabCtx,
		cancel: tabCancel,
		events: events,
		logger: e.logger,
	}
	h.listen()

	e.mu.Lock()
	e.handles[h] = struct{}{}
	e.mu.Unlock()

	return h, nil
}

// Close shuts down every surface and the browser process.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	handles := make([]*Handle, 0, len(e.handles))
	for h := range e.handles {
		handles = append(handles, h)
	}
	e.handles = nil
	e.mu.Unlock()

	for _, h := range handles {
		_ = h.Destroy()
	}
	e.browserStop()
	e.allocCancel()
	return nil
}

// Handle is one CDP-backed surface.
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
	events surface.EventFunc
	logger *logging.Logger

	mu        sync.Mutex
	attached  bool
	destroyed bool
}

// listen wires CDP target events into surface events.
func (h *Handle) listen() {
	chromedp.ListenTarget(h.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame == nil || e.Frame.ParentID != "" {
				return
			}
			h.emit(surface.Event{
				Kind: surface.EventNavigationFinished,
				URL:  e.Frame.URL,
			})
			go h.emitTitle()
		case *network.EventLoadingFailed:
			if e.Type != network.ResourceTypeDocument {
				return
			}
			h.emit(surface.Event{
				Kind:             surface.EventLoadFailed,
				ErrorCode:        -2, // generic failed-load code
				ErrorDescription: e.ErrorText,
			})
		}
	})
}

func (h *Handle) emitTitle() {
	ctx, cancel := context.WithTimeout(h.ctx, queryTimeout)
	defer cancel()

	var title string
	if err := chromedp.Run(ctx, chromedp.Title(&title)); err != nil {
		return
	}
	h.emit(surface.Event{Kind: surface.EventTitleChanged, Title: title})
}

func (h *Handle) emit(ev surface.Event) {
	h.mu.Lock()
	destroyed := h.destroyed
	fn := h.events
	h.mu.Unlock()
	if destroyed || fn == nil {
		return
	}
	fn(ev)
}

// Navigate implements surface.Handle.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	return h.run(ctx, chromedp.Navigate(url))
}

func (h *Handle) GoBack(ctx context.Context) error {
	return h.run(ctx, chromedp.NavigateBack())
}

func (h *Handle) GoForward(ctx context.Context) error {
	return h.run(ctx, chromedp.NavigateForward())
}

func (h *Handle) Reload(ctx context.Context) error {
	return h.run(ctx, chromedp.Reload())
}

// CanGoBack queries navigation history. Errors degrade to false.
func (h *Handle) CanGoBack() bool {
	idx, entries, err := h.history()
	return err == nil && idx > 0 && len(entries) > 1
}

func (h *Handle) CanGoForward() bool {
	idx, entries, err := h.history()
	return err == nil && idx >= 0 && idx < int64(len(entries))-1
}

func (h *Handle) history() (int64, []*page.NavigationEntry, error) {
	ctx, cancel := context.WithTimeout(h.ctx, queryTimeout)
	defer cancel()

	var idx int64
	var entries []*page.NavigationEntry
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		idx, entries, err = page.GetNavigationHistory().Do(ctx)
		return err
	}))
	return idx, entries, err
}

func (h *Handle) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := h.run(ctx, chromedp.Location(&url))
	return url, err
}

func (h *Handle) Title(ctx context.Context) (string, error) {
	var title string
	err := h.run(ctx, chromedp.Title(&title))
	return title, err
}

// CaptureDocument serializes the page: outer HTML plus both storage areas.
func (h *Handle) CaptureDocument(ctx context.Context) (*surface.Document, error) {
	doc := &surface.Document{}
	err := h.run(ctx,
		chromedp.Location(&doc.URL),
		chromedp.Title(&doc.Title),
		chromedp.OuterHTML("html", &doc.HTML),
		chromedp.Evaluate(storageScript("localStorage"), &doc.LocalStorage),
		chromedp.Evaluate(storageScript("sessionStorage"), &doc.SessionStorage),
	)
	if err != nil {
		return nil, fmt.Errorf("capture document: %w", err)
	}
	return doc, nil
}

func storageScript(area string) string {
	return fmt.Sprintf(`(() => {
		const out = {};
		for (let i = 0; i < %s.length; i++) {
			const k = %s.key(i);
			out[k] = %s.getItem(k);
		}
		return out;
	})()`, area, area, area)
}

func (h *Handle) Cookies(ctx context.Context, url string) ([]surface.Cookie, error) {
	var raw []*network.Cookie
	err := h.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	cookies := make([]surface.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, surface.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return cookies, nil
}

func (h *Handle) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := h.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// SetBounds resizes the surface viewport.
func (h *Handle) SetBounds(bounds surface.Bounds) error {
	ctx, cancel := context.WithTimeout(h.ctx, queryTimeout)
	defer cancel()
	return chromedp.Run(ctx, emulation.SetDeviceMetricsOverride(
		int64(bounds.Width), int64(bounds.Height), 1, false,
	))
}

// Attach activates the surface's target.
func (h *Handle) Attach() error {
	ctx, cancel := context.WithTimeout(h.ctx, queryTimeout)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.BringToFront().Do(ctx)
	})); err != nil {
		return err
	}
	h.mu.Lock()
	h.attached = true
	h.mu.Unlock()
	return nil
}

// Detach marks the surface hidden. The target stays alive so its history
// and storage survive tab switches.
func (h *Handle) Detach() error {
	h.mu.Lock()
	h.attached = false
	h.mu.Unlock()
	return nil
}

func (h *Handle) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

// Destroy closes the target. Idempotent.
func (h *Handle) Destroy() error {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil
	}
	h.destroyed = true
	h.mu.Unlock()

	h.cancel()
	return nil
}

// run executes actions against the tab under the caller's deadline while
// preserving the tab's CDP session.
func (h *Handle) run(ctx context.Context, actions ...chromedp.Action) error {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return fmt.Errorf("surface destroyed")
	}
	h.mu.Unlock()

	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(h.ctx, deadline)
	} else {
		runCtx, cancel = context.WithTimeout(h.ctx, queryTimeout)
	}
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if h.logger != nil {
			h.logger.Debug("surface action failed", zap.Error(err))
		}
		return err
	}
	return nil
}
