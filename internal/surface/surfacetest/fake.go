// Package surfacetest provides an in-memory surface engine for component
// tests. The fake records every call a registry makes and lets tests fire
// surface events as if the rendering engine emitted them.
package surfacetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/luminabrowser/lumina/host/internal/surface"
)

// Engine is a fake surface.Engine.
type Engine struct {
	mu       sync.Mutex
	surfaces []*Handle
	failNext bool
}

// NewEngine creates an empty fake engine.
func NewEngine() *Engine {
	return &Engine{}
}

// FailNextCreate makes the next CreateSurface call return an error.
func (e *Engine) FailNextCreate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failNext = true
}

// CreateSurface implements surface.Engine.
func (e *Engine) CreateSurface(ctx context.Context, events surface.EventFunc) (surface.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failNext {
		e.failNext = false
		return nil, fmt.Errorf("surface creation failed")
	}
	h := &Handle{
		events:         events,
		LocalStorage:   map[string]string{},
		SessionStorage: map[string]string{},
	}
	e.surfaces = append(e.surfaces, h)
	return h, nil
}

// Close implements surface.Engine.
func (e *Engine) Close() error { return nil }

// Surfaces returns every surface created so far, in creation order.
func (e *Engine) Surfaces() []*Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Handle, len(e.surfaces))
	copy(out, e.surfaces)
	return out
}

// Last returns the most recently created surface, or nil.
func (e *Engine) Last() *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.surfaces) == 0 {
		return nil
	}
	return e.surfaces[len(e.surfaces)-1]
}

// Handle is a fake surface.Handle with recorded state.
type Handle struct {
	mu     sync.Mutex
	events surface.EventFunc

	URL            string
	PageTitle      string
	HTML           string
	LocalStorage   map[string]string
	SessionStorage map[string]string
	CookieList     []surface.Cookie
	Screenshot     []byte

	Navigations []string
	BoundsSet   []surface.Bounds
	attached    bool
	destroyed   bool
	backOK      bool
	forwardOK   bool

	NavigateErr   error
	ScreenshotErr error
	CookiesErr    error
	DocumentErr   error
	DestroyErr    error
}

// Emit fires a surface event as if the engine produced it.
func (h *Handle) Emit(ev surface.Event) {
	h.mu.Lock()
	fn := h.events
	h.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// SetHistory controls CanGoBack / CanGoForward.
func (h *Handle) SetHistory(back, forward bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backOK = back
	h.forwardOK = forward
}

// Navigate implements surface.Handle.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.NavigateErr != nil {
		return h.NavigateErr
	}
	h.Navigations = append(h.Navigations, url)
	h.URL = url
	return nil
}

func (h *Handle) GoBack(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.backOK {
		return fmt.Errorf("no back history")
	}
	return nil
}

func (h *Handle) GoForward(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.forwardOK {
		return fmt.Errorf("no forward history")
	}
	return nil
}

func (h *Handle) Reload(ctx context.Context) error { return nil }

func (h *Handle) CanGoBack() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backOK
}

func (h *Handle) CanGoForward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forwardOK
}

func (h *Handle) CurrentURL(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.URL, nil
}

func (h *Handle) Title(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.PageTitle, nil
}

func (h *Handle) CaptureDocument(ctx context.Context) (*surface.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.DocumentErr != nil {
		return nil, h.DocumentErr
	}
	return &surface.Document{
		URL:            h.URL,
		Title:          h.PageTitle,
		HTML:           h.HTML,
		LocalStorage:   h.LocalStorage,
		SessionStorage: h.SessionStorage,
	}, nil
}

func (h *Handle) Cookies(ctx context.Context, url string) ([]surface.Cookie, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.CookiesErr != nil {
		return nil, h.CookiesErr
	}
	return h.CookieList, nil
}

func (h *Handle) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ScreenshotErr != nil {
		return nil, h.ScreenshotErr
	}
	return h.Screenshot, nil
}

func (h *Handle) SetBounds(bounds surface.Bounds) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.BoundsSet = append(h.BoundsSet, bounds)
	return nil
}

func (h *Handle) Attach() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = true
	return nil
}

func (h *Handle) Detach() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = false
	return nil
}

func (h *Handle) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

func (h *Handle) Destroy() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed = true
	if h.DestroyErr != nil {
		return h.DestroyErr
	}
	return nil
}

// Destroyed reports whether Destroy was called.
func (h *Handle) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}
