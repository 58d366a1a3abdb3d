package tabs

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/luminabrowser/lumina/host/internal/infrastructure/logging"
	"github.com/luminabrowser/lumina/host/internal/infrastructure/monitoring"
	"github.com/luminabrowser/lumina/host/internal/shared/id"
	"github.com/luminabrowser/lumina/host/internal/shared/notify"
	"github.com/luminabrowser/lumina/host/internal/shared/types"
	"github.com/luminabrowser/lumina/host/internal/surface"
)

// Layout holds the fixed chrome geometry used by the bounds policy.
type Layout struct {
	TopChromeHeight int
	PanelWidth      int
	WindowWidth     int
	WindowHeight    int
}

// entry is the registry's mutable record for one tab.
type entry struct {
	id       string
	url      string
	title    string
	favicon  string
	external bool
	state    types.SurfaceState
	handle   surface.Handle
}

// Registry owns every browsing context and the active pointer.
//
// All state mutation happens under mu. Surface calls made while holding mu
// never reenter the registry synchronously: engines deliver events on
// their own goroutines.
type Registry struct {
	mu       sync.Mutex
	order    []string
	entries  map[string]*entry
	activeID string

	layout    Layout
	panelOpen bool

	engine   surface.Engine
	sink     notify.Sink
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	favicons *FaviconProbe

	homeURL   string
	searchURL string
}

// NewRegistry creates an empty tab registry.
func NewRegistry(engine surface.Engine, sink notify.Sink, logger *logging.Logger, layout Layout) *Registry {
	if sink == nil {
		sink = notify.Discard
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		entries:   make(map[string]*entry),
		layout:    layout,
		engine:    engine,
		sink:      sink,
		logger:    logger.Named("tabs"),
		homeURL:   InternalScheme + "home",
		searchURL: InternalScheme + "search",
	}
}

// WithMetrics adds metrics tracking to the registry.
func (r *Registry) WithMetrics(m *monitoring.Metrics) *Registry {
	r.metrics = m
	return r
}

// WithFaviconProbe enables the best-effort favicon fallback probe.
func (r *Registry) WithFaviconProbe(p *FaviconProbe) *Registry {
	r.favicons = p
	return r
}

// WithHomeURLs overrides the internal home and search page URLs.
func (r *Registry) WithHomeURLs(home, search string) *Registry {
	if home != "" {
		r.homeURL = home
	}
	if search != "" {
		r.searchURL = search
	}
	return r
}

// Create adds a browsing context. A non-empty requestedID acts as an
// idempotency key: repeating it returns the existing tab instead of
// creating a second entry. External URLs get their surface eagerly,
// with exactly one navigation issued.
func (r *Registry) Create(ctx context.Context, requestedID, rawURL string) (*types.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if requestedID != "" {
		if existing, ok := r.entries[requestedID]; ok {
			return r.snapshotLocked(existing), nil
		}
	}

	tabID := requestedID
	if tabID == "" {
		tabID = id.NewTabID().String()
	}

	normalized, external := Normalize(rawURL, r.homeURL)
	e := &entry{
		id:       tabID,
		url:      normalized,
		title:    defaultTitle(normalized, external),
		external: external,
		state:    types.SurfaceUncommitted,
	}
	r.entries[tabID] = e
	r.order = append(r.order, tabID)

	if external {
		if err := r.ensureSurfaceLocked(ctx, e); err != nil {
			r.logger.Warn("surface creation failed", zap.String("tab", tabID), zap.Error(err))
		} else if err := e.handle.Navigate(ctx, normalized); err != nil {
			r.logger.Warn("initial navigation failed", zap.String("tab", tabID), zap.Error(err))
		}
	}

	if r.activeID == "" {
		r.activateLocked(ctx, tabID)
	}

	if r.metrics != nil {
		r.metrics.TabsCreated.Inc()
		r.metrics.TabsOpen.Set(float64(len(r.order)))
	}
	r.notifyTabsLocked()
	r.logger.Info("tab created",
		zap.String("tab", tabID),
		zap.String("url", normalized),
		zap.Bool("external", external),
	)
	return r.snapshotLocked(e), nil
}

// Switch makes id the active tab. Returns false for unknown ids.
func (r *Registry) Switch(ctx context.Context, tabID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[tabID]; !ok {
		return false
	}
	r.activateLocked(ctx, tabID)
	r.notifyTabsLocked()
	return true
}

// Close destroys a tab and its surface. Surface teardown failures are
// swallowed. Returns false for unknown ids.
func (r *Registry) Close(ctx context.Context, tabID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[tabID]
	if !ok {
		return false
	}

	pos := r.indexLocked(tabID)
	wasActive := r.activeID == tabID

	if e.handle != nil {
		if e.handle.Attached() {
			_ = e.handle.Detach()
		}
		if err := e.handle.Destroy(); err != nil {
			r.logger.Debug("surface destroy failed", zap.String("tab", tabID), zap.Error(err))
		}
	}

	delete(r.entries, tabID)
	r.order = append(r.order[:pos], r.order[pos+1:]...)

	if wasActive {
		r.activeID = ""
		if next := r.successorLocked(pos); next != "" {
			r.activateLocked(ctx, next)
		} else {
			r.sink.Notify(notify.TopicExternalMode, false)
		}
	}

	if r.metrics != nil {
		r.metrics.TabsOpen.Set(float64(len(r.order)))
	}
	r.notifyTabsLocked()
	r.logger.Info("tab closed", zap.String("tab", tabID))
	return true
}

// NavigateActive points the active tab at a new URL, creating a tab when
// none is active.
func (r *Registry) NavigateActive(ctx context.Context, rawURL string) types.NavigateResult {
	r.mu.Lock()

	if r.activeID == "" {
		r.mu.Unlock()
		tab, err := r.Create(ctx, "", rawURL)
		if err != nil {
			return types.NavigateResult{}
		}
		return types.NavigateResult{Success: true, IsExternal: tab.IsExternal, URL: tab.URL}
	}
	defer r.mu.Unlock()

	e := r.entries[r.activeID]
	normalized, external := Normalize(rawURL, r.homeURL)
	e.url = normalized
	e.external = external
	e.title = defaultTitle(normalized, external)
	e.favicon = ""

	if external {
		if err := r.ensureSurfaceLocked(ctx, e); err != nil {
			r.logger.Warn("surface creation failed", zap.String("tab", e.id), zap.Error(err))
			return types.NavigateResult{Success: false, IsExternal: true, URL: normalized}
		}
		_ = e.handle.SetBounds(r.contentBoundsLocked())
		if !e.handle.Attached() {
			_ = e.handle.Attach()
		}
		if err := e.handle.Navigate(ctx, normalized); err != nil {
			r.logger.Warn("navigation failed", zap.String("tab", e.id), zap.Error(err))
		}
		r.sink.Notify(notify.TopicExternalMode, true)
	} else {
		// Internal pages are rendered by the UI itself; the surface, if
		// one exists, is left untouched.
		r.sink.Notify(notify.TopicExternalMode, false)
		r.sink.Notify(notify.TopicURLChanged, normalized)
	}

	r.notifyTabsLocked()
	return types.NavigateResult{Success: true, IsExternal: external, URL: normalized}
}

// Search navigates the active tab to the internal search page.
func (r *Registry) Search(ctx context.Context, query string) types.NavigateResult {
	return r.NavigateActive(ctx, SearchURL(r.searchURL, query))
}

// GoBack steps the active external surface back in history.
func (r *Registry) GoBack(ctx context.Context) bool {
	return r.historyAction(ctx, func(h surface.Handle) bool {
		if !h.CanGoBack() {
			return false
		}
		return h.GoBack(ctx) == nil
	})
}

// GoForward steps the active external surface forward in history.
func (r *Registry) GoForward(ctx context.Context) bool {
	return r.historyAction(ctx, func(h surface.Handle) bool {
		if !h.CanGoForward() {
			return false
		}
		return h.GoForward(ctx) == nil
	})
}

// Reload reloads the active external surface.
func (r *Registry) Reload(ctx context.Context) bool {
	return r.historyAction(ctx, func(h surface.Handle) bool {
		return h.Reload(ctx) == nil
	})
}

// CanGoBack reports whether the active external surface has back history.
func (r *Registry) CanGoBack() bool {
	h := r.activeHandle()
	return h != nil && h.CanGoBack()
}

// CanGoForward reports whether the active external surface has forward
// history.
func (r *Registry) CanGoForward() bool {
	h := r.activeHandle()
	return h != nil && h.CanGoForward()
}

// ActiveURL returns the active tab's URL, or "" when none is active.
func (r *Registry) ActiveURL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeID == "" {
		return ""
	}
	return r.entries[r.activeID].url
}

// List returns snapshots of every tab in insertion order.
func (r *Registry) List() []types.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.Tab, 0, len(r.order))
	for _, tabID := range r.order {
		out = append(out, *r.snapshotLocked(r.entries[tabID]))
	}
	return out
}

// Get returns a snapshot of one tab.
func (r *Registry) Get(tabID string) (*types.Tab, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[tabID]
	if !ok {
		return nil, false
	}
	return r.snapshotLocked(e), true
}

// SetPanelOpen records the UI side panel state and reapplies bounds.
func (r *Registry) SetPanelOpen(open bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panelOpen = open
	r.applyBoundsLocked()
}

// Resize records the window content area and reapplies bounds.
func (r *Registry) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layout.WindowWidth = width
	r.layout.WindowHeight = height
	r.applyBoundsLocked()
}

// Shutdown destroys every surface. Used on host exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tabID := range r.order {
		if h := r.entries[tabID].handle; h != nil {
			_ = h.Destroy()
		}
	}
}

// activateLocked implements the attach/signal steps shared by Switch,
// Close, and first-tab activation.
func (r *Registry) activateLocked(ctx context.Context, tabID string) {
	if r.activeID != "" && r.activeID != tabID {
		if prev, ok := r.entries[r.activeID]; ok && prev.handle != nil && prev.handle.Attached() {
			_ = prev.handle.Detach()
		}
	}
	r.activeID = tabID

	e := r.entries[tabID]
	if e.external {
		if err := r.ensureSurfaceLocked(ctx, e); err != nil {
			r.logger.Warn("surface creation failed", zap.String("tab", tabID), zap.Error(err))
			return
		}
		_ = e.handle.SetBounds(r.contentBoundsLocked())
		if !e.handle.Attached() {
			_ = e.handle.Attach()
		}
		r.sink.Notify(notify.TopicExternalMode, true)
	} else {
		r.sink.Notify(notify.TopicExternalMode, false)
		r.sink.Notify(notify.TopicURLChanged, e.url)
	}
}

// ensureSurfaceLocked lazily creates a tab's surface. The surface's event
// stream is bound to the tab for its whole life.
func (r *Registry) ensureSurfaceLocked(ctx context.Context, e *entry) error {
	if e.state == types.SurfaceSurfaced && e.handle != nil {
		return nil
	}

	tabID := e.id
	handle, err := r.engine.CreateSurface(ctx, func(ev surface.Event) {
		r.onSurfaceEvent(tabID, ev)
	})
	if err != nil {
		return err
	}
	e.handle = handle
	e.state = types.SurfaceSurfaced
	return nil
}

// successorLocked derives the next active tab after removing the entry
// that was at pos: next in sequence order, else previous, else none.
func (r *Registry) successorLocked(pos int) string {
	if len(r.order) == 0 {
		return ""
	}
	if pos < len(r.order) {
		return r.order[pos]
	}
	return r.order[len(r.order)-1]
}

func (r *Registry) indexLocked(tabID string) int {
	for i, candidate := range r.order {
		if candidate == tabID {
			return i
		}
	}
	return -1
}

func (r *Registry) historyAction(ctx context.Context, action func(surface.Handle) bool) bool {
	h := r.activeHandle()
	if h == nil {
		return false
	}
	return action(h)
}

// activeHandle returns the active tab's live surface, or nil when the
// active tab is internal, unsurfaced, or absent.
func (r *Registry) activeHandle() surface.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeID == "" {
		return nil
	}
	e := r.entries[r.activeID]
	if !e.external || e.handle == nil {
		return nil
	}
	return e.handle
}

func (r *Registry) applyBoundsLocked() {
	if r.activeID == "" {
		return
	}
	e := r.entries[r.activeID]
	if e.handle != nil && e.handle.Attached() {
		_ = e.handle.SetBounds(r.contentBoundsLocked())
	}
}

// contentBoundsLocked computes the rectangle below the top chrome, minus
// the side panel when open.
func (r *Registry) contentBoundsLocked() surface.Bounds {
	width := r.layout.WindowWidth
	if r.panelOpen {
		width -= r.layout.PanelWidth
	}
	if width < 0 {
		width = 0
	}
	height := r.layout.WindowHeight - r.layout.TopChromeHeight
	if height < 0 {
		height = 0
	}
	return surface.Bounds{
		X:      0,
		Y:      r.layout.TopChromeHeight,
		Width:  width,
		Height: height,
	}
}

func (r *Registry) snapshotLocked(e *entry) *types.Tab {
	return &types.Tab{
		ID:         e.id,
		URL:        e.url,
		Title:      e.title,
		Favicon:    e.favicon,
		IsExternal: e.external,
		IsActive:   e.id == r.activeID,
		Surface:    e.state,
	}
}

func (r *Registry) notifyTabsLocked() {
	out := make([]types.Tab, 0, len(r.order))
	for _, tabID := range r.order {
		out = append(out, *r.snapshotLocked(r.entries[tabID]))
	}
	r.sink.Notify(notify.TopicTabsUpdated, out)
}
