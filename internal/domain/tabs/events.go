package tabs

import (
	"go.uber.org/zap"

	"github.com/luminabrowser/lumina/host/internal/shared/notify"
	"github.com/luminabrowser/lumina/host/internal/shared/types"
	"github.com/luminabrowser/lumina/host/internal/surface"
)

// ContextMenuItem is one entry of the menu offered for a surface
// right-click. The askAssistant item carries the selection so the UI can
// dispatch it without a round trip.
type ContextMenuItem struct {
	Action    string `json:"action"`
	Label     string `json:"label"`
	Selection string `json:"selection,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ContextMenuPayload is pushed for every surface context-menu request.
type ContextMenuPayload struct {
	TabID     string            `json:"tabId"`
	URL       string            `json:"url"`
	Selection string            `json:"selection,omitempty"`
	Items     []ContextMenuItem `json:"items"`
}

// onSurfaceEvent routes one surface event to the owning tab's record and
// the UI. Events arrive on engine goroutines; all state mutation happens
// under the registry lock.
func (r *Registry) onSurfaceEvent(tabID string, ev surface.Event) {
	switch ev.Kind {
	case surface.EventNavigationFinished:
		r.handleNavigationFinished(tabID, ev)
	case surface.EventLoadFailed:
		r.handleLoadFailed(tabID, ev)
	case surface.EventTitleChanged:
		r.handleTitleChanged(tabID, ev)
	case surface.EventFaviconChanged:
		r.handleFaviconChanged(tabID, ev)
	case surface.EventContextMenu:
		r.handleContextMenu(tabID, ev)
	}
}

func (r *Registry) handleNavigationFinished(tabID string, ev surface.Event) {
	r.mu.Lock()
	e, ok := r.entries[tabID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if ev.URL != "" {
		e.url = ev.URL
	}
	active := r.activeID == tabID
	url := e.url
	needsFavicon := e.favicon == "" && r.favicons != nil
	r.mu.Unlock()

	if active {
		r.sink.Notify(notify.TopicURLChanged, url)
		r.sink.Notify(notify.TopicNavigationComplete, url)
	}

	if needsFavicon {
		go r.probeFavicon(tabID, url)
	}
}

func (r *Registry) handleLoadFailed(tabID string, ev surface.Event) {
	r.mu.Lock()
	e, ok := r.entries[tabID]
	url := ev.URL
	if ok && url == "" {
		url = e.url
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	r.logger.Warn("navigation failed",
		zap.String("tab", tabID),
		zap.String("url", url),
		zap.Int("code", ev.ErrorCode),
		zap.String("description", ev.ErrorDescription),
	)
	r.sink.Notify(notify.TopicNavigationError, types.NavigationError{
		ErrorCode:        ev.ErrorCode,
		ErrorDescription: ev.ErrorDescription,
		URL:              url,
	})
}

func (r *Registry) handleTitleChanged(tabID string, ev surface.Event) {
	r.mu.Lock()
	e, ok := r.entries[tabID]
	if ok && ev.Title != "" {
		e.title = ev.Title
	}
	if ok {
		r.notifyTabsLocked()
	}
	r.mu.Unlock()
}

func (r *Registry) handleFaviconChanged(tabID string, ev surface.Event) {
	r.mu.Lock()
	e, ok := r.entries[tabID]
	if ok && ev.FaviconURL != "" {
		e.favicon = ev.FaviconURL
	}
	if ok {
		r.notifyTabsLocked()
	}
	r.mu.Unlock()
}

func (r *Registry) handleContextMenu(tabID string, ev surface.Event) {
	r.mu.Lock()
	e, ok := r.entries[tabID]
	if !ok {
		r.mu.Unlock()
		return
	}
	url := e.url
	r.mu.Unlock()

	items := []ContextMenuItem{
		{Action: "copy", Label: "Copy"},
		{Action: "paste", Label: "Paste"},
		{Action: "back", Label: "Back"},
		{Action: "forward", Label: "Forward"},
		{Action: "reload", Label: "Reload"},
	}
	if ev.LinkURL != "" {
		items = append(items, ContextMenuItem{
			Action: "openLink",
			Label:  "Open Link in New Tab",
			URL:    ev.LinkURL,
		})
	}
	if ev.SelectionText != "" {
		items = append(items, ContextMenuItem{
			Action:    "askAssistant",
			Label:     "Ask Assistant About This",
			Selection: ev.SelectionText,
			URL:       url,
		})
	}

	r.sink.Notify(notify.TopicContextMenu, ContextMenuPayload{
		TabID:     tabID,
		URL:       url,
		Selection: ev.SelectionText,
		Items:     items,
	})
}

// probeFavicon fills a missing favicon from the origin's well-known
// location. Best-effort: failures leave the field empty.
func (r *Registry) probeFavicon(tabID, pageURL string) {
	icon, err := r.favicons.Resolve(pageURL)
	if err != nil || icon == "" {
		return
	}

	r.mu.Lock()
	e, ok := r.entries[tabID]
	if ok && e.favicon == "" {
		e.favicon = icon
		r.notifyTabsLocked()
	}
	r.mu.Unlock()
}
