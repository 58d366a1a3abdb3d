// Package surface defines the contract between the host and the external
// rendering engine. A Handle is one attachable browsing surface; an Engine
// mints handles. The tab registry drives surfaces exclusively through these
// interfaces, so the engine can be the CDP-backed implementation in
// production or a fake in tests.
package surface

import "context"

// Bounds is the rectangle a surface occupies inside the host window.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EventKind discriminates surface-originated events.
type EventKind string

const (
	EventNavigationFinished EventKind = "navigation_finished"
	EventLoadFailed         EventKind = "load_failed"
	EventTitleChanged       EventKind = "title_changed"
	EventFaviconChanged     EventKind = "favicon_changed"
	EventContextMenu        EventKind = "context_menu"
)

// Event is one asynchronous notification from a surface.
type Event struct {
	Kind             EventKind
	URL              string
	Title            string
	FaviconURL       string
	ErrorCode        int
	ErrorDescription string
	SelectionText    string
	LinkURL          string
}

// EventFunc receives surface events. Implementations must not block.
type EventFunc func(Event)

// Document is a serialized capture of a surface's current page.
type Document struct {
	URL            string
	Title          string
	HTML           string
	LocalStorage   map[string]string
	SessionStorage map[string]string
}

// Cookie is one cookie visible to a surface.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
}

// Handle is one owned rendering surface. Navigation and capture calls are
// suspension points; the registry issues them strictly in call order per
// surface.
type Handle interface {
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error
	Reload(ctx context.Context) error
	CanGoBack() bool
	CanGoForward() bool

	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	CaptureDocument(ctx context.Context) (*Document, error)
	Cookies(ctx context.Context, url string) ([]Cookie, error)
	CaptureScreenshot(ctx context.Context) ([]byte, error)

	SetBounds(bounds Bounds) error
	Attach() error
	Detach() error
	Attached() bool

	// Destroy releases the surface. Idempotent.
	Destroy() error
}

// Engine creates surfaces within the host window.
type Engine interface {
	CreateSurface(ctx context.Context, events EventFunc) (Handle, error)
	Close() error
}
