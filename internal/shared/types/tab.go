package types

// SurfaceState tracks lazy surface creation for a tab.
type SurfaceState string

const (
	// SurfaceUncommitted means no rendering surface has been created yet.
	SurfaceUncommitted SurfaceState = "uncommitted"
	// SurfaceSurfaced means the tab owns a live rendering surface.
	SurfaceSurfaced SurfaceState = "surfaced"
)

// Tab is an immutable snapshot of one browsing context.
type Tab struct {
	ID         string       `json:"id"`
	URL        string       `json:"url"`
	Title      string       `json:"title"`
	Favicon    string       `json:"favicon,omitempty"`
	IsExternal bool         `json:"isExternal"`
	IsActive   bool         `json:"isActive"`
	Surface    SurfaceState `json:"surfaceState"`
}

// TabContext is the captured state of a tab handed to the assistant.
// Every field except ID/URL/Title is best-effort: a capture sub-step that
// fails leaves its field empty rather than failing the whole call.
type TabContext struct {
	ID             string            `json:"id"`
	URL            string            `json:"url"`
	Title          string            `json:"title"`
	HTML           string            `json:"html,omitempty"`
	Text           string            `json:"text,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
	LocalStorage   map[string]string `json:"localStorage,omitempty"`
	SessionStorage map[string]string `json:"sessionStorage,omitempty"`
	Cookies        []CookieSnapshot  `json:"cookies,omitempty"`
	Screenshot     string            `json:"screenshot,omitempty"` // data URL
}

// CookieSnapshot is one cookie captured for a tab's URL.
type CookieSnapshot struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Secure   bool   `json:"secure"`
	HTTPOnly bool   `json:"httpOnly"`
	Site     string `json:"site,omitempty"` // registrable domain
}

// NavigateResult reports the outcome of a navigation request.
type NavigateResult struct {
	Success    bool   `json:"success"`
	IsExternal bool   `json:"isExternal"`
	URL        string `json:"url"`
}
