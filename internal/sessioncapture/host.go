package sessioncapture

import "context"

// EventKind identifies the source of a session event.
type EventKind int

const (
	// CookieChanged is emitted when a cookie is set, updated or removed.
	CookieChanged EventKind = iota + 1
	// Navigated is emitted when the main frame commits a navigation.
	Navigated
	// Closed is emitted once when the window goes away, whoever closed it.
	Closed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case CookieChanged:
		return "cookie_changed"
	case Navigated:
		return "navigated"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Cookie is a candidate session cookie observed in the browser.
type Cookie struct {
	Name    string
	Domain  string
	Value   string
	Removed bool
}

// Event is a single notification from a browser session.
type Event struct {
	Kind EventKind
	// Cookie is set for CookieChanged events.
	Cookie Cookie
	// URL is set for Navigated events.
	URL string
}

// Host creates isolated browser sessions.
type Host interface {
	// CreateSession starts a session whose cookie store is private to namespace.
	CreateSession(ctx context.Context, namespace string) (Session, error)
}

// Session is one browser window with its own cookie store.
type Session interface {
	// LoadURL shows the window and navigates it to url.
	LoadURL(ctx context.Context, url string) error
	// Events delivers cookie, navigation and close events in order. The
	// channel is closed once the session is gone; senders never block on a
	// closed session.
	Events() <-chan Event
	// Cookies lists the cookies whose domain matches domain.
	Cookies(ctx context.Context, domain string) ([]Cookie, error)
	// Close closes the window. It is safe to call more than once.
	Close() error
}
