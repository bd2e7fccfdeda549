// Package browser drives a headless Chromium through go-rod on behalf of
// a single domain lookup.
package browser

import "context"

// Session is one browser process with a single tab, owned by one lookup.
// Every blocking call is bounded by the session's load timeout in addition
// to ctx.
type Session interface {
	// Load navigates to url and waits until a <body> element exists.
	Load(ctx context.Context, url string) error

	// CurrentURL returns the URL the tab ended up on.
	CurrentURL(ctx context.Context) (string, error)

	// Content returns the rendered HTML of the current document.
	Content(ctx context.Context) (string, error)

	// Anchors lists the <a> elements of the current document in DOM order.
	Anchors(ctx context.Context) ([]Anchor, error)

	// Close terminates the browser process. It is safe to call more than once.
	Close() error
}

// Anchor is a hyperlink element captured by Session.Anchors. It may go
// stale once the tab navigates elsewhere; Click then returns an error.
type Anchor interface {
	// Href is the resolved href property ("" when absent).
	Href() string

	// Click clicks the element and waits for the resulting document's <body>.
	Click(ctx context.Context) error
}

// Opener starts new sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}
