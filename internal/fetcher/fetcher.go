package fetcher

import (
	"context"
	"time"
)

// Page is the browsing capability the sync pipeline needs from a rendered
// page. The rod-backed implementation drives Chromium; tests substitute a
// scripted page.
type Page interface {
	// Navigate loads url and waits for the network to go idle within timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitFor blocks until an element matching selector exists or timeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Count returns the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)

	// ScrollViewport scrolls the window down by one viewport height.
	ScrollViewport(ctx context.Context) error

	// ClickMore clicks a "show more" or "load more" control if the page has
	// one, and reports whether it did.
	ClickMore(ctx context.Context) (bool, error)

	// HTML returns the current rendered DOM.
	HTML(ctx context.Context) (string, error)

	// Close releases the page and anything it owns.
	Close() error
}

// Launcher acquires a fresh browsing context.
type Launcher interface {
	Open(ctx context.Context) (Page, error)
}
