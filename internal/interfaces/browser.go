package interfaces

import (
	"context"

	"github.com/khawaidev/fapi/internal/models"
)

// BrowserPage is a single tab living in its own isolated browser context.
// Selectors are XPath or CSS expressions resolved with a DOM search.
type BrowserPage interface {
	// Navigate loads url and returns once DOMContentLoaded has fired
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// InnerText returns the rendered (visible) text of the first node matching selector
	InnerText(ctx context.Context, selector string) (string, error)
	// Close disposes the tab and its browser context, never the browser process
	Close() error
}

// BrowserInstance is a running browser process from which isolated pages are derived
type BrowserInstance interface {
	NewPage(ctx context.Context) (BrowserPage, error)
	// Alive reports whether the browser process is still usable
	Alive() bool
	Close() error
}

// BrowserLauncher starts browser processes
type BrowserLauncher interface {
	Launch(ctx context.Context) (BrowserInstance, error)
}

// EventSink receives the ordered events of a single question.
// Send is called from one goroutine at a time.
type EventSink interface {
	Send(event models.Event) error
}
