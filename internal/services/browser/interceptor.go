package browser

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// mediaExtensions are blocked in addition to the configured list when media blocking is on
var mediaExtensions = []string{".mp4", ".webm", ".ogg", ".mp3", ".wav", ".m4a", ".mov", ".avi"}

// InterceptPolicy decides which outbound page requests are aborted
type InterceptPolicy struct {
	extensions []string
	domains    []string
}

// NewInterceptPolicy builds a policy from the configured asset extensions and tracking domains
func NewInterceptPolicy(extensions, domains []string, blockMedia bool) *InterceptPolicy {
	p := &InterceptPolicy{}
	for _, ext := range extensions {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			p.extensions = append(p.extensions, ext)
		}
	}
	if blockMedia {
		p.extensions = append(p.extensions, mediaExtensions...)
	}
	for _, domain := range domains {
		if domain = strings.ToLower(strings.TrimSpace(domain)); domain != "" {
			p.domains = append(p.domains, domain)
		}
	}
	return p
}

// Blocked reports whether a request to url should be aborted.
// Matching is substring based so query strings and CDN paths still match.
func (p *InterceptPolicy) Blocked(url string) bool {
	if p == nil {
		return false
	}
	lower := strings.ToLower(url)
	for _, ext := range p.extensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	for _, domain := range p.domains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// Install registers the policy on the tab behind tabCtx and returns the action
// that enables request interception. Every paused request is either failed
// or continued, so the page never stalls on an unanswered request.
func (p *InterceptPolicy) Install(tabCtx context.Context, logger arbor.ILogger) chromedp.Action {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}

		// Listener callbacks must not block the event loop
		go func() {
			c := chromedp.FromContext(tabCtx)
			if c == nil || c.Target == nil {
				return
			}
			execCtx := cdp.WithExecutor(tabCtx, c.Target)

			var err error
			if p.Blocked(paused.Request.URL) {
				err = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			} else {
				err = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
			}
			if err != nil && tabCtx.Err() == nil {
				logger.Trace().
					Err(err).
					Str("url", paused.Request.URL).
					Msg("Failed to resolve intercepted request")
			}
		}()
	})

	return fetch.Enable()
}
