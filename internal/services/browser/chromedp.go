package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/interfaces"
)

// ErrBrowserClosed is returned when a page is requested from a browser that has exited
var ErrBrowserClosed = errors.New("browser instance is closed")

// ChromeLauncher launches headless Chrome processes through chromedp
type ChromeLauncher struct {
	config        common.BrowserConfig
	launchTimeout time.Duration
	policy        *InterceptPolicy
	logger        arbor.ILogger
}

// NewChromeLauncher creates a launcher; every page it produces has policy installed
func NewChromeLauncher(config common.BrowserConfig, policy *InterceptPolicy, logger arbor.ILogger) *ChromeLauncher {
	return &ChromeLauncher{
		config:        config,
		launchTimeout: common.ParseDuration(config.LaunchTimeout, 30*time.Second),
		policy:        policy,
		logger:        logger,
	}
}

// Launch starts a browser process and waits until it accepts commands
func (l *ChromeLauncher) Launch(ctx context.Context) (interfaces.BrowserInstance, error) {
	startTime := time.Now()

	// The browser outlives the launching request; its lifetime is owned by Close
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(l.config)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			l.logger.Debug().Msgf("chromedp: "+format, args...)
		}),
	)

	launchCtx, cancel := context.WithTimeout(ctx, l.launchTimeout)
	defer cancel()
	stop := context.AfterFunc(launchCtx, browserCancel)

	// Run without actions starts the browser process
	err := chromedp.Run(browserCtx)
	if !stop() {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser launch aborted: %w", launchCtx.Err())
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	l.logger.Debug().
		Bool("headless", l.config.Headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser instance launched")

	return &chromeInstance{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		policy:        l.policy,
		logger:        l.logger,
	}, nil
}

type chromeInstance struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	policy        *InterceptPolicy
	logger        arbor.ILogger
	closeOnce     sync.Once
}

// NewPage derives a tab in a fresh browser context with CSP bypass and request interception
func (i *chromeInstance) NewPage(ctx context.Context) (interfaces.BrowserPage, error) {
	if !i.Alive() {
		return nil, ErrBrowserClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(i.browserCtx, chromedp.WithNewBrowserContext())
	stop := context.AfterFunc(ctx, tabCancel)

	err := chromedp.Run(tabCtx)
	if err == nil {
		err = chromedp.Run(tabCtx,
			page.SetBypassCSP(true),
			i.policy.Install(tabCtx, i.logger),
		)
	}
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &chromePage{ctx: tabCtx, cancel: tabCancel}, nil
}

func (i *chromeInstance) Alive() bool {
	return i.browserCtx.Err() == nil
}

// Close terminates the browser process; safe to call more than once
func (i *chromeInstance) Close() error {
	i.closeOnce.Do(func() {
		i.browserCancel()
		i.allocCancel()
		i.logger.Debug().Msg("Browser instance closed")
	})
	return nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// run executes actions on the tab, bounded by the deadline and cancellation of ctx
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, navigateDOMContentLoaded(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.BySearch))
}

// Fill replaces the control's value by inserting text the way an IME would,
// which fires the input events framework-controlled fields listen for
func (p *chromePage) Fill(ctx context.Context, selector, text string) error {
	return p.run(ctx,
		chromedp.WaitVisible(selector, chromedp.BySearch),
		chromedp.Clear(selector, chromedp.BySearch),
		chromedp.Focus(selector, chromedp.BySearch),
		input.InsertText(text),
	)
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.BySearch, chromedp.NodeVisible))
}

func (p *chromePage) InnerText(ctx context.Context, selector string) (string, error) {
	var text string
	if err := p.run(ctx, chromedp.Text(selector, &text, chromedp.BySearch, chromedp.NodeVisible)); err != nil {
		return "", err
	}
	return text, nil
}

// Close disposes the tab together with its browser context
func (p *chromePage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}

// navigateDOMContentLoaded navigates and returns at DOMContentLoaded instead of
// waiting for the load event like chromedp.Navigate does
func navigateDOMContentLoaded(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		listenCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		loaded := make(chan struct{}, 1)
		chromedp.ListenTarget(listenCtx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				select {
				case loaded <- struct{}{}:
				default:
				}
			}
		})

		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigation to %s failed: %s", url, res.ErrorText)
		}

		select {
		case <-loaded:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
