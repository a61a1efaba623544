// Package browsertest provides scripted in-memory browsers for tests of code
// that drives pages through the interfaces package.
package browsertest

import (
	"context"
	"errors"
	"sync"

	"github.com/khawaidev/fapi/internal/interfaces"
)

// ErrClosed is returned by fake pages and instances used after Close
var ErrClosed = errors.New("fake browser closed")

// FakePage records interactions and replays scripted answer text.
// Each InnerText call returns the next entry of Texts; the last entry repeats.
type FakePage struct {
	NavigateErr error
	FillErr     error
	ClickErr    error
	// WaitErrs maps a selector to the error WaitVisible returns for it
	WaitErrs map[string]error
	// NavigateFunc replaces the default Navigate behaviour when set
	NavigateFunc func(ctx context.Context, url string) error

	Texts    []string
	TextErrs []error // Optional, aligned with Texts

	mu        sync.Mutex
	reads     int
	navigated []string
	filled    map[string]string
	clicked   []string
	closes    int
}

func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if p.NavigateFunc != nil {
		if err := p.NavigateFunc(ctx, url); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closes > 0 {
		return ErrClosed
	}
	p.navigated = append(p.navigated, url)
	return p.NavigateErr
}

func (p *FakePage) WaitVisible(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.WaitErrs[selector]
}

func (p *FakePage) Fill(ctx context.Context, selector, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.FillErr != nil {
		return p.FillErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.filled == nil {
		p.filled = make(map[string]string)
	}
	p.filled[selector] = text
	return nil
}

func (p *FakePage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ClickErr != nil {
		return p.ClickErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, selector)
	return nil
}

func (p *FakePage) InnerText(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.Texts) == 0 {
		p.reads++
		return "", nil
	}
	idx := p.reads
	if idx >= len(p.Texts) {
		idx = len(p.Texts) - 1
	}
	p.reads++
	if idx < len(p.TextErrs) && p.TextErrs[idx] != nil {
		return "", p.TextErrs[idx]
	}
	return p.Texts[idx], nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

// Navigated returns the URLs passed to Navigate
func (p *FakePage) Navigated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigated...)
}

// Filled returns the text filled into selector
func (p *FakePage) Filled(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filled[selector]
}

// Clicked returns the clicked selectors in order
func (p *FakePage) Clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicked...)
}

// Reads returns how many times InnerText was called
func (p *FakePage) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// Closes returns how many times Close was called
func (p *FakePage) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// FakeInstance hands out FakePages
type FakeInstance struct {
	NewPageErr error
	// PageFactory builds each new page; defaults to an empty FakePage
	PageFactory func() *FakePage

	mu     sync.Mutex
	dead   bool
	pages  []*FakePage
	closes int
}

func (i *FakeInstance) NewPage(ctx context.Context) (interfaces.BrowserPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dead || i.closes > 0 {
		return nil, ErrClosed
	}
	if i.NewPageErr != nil {
		return nil, i.NewPageErr
	}
	page := &FakePage{}
	if i.PageFactory != nil {
		page = i.PageFactory()
	}
	i.pages = append(i.pages, page)
	return page, nil
}

func (i *FakeInstance) Alive() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return !i.dead && i.closes == 0
}

func (i *FakeInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closes++
	return nil
}

// Crash makes the instance report itself as exited
func (i *FakeInstance) Crash() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dead = true
}

// Pages returns every page created so far
func (i *FakeInstance) Pages() []*FakePage {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]*FakePage(nil), i.pages...)
}

// Closes returns how many times Close was called
func (i *FakeInstance) Closes() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closes
}

// FakeLauncher launches FakeInstances
type FakeLauncher struct {
	LaunchErr error
	// InstanceFactory builds each launched instance; defaults to an empty FakeInstance
	InstanceFactory func() *FakeInstance

	mu        sync.Mutex
	instances []*FakeInstance
}

func (l *FakeLauncher) Launch(ctx context.Context) (interfaces.BrowserInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	instance := &FakeInstance{}
	if l.InstanceFactory != nil {
		instance = l.InstanceFactory()
	}
	l.instances = append(l.instances, instance)
	return instance, nil
}

// Instances returns every instance launched so far
func (l *FakeLauncher) Instances() []*FakeInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*FakeInstance(nil), l.instances...)
}

// Launches returns how many instances were launched
func (l *FakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.instances)
}
