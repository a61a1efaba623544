package browser

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/khawaidev/fapi/internal/interfaces"
)

// ErrSessionClosed is returned when a released session is used again
var ErrSessionClosed = errors.New("browser session already released")

// Ownership records who is responsible for the browser process behind a session
type Ownership int

const (
	// OwnershipShared sessions come from the warm browser; release closes only the page
	OwnershipShared Ownership = iota
	// OwnershipOwned sessions launched their own browser; release closes the process too
	OwnershipOwned
)

func (o Ownership) String() string {
	switch o {
	case OwnershipShared:
		return "shared"
	case OwnershipOwned:
		return "owned"
	default:
		return "unknown"
	}
}

// Session is one isolated page handed to a single request
type Session struct {
	ID        string
	Ownership Ownership

	page     interfaces.BrowserPage
	instance interfaces.BrowserInstance // Set only for owned sessions

	mu        sync.Mutex
	released  bool
	onRelease func()
}

func newSession(page interfaces.BrowserPage, ownership Ownership, instance interfaces.BrowserInstance) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Ownership: ownership,
		page:      page,
		instance:  instance,
	}
}

// Page returns the session's page, or ErrSessionClosed after Release
func (s *Session) Page() (interfaces.BrowserPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrSessionClosed
	}
	return s.page, nil
}

// Release closes the page and, for owned sessions, the browser process.
// Only the first call has any effect.
func (s *Session) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	onRelease := s.onRelease
	s.mu.Unlock()

	var errs []error
	if err := s.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.Ownership == OwnershipOwned && s.instance != nil {
		if err := s.instance.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if onRelease != nil {
		onRelease()
	}
	return errors.Join(errs...)
}
