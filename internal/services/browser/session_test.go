package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khawaidev/fapi/internal/services/browser/browsertest"
)

func TestSession_ReleaseOwned(t *testing.T) {
	instance := &browsertest.FakeInstance{}
	page := &browsertest.FakePage{}
	released := 0

	session := newSession(page, OwnershipOwned, instance)
	session.onRelease = func() { released++ }

	require.NoError(t, session.Release())
	require.NoError(t, session.Release())

	assert.Equal(t, 1, page.Closes())
	assert.Equal(t, 1, instance.Closes())
	assert.Equal(t, 1, released)

	_, err := session.Page()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_ReleaseSharedKeepsBrowser(t *testing.T) {
	instance := &browsertest.FakeInstance{}
	page := &browsertest.FakePage{}

	// Shared sessions never carry the instance, even if one is passed
	session := newSession(page, OwnershipShared, instance)
	require.NoError(t, session.Release())

	assert.Equal(t, 1, page.Closes())
	assert.Equal(t, 0, instance.Closes())
}

type failingPage struct {
	browsertest.FakePage
}

func (p *failingPage) Close() error {
	p.FakePage.Close()
	return errors.New("tab already gone")
}

func TestSession_ReleaseClosesBrowserEvenIfPageFails(t *testing.T) {
	instance := &browsertest.FakeInstance{}
	page := &failingPage{}

	session := newSession(page, OwnershipOwned, instance)
	err := session.Release()

	assert.Error(t, err)
	assert.Equal(t, 1, instance.Closes())
}

func TestOwnership_String(t *testing.T) {
	assert.Equal(t, "shared", OwnershipShared.String())
	assert.Equal(t, "owned", OwnershipOwned.String())
	assert.Equal(t, "unknown", Ownership(9).String())
}
