package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/services/browser/browsertest"
)

func newTestScraper(maxDuration string) *Scraper {
	return NewScraper(common.ScrapeConfig{
		PollInterval: "1ms",
		ReadTimeout:  "50ms",
		MaxDuration:  maxDuration,
	}, arbor.NewLogger(), nil)
}

func TestScrapeState_Observe(t *testing.T) {
	tests := []struct {
		name   string
		reads  []string
		deltas []string
	}{
		{
			name:   "append only",
			reads:  []string{"Th", "Think", "Thinking..."},
			deltas: []string{"Th", "ink", "ing..."},
		},
		{
			name:   "repeated reads",
			reads:  []string{"abc", "abc", "abcd"},
			deltas: []string{"abc", "", "d"},
		},
		{
			name:   "shrinking read is ignored",
			reads:  []string{"abcdef", "abc", "abcdefgh"},
			deltas: []string{"abcdef", "", "gh"},
		},
		{
			name:   "failed read counts as empty",
			reads:  []string{"abc", "", "abcd"},
			deltas: []string{"abc", "", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &ScrapeState{}
			var joined strings.Builder
			for i, read := range tt.reads {
				delta := state.Observe(read)
				assert.Equal(t, tt.deltas[i], delta, "read %d", i)
				joined.WriteString(delta)
			}
			assert.Equal(t, joined.String(), state.Text())
		})
	}
}

func TestScrapeState_Complete(t *testing.T) {
	state := &ScrapeState{}
	state.Observe("The product is **CC")
	assert.False(t, state.Complete())

	state.Observe("The product is **CC(=O)O** indeed")
	assert.True(t, state.Complete())
}

func TestScraper_Run(t *testing.T) {
	page := &browsertest.FakePage{
		Texts: []string{
			"",
			"Considering",
			"",
			"Considering the acid",
			"Considering",
			"Considering the acid... **CC(=O)O**",
		},
		TextErrs: []error{nil, nil, errors.New("node detached")},
	}

	var deltas []string
	text, err := newTestScraper("5s").Run(context.Background(), page, "//div", func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Considering", " the acid", "... **CC(=O)O**"}, deltas)
	assert.Equal(t, strings.Join(deltas, ""), text)
	for _, delta := range deltas {
		assert.NotEmpty(t, delta)
	}
	assert.Equal(t, 6, page.Reads(), "polling stops once the marker appears")
}

func TestScraper_Run_BudgetExhausted(t *testing.T) {
	page := &browsertest.FakePage{Texts: []string{"still thinking"}}

	emitted := 0
	start := time.Now()
	text, err := newTestScraper("30ms").Run(context.Background(), page, "//div", func(string) error {
		emitted++
		return nil
	})

	assert.ErrorIs(t, err, ErrScrapeTimeout)
	assert.Equal(t, "still thinking", text)
	assert.Equal(t, 1, emitted)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestScraper_Run_EmitErrorStops(t *testing.T) {
	page := &browsertest.FakePage{Texts: []string{"a", "ab", "ab **C**"}}
	sinkErr := errors.New("client gone")

	_, err := newTestScraper("5s").Run(context.Background(), page, "//div", func(string) error {
		return sinkErr
	})

	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 1, page.Reads())
}

func TestScraper_Run_Cancelled(t *testing.T) {
	page := &browsertest.FakePage{Texts: []string{"thinking"}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestScraper("0").Run(ctx, page, "//div", func(string) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
