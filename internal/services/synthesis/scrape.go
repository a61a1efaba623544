package synthesis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/interfaces"
	"github.com/khawaidev/fapi/internal/metrics"
)

// completionPattern marks the final answer inside the streamed reasoning
var completionPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)

// ErrScrapeTimeout is returned when the answer never completes within the scrape budget
var ErrScrapeTimeout = errors.New("answer did not complete in time")

// ScrapeState turns successive reads of an append-only text into deltas
type ScrapeState struct {
	accumulated strings.Builder
	previous    string
}

// Observe records text and returns what was appended since the previous
// observation. Text that did not grow yields an empty delta and is not recorded.
func (s *ScrapeState) Observe(text string) string {
	if len(text) <= len(s.previous) {
		return ""
	}
	delta := text[len(s.previous):]
	s.accumulated.WriteString(delta)
	s.previous = text
	return delta
}

// Text returns the concatenation of every delta so far
func (s *ScrapeState) Text() string {
	return s.accumulated.String()
}

// Complete reports whether the accumulated text contains the completion marker
func (s *ScrapeState) Complete() bool {
	return completionPattern.MatchString(s.accumulated.String())
}

// Scraper polls the answer region until the completion marker appears
type Scraper struct {
	pollInterval time.Duration
	readTimeout  time.Duration
	maxDuration  time.Duration // Zero means no budget
	logger       arbor.ILogger
	metrics      *metrics.Metrics
}

func NewScraper(config common.ScrapeConfig, logger arbor.ILogger, m *metrics.Metrics) *Scraper {
	return &Scraper{
		pollInterval: common.ParseDuration(config.PollInterval, 300*time.Millisecond),
		readTimeout:  common.ParseDuration(config.ReadTimeout, 5*time.Second),
		maxDuration:  common.ParseDuration(config.MaxDuration, 5*time.Minute),
		logger:       logger,
		metrics:      m,
	}
}

// Run polls selector on page, passing each non-empty delta to emit in order, and
// returns the accumulated text once it is complete. An emit error stops the loop.
func (s *Scraper) Run(ctx context.Context, page interfaces.BrowserPage, selector string, emit func(delta string) error) (string, error) {
	startTime := time.Now()
	state := &ScrapeState{}

	var budget <-chan time.Time
	if s.maxDuration > 0 {
		timer := time.NewTimer(s.maxDuration)
		defer timer.Stop()
		budget = timer.C
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		polls++
		if delta := state.Observe(s.read(ctx, page, selector)); delta != "" {
			s.metrics.ObserveDelta()
			if err := emit(delta); err != nil {
				return state.Text(), err
			}
		}

		if state.Complete() {
			elapsed := time.Since(startTime)
			s.metrics.ObserveScrape(elapsed)
			s.logger.Debug().
				Int("polls", polls).
				Int("length", len(state.Text())).
				Dur("elapsed", elapsed).
				Msg("Answer complete")
			return state.Text(), nil
		}

		select {
		case <-ctx.Done():
			return state.Text(), ctx.Err()
		case <-budget:
			s.metrics.ObserveScrape(time.Since(startTime))
			return state.Text(), fmt.Errorf("%w: no final answer after %s", ErrScrapeTimeout, s.maxDuration)
		case <-ticker.C:
		}
	}
}

// read returns the region text, or empty text when the read fails
func (s *Scraper) read(ctx context.Context, page interfaces.BrowserPage, selector string) string {
	readCtx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	text, err := page.InnerText(readCtx, selector)
	if err != nil {
		s.logger.Trace().Err(err).Msg("Answer region read failed")
		return ""
	}
	return text
}
