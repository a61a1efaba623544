package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/interfaces"
	"github.com/khawaidev/fapi/internal/metrics"
	"github.com/khawaidev/fapi/internal/models"
	"github.com/khawaidev/fapi/internal/services/browser"
)

var (
	// ErrEmptyQuestion is returned before any browser work for blank questions
	ErrEmptyQuestion = errors.New("question is required")
	// ErrSinkClosed wraps a failure to deliver an event to the caller
	ErrSinkClosed = errors.New("event sink closed")
)

// Service answers questions by driving the upstream UI and streaming what it renders
type Service struct {
	provider  *browser.SessionProvider
	driver    *Driver
	scraper   *Scraper
	fragments *FragmentBuilder
	logger    arbor.ILogger
}

func NewService(provider *browser.SessionProvider, driver *Driver, scraper *Scraper, fragments *FragmentBuilder, logger arbor.ILogger) *Service {
	return &Service{
		provider:  provider,
		driver:    driver,
		scraper:   scraper,
		fragments: fragments,
		logger:    logger,
	}
}

// Stream answers question, sending events to sink in order. A blank question
// returns ErrEmptyQuestion without sending anything. Otherwise the last event is
// always done, preceded by a single error event when the pipeline failed.
func (s *Service) Stream(ctx context.Context, question string, sink interfaces.EventSink) (err error) {
	if strings.TrimSpace(question) == "" {
		return ErrEmptyQuestion
	}

	requestID := uuid.New().String()
	logger := s.logger.WithCorrelationId(requestID)
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic while answering question")
			err = fmt.Errorf("internal error: %v", r)
		}

		if err != nil && !errors.Is(err, ErrSinkClosed) {
			if sendErr := sink.Send(models.NewErrorEvent(err.Error())); sendErr != nil {
				logger.Debug().Err(sendErr).Msg("Failed to deliver error event")
			}
		}
		if sendErr := sink.Send(models.NewDoneEvent()); sendErr != nil {
			logger.Debug().Err(sendErr).Msg("Failed to deliver done event")
		}

		switch {
		case err == nil:
			logger.Info().Dur("elapsed", time.Since(startTime)).Msg("Question answered")
		case ctx.Err() != nil || errors.Is(err, ErrSinkClosed):
			logger.Info().Err(err).Dur("elapsed", time.Since(startTime)).Msg("Question abandoned by caller")
		default:
			logger.Warn().Err(err).Dur("elapsed", time.Since(startTime)).Msg("Question failed")
		}
	}()

	return s.answer(ctx, logger, question, sink)
}

func (s *Service) answer(ctx context.Context, logger arbor.ILogger, question string, sink interfaces.EventSink) error {
	send := func(event models.Event) error {
		if err := sink.Send(event); err != nil {
			return fmt.Errorf("%w: %v", ErrSinkClosed, err)
		}
		return nil
	}

	session, err := s.provider.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire browser session: %w", err)
	}
	defer func() {
		if err := session.Release(); err != nil {
			logger.Warn().Err(err).Str("session_id", session.ID).Msg("Failed to release browser session")
		}
	}()

	logger.Debug().
		Str("session_id", session.ID).
		Str("ownership", session.Ownership.String()).
		Msg("Answering question")

	page, err := session.Page()
	if err != nil {
		return err
	}

	answerSelector, err := s.driver.Submit(ctx, page, question)
	if err != nil {
		return err
	}

	text, err := s.scraper.Run(ctx, page, answerSelector, func(delta string) error {
		return send(models.NewReasoningEvent(delta))
	})
	if err != nil {
		return err
	}

	structure, ok := ExtractStructure(text)
	if !ok {
		return send(models.NewAnswerEvent(models.NoResultAnswer))
	}

	if err := send(models.NewAnswerEvent(structure)); err != nil {
		return err
	}

	fragment, err := s.fragments.Build(structure)
	if err != nil {
		return err
	}
	return send(models.NewStructureEvent(structure, fragment))
}

// NewDefault wires a service from configuration against the fixed upstream target
func NewDefault(config *common.Config, provider *browser.SessionProvider, logger arbor.ILogger, m *metrics.Metrics) *Service {
	return NewService(
		provider,
		NewDriver(TargetURL, DefaultSelectors(), config.Driver, logger),
		NewScraper(config.Scrape, logger, m),
		NewFragmentBuilder(config.Structure),
		logger,
	)
}
