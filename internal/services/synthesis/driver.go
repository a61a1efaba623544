package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/khawaidev/fapi/internal/common"
	"github.com/khawaidev/fapi/internal/interfaces"
)

// TargetURL is the root of the upstream reasoning UI
const TargetURL = "https://chemistry-reasoner.streamlit.app/"

// questionLabel is the accessible label of the upstream question text area
const questionLabel = "Enter your chemistry question"

var (
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrElementNotFound   = errors.New("element not found")
)

// Selectors locate the upstream controls. All are XPath expressions.
type Selectors struct {
	QuestionInput string
	SubmitButton  string
	AnswerRegion  string
}

// DefaultSelectors match the upstream markup. The answer region is the block
// whose inline background is the UI's light grey, in either colour notation.
func DefaultSelectors() Selectors {
	return Selectors{
		QuestionInput: fmt.Sprintf(`//textarea[@aria-label=%q] | //input[@aria-label=%q]`, questionLabel, questionLabel),
		SubmitButton:  `//*[self::button or @role="button"][normalize-space(.)="Submit"]`,
		AnswerRegion:  `//div[contains(@style,"background-color: rgb(240, 242, 246)") or contains(@style,"background-color: #f0f2f6")]`,
	}
}

// Driver submits a question through the upstream UI
type Driver struct {
	targetURL string
	selectors Selectors
	logger    arbor.ILogger

	navigationTimeout time.Duration
	inputTimeout      time.Duration
	submitTimeout     time.Duration
	answerTimeout     time.Duration
}

func NewDriver(targetURL string, selectors Selectors, config common.DriverConfig, logger arbor.ILogger) *Driver {
	return &Driver{
		targetURL:         targetURL,
		selectors:         selectors,
		logger:            logger,
		navigationTimeout: common.ParseDuration(config.NavigationTimeout, 60*time.Second),
		inputTimeout:      common.ParseDuration(config.InputTimeout, 30*time.Second),
		submitTimeout:     common.ParseDuration(config.SubmitTimeout, 15*time.Second),
		answerTimeout:     common.ParseDuration(config.AnswerTimeout, 60*time.Second),
	}
}

// Submit navigates page to the target, enters question verbatim, submits it and
// waits for the answer region. It returns the selector of the answer region.
func (d *Driver) Submit(ctx context.Context, page interfaces.BrowserPage, question string) (string, error) {
	err := d.step(ctx, d.navigationTimeout, ErrNavigationTimeout, "target page", func(stepCtx context.Context) error {
		return page.Navigate(stepCtx, d.targetURL)
	})
	if err != nil {
		return "", err
	}

	err = d.step(ctx, d.inputTimeout, ErrElementNotFound, "question input", func(stepCtx context.Context) error {
		if err := page.WaitVisible(stepCtx, d.selectors.QuestionInput); err != nil {
			return err
		}
		return page.Fill(stepCtx, d.selectors.QuestionInput, question)
	})
	if err != nil {
		return "", err
	}

	err = d.step(ctx, d.submitTimeout, ErrElementNotFound, "submit button", func(stepCtx context.Context) error {
		return page.Click(stepCtx, d.selectors.SubmitButton)
	})
	if err != nil {
		return "", err
	}

	err = d.step(ctx, d.answerTimeout, ErrElementNotFound, "answer region", func(stepCtx context.Context) error {
		return page.WaitVisible(stepCtx, d.selectors.AnswerRegion)
	})
	if err != nil {
		return "", err
	}

	d.logger.Debug().Int("question_length", len(question)).Msg("Question submitted")
	return d.selectors.AnswerRegion, nil
}

// step runs fn under its own timeout. Expiry of that timeout maps to onTimeout;
// cancellation of ctx itself is returned unchanged.
func (d *Driver) step(ctx context.Context, timeout time.Duration, onTimeout error, what string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s not ready after %s", onTimeout, what, timeout)
	}
	return fmt.Errorf("%s: %w", what, err)
}
