package summary

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Trigger issues at most one automatic summarization per session. It is armed
// when the session leaves its streaming state and fires after a quiet period
// that absorbs any trailing final results. The quiet period is a tunable
// constant, not a correctness-critical value.
type Trigger struct {
	quiet  time.Duration
	client Client
	logger zerolog.Logger

	mu    sync.Mutex
	fired bool
}

// NewTrigger creates a trigger for a single session
func NewTrigger(quiet time.Duration, client Client, logger zerolog.Logger) *Trigger {
	return &Trigger{
		quiet:  quiet,
		client: client,
		logger: logger,
	}
}

// Settle waits out the quiet period and then issues exactly one automatic
// meeting summary for the transcript snapshot taken at fire time. It returns
// nil when the transcript is empty, the trigger already fired, or the context
// is cancelled. Errors from the summarization collaborator are folded into
// the returned Result so they surface as content, not transport failures.
func (t *Trigger) Settle(ctx context.Context, snapshot func() string) *Result {
	select {
	case <-time.After(t.quiet):
	case <-ctx.Done():
		return nil
	}

	t.mu.Lock()
	if t.fired {
		t.mu.Unlock()
		return nil
	}
	t.fired = true
	t.mu.Unlock()

	text := snapshot()
	if text == "" {
		t.logger.Debug().Msg("quiet period elapsed with empty transcript, skipping auto-summary")
		return nil
	}

	t.logger.Info().Int("transcript_chars", len(text)).Msg("quiet period elapsed, requesting auto-summary")

	result, err := t.client.Summarize(ctx, text, TypeMeeting)
	if err != nil {
		t.logger.Error().Err(err).Msg("auto-summary request failed")
		return &Result{
			Type:  TypeMeeting,
			Error: "Failed to generate summary: " + err.Error(),
		}
	}
	return result
}

// Fired reports whether the automatic summary has already been issued
func (t *Trigger) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
