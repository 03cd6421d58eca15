package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// sweepLimit bounds the rows handled per tick so one tick stays short.
const sweepLimit = 200

// ExpiryFinalizer closes attempts whose time limit passed.
type ExpiryFinalizer interface {
	FinalizeExpired(ctx context.Context, limit int) (int, error)
}

// DueRanker ranks quizzes whose deadline passed.
type DueRanker interface {
	RankDue(ctx context.Context, limit int) (int, error)
}

// DeadlineWorker periodically times out expired attempts and ranks quizzes
// once their deadline passes.
type DeadlineWorker struct {
	attempts ExpiryFinalizer
	rankings DueRanker
	interval time.Duration
	log      zerolog.Logger
}

func NewDeadlineWorker(attempts ExpiryFinalizer, rankings DueRanker, interval time.Duration, log zerolog.Logger) *DeadlineWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &DeadlineWorker{
		attempts: attempts,
		rankings: rankings,
		interval: interval,
		log:      log.With().Str("component", "deadline_worker").Logger(),
	}
}

// Start sweeps every interval until ctx is cancelled.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("DeadlineWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Sweep(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("DeadlineWorker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass. Expired attempts are closed before ranking so they
// count in the ranking of the same pass.
func (w *DeadlineWorker) Sweep(ctx context.Context) {
	closed, err := w.attempts.FinalizeExpired(ctx, sweepLimit)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Expiry sweep failed")
		}
	} else if closed > 0 {
		w.log.Info().Int("count", closed).Msg("Timed out expired attempts")
	}

	ranked, err := w.rankings.RankDue(ctx, sweepLimit)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Ranking sweep failed")
		}
		return
	}
	if ranked > 0 {
		w.log.Info().Int("count", ranked).Msg("Ranked quizzes past their deadline")
	}
}
