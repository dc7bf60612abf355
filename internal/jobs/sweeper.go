// Package jobs holds the background workers: the periodic sweep that marks
// stale quotes expired and the keep-alive ping that stops the hosting
// provider from idling the database.
package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

type SweepExpiredQuotesArgs struct{}

func (SweepExpiredQuotesArgs) Kind() string { return "sweep_expired_quotes" }

// QuoteSweeper marks stale quotes expired.
type QuoteSweeper interface {
	ExpireStale(ctx context.Context) (int64, error)
}

type SweepExpiredQuotesWorker struct {
	river.WorkerDefaults[SweepExpiredQuotesArgs]
	quotes QuoteSweeper
	log    *slog.Logger
}

func NewSweepExpiredQuotesWorker(quotes QuoteSweeper, log *slog.Logger) *SweepExpiredQuotesWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SweepExpiredQuotesWorker{quotes: quotes, log: log}
}

func (w *SweepExpiredQuotesWorker) Work(ctx context.Context, job *river.Job[SweepExpiredQuotesArgs]) error {
	swept, err := w.quotes.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if swept > 0 {
		w.log.Info("swept expired quotes", "count", swept)
	}
	return nil
}
