package jobs

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

type KeepAlivePingArgs struct{}

func (KeepAlivePingArgs) Kind() string { return "keepalive_ping" }

// Pinger issues a trivial database round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

type KeepAlivePingWorker struct {
	river.WorkerDefaults[KeepAlivePingArgs]
	db  Pinger
	log *slog.Logger
}

func NewKeepAlivePingWorker(db Pinger, log *slog.Logger) *KeepAlivePingWorker {
	if log == nil {
		log = slog.Default()
	}
	return &KeepAlivePingWorker{db: db, log: log}
}

func (w *KeepAlivePingWorker) Work(ctx context.Context, job *river.Job[KeepAlivePingArgs]) error {
	if err := w.db.Ping(ctx); err != nil {
		w.log.Error("keep-alive ping failed", "error", err)
		return err
	}
	return nil
}
