package worker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/model"
)

// ViolationStore persists integrity violations.
type ViolationStore interface {
	CopyIn(ctx context.Context, batch []model.QuizViolation) (int64, error)
	Insert(ctx context.Context, v model.QuizViolation) error
}

// ViolationWorker moves queued violations into PostgreSQL.
type ViolationWorker struct {
	store ViolationStore
	loop  *batchLoop[model.QuizViolation]
	log   zerolog.Logger
}

func NewViolationWorker(store ViolationStore, queue Queue, log zerolog.Logger) *ViolationWorker {
	w := &ViolationWorker{
		store: store,
		log:   log.With().Str("component", "violation_worker").Logger(),
	}
	w.loop = newBatchLoop(queue, config.WorkerKey.PersistViolationsQueue, w.flush, w.log)
	return w
}

// Start runs until ctx is cancelled, then flushes what it holds.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")
	w.loop.run(ctx)
}

// flush tries a COPY of the whole batch, then falls back to row inserts and
// returns the rows that still failed.
func (w *ViolationWorker) flush(ctx context.Context, batch []model.QuizViolation) []model.QuizViolation {
	_, err := w.store.CopyIn(ctx, batch)
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk copy failed, attempting row-by-row recovery")

	var failed []model.QuizViolation
	for _, v := range batch {
		if err := w.store.Insert(ctx, v); err != nil {
			w.log.Error().Err(err).
				Str("session_id", v.SessionID.String()).
				Int("warning_count", v.WarningCount).
				Msg("Insert failed, requeueing")
			failed = append(failed, v)
		}
	}
	return failed
}
