package worker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/model"
)

// OutcomeStore persists finished sessions.
type OutcomeStore interface {
	InsertBatch(ctx context.Context, batch []model.QuizOutcome) error
	Insert(ctx context.Context, o model.QuizOutcome) error
}

// OutcomeWorker moves queued session outcomes into PostgreSQL.
type OutcomeWorker struct {
	store OutcomeStore
	loop  *batchLoop[model.QuizOutcome]
	log   zerolog.Logger
}

func NewOutcomeWorker(store OutcomeStore, queue Queue, log zerolog.Logger) *OutcomeWorker {
	w := &OutcomeWorker{
		store: store,
		log:   log.With().Str("component", "outcome_worker").Logger(),
	}
	w.loop = newBatchLoop(queue, config.WorkerKey.PersistOutcomesQueue, w.flush, w.log)
	return w
}

// Start runs until ctx is cancelled, then flushes what it holds.
func (w *OutcomeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("OutcomeWorker started")
	w.loop.run(ctx)
}

func (w *OutcomeWorker) flush(ctx context.Context, batch []model.QuizOutcome) []model.QuizOutcome {
	err := w.store.InsertBatch(ctx, batch)
	if err == nil {
		return nil
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk outcome insert failed, using fallback")

	var failed []model.QuizOutcome
	for _, o := range batch {
		if err := w.store.Insert(ctx, o); err != nil {
			w.log.Error().Err(err).Str("session_id", o.SessionID.String()).Msg("Outcome insert failed, requeueing")
			failed = append(failed, o)
		}
	}
	return failed
}
