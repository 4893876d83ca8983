package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/model"
)

// LiveStore is the Redis side the recorder writes to.
type LiveStore interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
	Publish(ctx context.Context, payload []byte) error
}

// MonitorEvent is one message on the live monitor channel.
type MonitorEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	MonitorEventViolation = "violation"
	MonitorEventOutcome   = "outcome"
)

// AuditRecorder queues violations and outcomes for the persistence workers
// and mirrors them onto the live monitor channel. Failures are logged and
// never reach the session.
type AuditRecorder struct {
	live LiveStore
	log  zerolog.Logger
}

// NewAuditRecorder creates a new AuditRecorder.
func NewAuditRecorder(live LiveStore, log zerolog.Logger) *AuditRecorder {
	return &AuditRecorder{
		live: live,
		log:  log.With().Str("component", "audit_recorder").Logger(),
	}
}

// RecordViolation implements proctor.Recorder.
func (r *AuditRecorder) RecordViolation(ctx context.Context, v model.QuizViolation) {
	r.record(ctx, config.WorkerKey.PersistViolationsQueue, MonitorEventViolation, v)
}

// RecordOutcome implements proctor.Recorder.
func (r *AuditRecorder) RecordOutcome(ctx context.Context, o model.QuizOutcome) {
	r.record(ctx, config.WorkerKey.PersistOutcomesQueue, MonitorEventOutcome, o)
}

func (r *AuditRecorder) record(ctx context.Context, queue, eventType string, fact interface{}) {
	payload, err := json.Marshal(fact)
	if err != nil {
		r.log.Error().Err(err).Str("queue", queue).Msg("Failed to encode audit record")
		return
	}

	if err := r.live.Enqueue(ctx, queue, payload); err != nil {
		r.log.Error().Err(err).Str("queue", queue).Msg("Failed to enqueue audit record")
	}

	event, err := json.Marshal(MonitorEvent{
		Type:      eventType,
		Data:      json.RawMessage(payload),
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	if err := r.live.Publish(ctx, event); err != nil {
		r.log.Warn().Err(err).Str("type", eventType).Msg("Failed to publish monitor event")
	}
}
