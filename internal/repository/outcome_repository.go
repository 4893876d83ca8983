package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proctor-backend/internal/model"
)

// OutcomeSummary is one finished session decorated with its violation count.
type OutcomeSummary struct {
	model.QuizOutcome
	Violations int64 `json:"violations"`
}

// OutcomeRepository reads finished quiz sessions.
type OutcomeRepository struct {
	pool *pgxpool.Pool
}

// NewOutcomeRepository creates a new OutcomeRepository.
func NewOutcomeRepository(pool *pgxpool.Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

// List returns finished sessions matching filter, newest first, with the total match count.
func (r *OutcomeRepository) List(ctx context.Context, filter model.OutcomeFilter) ([]OutcomeSummary, int64, error) {
	page, perPage := normalizePage(filter.Page, filter.PerPage)
	offset := (page - 1) * perPage

	where, args := outcomeWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quiz_sessions qs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count outcomes: %w", err)
	}

	query := `
		SELECT qs.id, qs.participant, qs.topic, qs.reason, qs.score, qs.total, qs.warnings,
		       qs.started_at, qs.finished_at,
		       (SELECT COUNT(*) FROM quiz_violations qv WHERE qv.session_id = qs.id) AS violations
		FROM quiz_sessions qs` + where + fmt.Sprintf(`
		ORDER BY qs.finished_at DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var results []OutcomeSummary
	for rows.Next() {
		var o OutcomeSummary
		if err := rows.Scan(
			&o.SessionID, &o.Participant, &o.Topic, &o.Reason, &o.Score, &o.Total, &o.Warnings,
			&o.StartedAt, &o.FinishedAt, &o.Violations,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, o)
	}

	return results, total, rows.Err()
}

// outcomeWhere builds the WHERE clause and positional arguments for filter.
func outcomeWhere(filter model.OutcomeFilter) (string, []any) {
	var (
		clause string
		args   []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		if clause == "" {
			clause = " WHERE "
		} else {
			clause += " AND "
		}
		clause += fmt.Sprintf("qs.%s = $%d", column, len(args))
	}

	add("topic", filter.Topic)
	add("participant", filter.Participant)
	add("reason", filter.Reason)
	return clause, args
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// CountsByReason returns the number of finished sessions per end reason,
// optionally for one topic.
func (r *OutcomeRepository) CountsByReason(ctx context.Context, topic string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT reason, COUNT(*)
		 FROM quiz_sessions
		 WHERE $1 = '' OR topic = $1
		 GROUP BY reason`,
		topic,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		counts[reason] = count
	}
	return counts, rows.Err()
}

// InsertBatch stores finished sessions in one statement. Outcomes already
// stored (a requeued batch) are left untouched.
func (r *OutcomeRepository) InsertBatch(ctx context.Context, batch []model.QuizOutcome) error {
	n := len(batch)
	ids := make([]uuid.UUID, 0, n)
	participants := make([]string, 0, n)
	topics := make([]string, 0, n)
	reasons := make([]string, 0, n)
	scores := make([]int32, 0, n)
	totals := make([]int32, 0, n)
	warnings := make([]int32, 0, n)
	startedAts := make([]time.Time, 0, n)
	finishedAts := make([]time.Time, 0, n)

	for _, o := range batch {
		ids = append(ids, o.SessionID)
		participants = append(participants, o.Participant)
		topics = append(topics, o.Topic)
		reasons = append(reasons, o.Reason)
		scores = append(scores, int32(o.Score))
		totals = append(totals, int32(o.Total))
		warnings = append(warnings, int32(o.Warnings))
		startedAts = append(startedAts, o.StartedAt)
		finishedAts = append(finishedAts, o.FinishedAt)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO quiz_sessions (id, participant, topic, reason, score, total, warnings, started_at, finished_at)
		SELECT * FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::text[],
			$4::text[],
			$5::int[],
			$6::int[],
			$7::int[],
			$8::timestamptz[],
			$9::timestamptz[]
		)
		ON CONFLICT (id) DO NOTHING`,
		ids, participants, topics, reasons, scores, totals, warnings, startedAts, finishedAts,
	)
	return err
}

// Insert stores one finished session.
func (r *OutcomeRepository) Insert(ctx context.Context, o model.QuizOutcome) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_sessions (id, participant, topic, reason, score, total, warnings, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		o.SessionID, o.Participant, o.Topic, o.Reason, o.Score, o.Total, o.Warnings, o.StartedAt, o.FinishedAt,
	)
	return err
}
