package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proctor-backend/internal/model"
)

// ViolationRepository aggregates recorded integrity violations.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// CountsByKind returns the number of violations per kind, optionally for one topic.
func (r *ViolationRepository) CountsByKind(ctx context.Context, topic string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT kind, COUNT(*)
		 FROM quiz_violations
		 WHERE $1 = '' OR topic = $1
		 GROUP BY kind`,
		topic,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

// CopyIn bulk-loads violations with the COPY protocol. The batch is all or nothing.
func (r *ViolationRepository) CopyIn(ctx context.Context, batch []model.QuizViolation) (int64, error) {
	rows := make([][]interface{}, 0, len(batch))
	for _, v := range batch {
		rows = append(rows, []interface{}{
			v.SessionID, v.Participant, v.Topic, v.Kind, v.WarningCount, v.RecordedAt,
		})
	}

	return r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"quiz_violations"},
		[]string{"session_id", "participant", "topic", "kind", "warning_count", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
}

// Insert stores one violation. A replayed violation is ignored.
func (r *ViolationRepository) Insert(ctx context.Context, v model.QuizViolation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_violations (session_id, participant, topic, kind, warning_count, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id, warning_count) DO NOTHING`,
		v.SessionID, v.Participant, v.Topic, v.Kind, v.WarningCount, v.RecordedAt,
	)
	return err
}
