package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"calllog_viewer/internal/calls"
)

// GradesRepository stores quality grades assigned to calls outside the
// telephony API.
type GradesRepository struct {
	pool *pgxpool.Pool
}

type GradeRow struct {
	CallID    int64
	Grade     calls.Grade
	UpdatedAt time.Time
}

func NewGradesRepository(pool *pgxpool.Pool) *GradesRepository {
	return &GradesRepository{pool: pool}
}

// Connect opens the pool and waits for the database to answer.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	err = callWithRetry(ctx, 5, func(c context.Context) error {
		pingCtx, cancel := context.WithTimeout(c, 5*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (r *GradesRepository) Migrate(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS call_grades (
  call_id     bigint PRIMARY KEY,
  grade       text NOT NULL CHECK (grade IN ('good', 'normal', 'bad', 'none')),
  updated_at  timestamptz NOT NULL DEFAULT now()
);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *GradesRepository) UpsertGrades(ctx context.Context, grades []GradeRow) error {
	if len(grades) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	sql := `
INSERT INTO call_grades (call_id, grade, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (call_id) DO UPDATE SET
  grade = EXCLUDED.grade,
  updated_at = now();
`
	for _, g := range grades {
		if _, ok := calls.ParseGrade(string(g.Grade)); !ok {
			return fmt.Errorf("call %d: unknown grade %q", g.CallID, g.Grade)
		}
		if _, err := tx.Exec(ctx, sql, g.CallID, string(g.Grade)); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GradesByCallIDs returns the grades known for ids. Calls without a row are
// absent from the result.
func (r *GradesRepository) GradesByCallIDs(ctx context.Context, ids []int64) (calls.GradeLookup, error) {
	out := make(calls.GradeLookup, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT call_id, grade FROM call_grades WHERE call_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		if g, ok := calls.ParseGrade(raw); ok {
			out[id] = g
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *GradesRepository) ListGrades(ctx context.Context, limit int) ([]GradeRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT call_id, grade, updated_at
		FROM call_grades
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]GradeRow, 0)
	for rows.Next() {
		var (
			g   GradeRow
			raw string
		)
		if err := rows.Scan(&g.CallID, &raw, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Grade, _ = calls.ParseGrade(raw)
		result = append(result, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
