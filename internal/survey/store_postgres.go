package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps survey results in the survey_results table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed result store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, r Result) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	data, err := json.Marshal(r.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO survey_results (id, teacher_id, student_id, class_id, survey_type, results, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)`,
		r.ID, r.TeacherID, r.StudentID, r.ClassID, r.SurveyType, string(data), r.CompletedAt,
	); err != nil {
		return fmt.Errorf("insert survey result: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, teacherID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM survey_results WHERE id = $1 AND teacher_id = $2`,
		id, teacherID,
	)
	if err != nil {
		return fmt.Errorf("delete survey result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByStudent(ctx context.Context, teacherID, studentID string) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, teacher_id, student_id, class_id, survey_type, results, completed_at
		 FROM survey_results
		 WHERE teacher_id = $1 AND student_id = $2
		 ORDER BY completed_at DESC`,
		teacherID, studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query survey results: %w", err)
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var (
			r    Result
			data []byte
		)
		if err := rows.Scan(&r.ID, &r.TeacherID, &r.StudentID, &r.ClassID, &r.SurveyType, &data, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan survey result: %w", err)
		}
		if err := json.Unmarshal(data, &r.Results); err != nil {
			return nil, fmt.Errorf("decode survey result %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate survey results: %w", err)
	}
	return out, nil
}
