package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps one row per teacher in the schedules table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed schedule store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, teacherID string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := ensureRow(ctx, s.pool, teacherID); err != nil {
		return nil, err
	}
	return scanDocument(s.pool.QueryRow(ctx,
		`SELECT teacher_id, days, time_slots, lesson_duration, updated_at
		 FROM schedules WHERE teacher_id = $1`,
		teacherID,
	))
}

func (s *PostgresStore) Update(ctx context.Context, teacherID string, fn func(*Document) error) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin schedule update: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := ensureRow(ctx, tx, teacherID); err != nil {
		return nil, err
	}

	current, err := scanDocument(tx.QueryRow(ctx,
		`SELECT teacher_id, days, time_slots, lesson_duration, updated_at
		 FROM schedules WHERE teacher_id = $1
		 FOR UPDATE`,
		teacherID,
	))
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return current, err
		}
		return nil, err
	}

	days, err := json.Marshal(next.Days)
	if err != nil {
		return nil, fmt.Errorf("marshal days: %w", err)
	}
	slots, err := json.Marshal(next.Settings.TimeSlots)
	if err != nil {
		return nil, fmt.Errorf("marshal time slots: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`UPDATE schedules
		 SET days = $2::jsonb, time_slots = $3::jsonb, lesson_duration = $4, updated_at = NOW()
		 WHERE teacher_id = $1
		 RETURNING updated_at`,
		teacherID, string(days), string(slots), next.Settings.LessonDuration,
	).Scan(&next.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit schedule update: %w", err)
	}
	return next, nil
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ensureRow creates the default document for a teacher on first access.
func ensureRow(ctx context.Context, db execer, teacherID string) error {
	defaults := NewDocument(teacherID)
	days, err := json.Marshal(defaults.Days)
	if err != nil {
		return fmt.Errorf("marshal default days: %w", err)
	}
	slots, err := json.Marshal(defaults.Settings.TimeSlots)
	if err != nil {
		return fmt.Errorf("marshal default time slots: %w", err)
	}
	if _, err := db.Exec(ctx,
		`INSERT INTO schedules (teacher_id, days, time_slots, lesson_duration)
		 VALUES ($1, $2::jsonb, $3::jsonb, $4)
		 ON CONFLICT (teacher_id) DO NOTHING`,
		teacherID, string(days), string(slots), defaults.Settings.LessonDuration,
	); err != nil {
		return fmt.Errorf("create default schedule: %w", err)
	}
	return nil
}

func scanDocument(row pgx.Row) (*Document, error) {
	var (
		doc   Document
		days  []byte
		slots []byte
	)
	if err := row.Scan(&doc.TeacherID, &days, &slots, &doc.Settings.LessonDuration, &doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if err := json.Unmarshal(days, &doc.Days); err != nil {
		return nil, fmt.Errorf("decode days: %w", err)
	}
	if err := json.Unmarshal(slots, &doc.Settings.TimeSlots); err != nil {
		return nil, fmt.Errorf("decode time slots: %w", err)
	}
	doc.normalize()
	return &doc, nil
}
