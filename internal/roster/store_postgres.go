package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps classes and students in the classes and students tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed roster store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateClass(ctx context.Context, c Class) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO classes (id, teacher_id, name, class_code, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.TeacherID, c.Name, c.ClassCode, c.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

const classColumns = `id, teacher_id, name, class_code, created_at`

func scanClasses(rows pgx.Rows) ([]Class, error) {
	defer rows.Close()
	out := []Class{}
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.TeacherID, &c.Name, &c.ClassCode, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetClass(ctx context.Context, teacherID, classID string) (*Class, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Class
	err := s.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE id = $1 AND teacher_id = $2`,
		classID, teacherID,
	).Scan(&c.ID, &c.TeacherID, &c.Name, &c.ClassCode, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListClasses(ctx context.Context, teacherID string) ([]Class, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+classColumns+` FROM classes WHERE teacher_id = $1 ORDER BY created_at`,
		teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	return scanClasses(rows)
}

func (s *PostgresStore) DeleteClass(ctx context.Context, teacherID, classID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete class: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM classes WHERE id = $1 AND teacher_id = $2`, classID, teacherID)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM students WHERE class_id = $1`, classID); err != nil {
		return fmt.Errorf("delete class students: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete class: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddStudents(ctx context.Context, students []Student) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, st := range students {
		batch.Queue(
			`INSERT INTO students (id, class_id, name, number, student_code) VALUES ($1, $2, $3, $4, $5)`,
			st.ID, st.ClassID, st.Name, st.Number, st.StudentCode,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add students: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert students: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit add students: %w", err)
	}
	return nil
}

const studentColumns = `id, class_id, name, number, student_code`

func (s *PostgresStore) ListStudents(ctx context.Context, classID string) ([]Student, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE class_id = $1 ORDER BY position`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	out := []Student{}
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.ClassID, &st.Name, &st.Number, &st.StudentCode); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteStudent(ctx context.Context, classID, studentID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1 AND class_id = $2`, studentID, classID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClassesByCode(ctx context.Context, classCode string) ([]Class, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+classColumns+` FROM classes WHERE class_code = $1 ORDER BY teacher_id, created_at`,
		classCode,
	)
	if err != nil {
		return nil, fmt.Errorf("query classes by code: %w", err)
	}
	return scanClasses(rows)
}

func (s *PostgresStore) StudentByCode(ctx context.Context, classID, studentCode string) (*Student, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var st Student
	err := s.pool.QueryRow(ctx,
		`SELECT `+studentColumns+` FROM students WHERE class_id = $1 AND student_code = $2 LIMIT 1`,
		classID, studentCode,
	).Scan(&st.ID, &st.ClassID, &st.Name, &st.Number, &st.StudentCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student by code: %w", err)
	}
	return &st, nil
}
