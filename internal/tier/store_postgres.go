package tier

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps profiles in the profiles table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed profile store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const ensureProfile = `INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	if err := row.Scan(&p.UserID, &p.Tier, &p.AIUsageCount, &p.TierStartDate); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, ensureProfile, userID); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return scanProfile(s.pool.QueryRow(ctx,
		`SELECT user_id, tier, ai_usage_count, tier_start_date FROM profiles WHERE user_id = $1`,
		userID,
	))
}

func (s *PostgresStore) Update(ctx context.Context, userID string, fn func(*Profile) error) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ensureProfile, userID); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	p, err := scanProfile(tx.QueryRow(ctx,
		`SELECT user_id, tier, ai_usage_count, tier_start_date FROM profiles WHERE user_id = $1 FOR UPDATE`,
		userID,
	))
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE profiles
		 SET tier = $2, ai_usage_count = $3, tier_start_date = $4, updated_at = NOW()
		 WHERE user_id = $1`,
		userID, string(p.Tier), p.AIUsageCount, p.TierStartDate,
	); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit profile update: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) IncrementUsage(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var count int
	if err := s.pool.QueryRow(ctx,
		`INSERT INTO profiles (user_id, ai_usage_count) VALUES ($1, 1)
		 ON CONFLICT (user_id) DO UPDATE
		 SET ai_usage_count = profiles.ai_usage_count + 1, updated_at = NOW()
		 RETURNING ai_usage_count`,
		userID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("increment ai usage: %w", err)
	}
	return count, nil
}
