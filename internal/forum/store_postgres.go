package forum

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

// PostgresStore keeps the board in the forum_posts, forum_replies and
// forum_comments tables. Multi-row writes run in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed forum store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// isForeignKeyViolation reports a write that lost a race with the delete of
// its post or reply.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func marshalAuthor(a Author) (string, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal author: %w", err)
	}
	return string(data), nil
}

func decodeAuthor(raw []byte, a *Author) error {
	if err := json.Unmarshal(raw, a); err != nil {
		return fmt.Errorf("decode author: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePost(ctx context.Context, p Post) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	author, err := marshalAuthor(p.Author)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO forum_posts (id, author, title, description, category, date)
		 VALUES ($1, $2::jsonb, $3, $4, $5, $6)`,
		p.ID, author, p.Title, p.Description, p.Category, p.Date,
	); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

const postColumns = `id, author, title, description, category, date`

func scanPost(row pgx.Row) (*Post, error) {
	var (
		p      Post
		author []byte
	)
	if err := row.Scan(&p.ID, &author, &p.Title, &p.Description, &p.Category, &p.Date); err != nil {
		return nil, err
	}
	if err := decodeAuthor(author, &p.Author); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, id string) (*Post, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM forum_posts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPosts(ctx context.Context) ([]Post, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM forum_posts ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	out := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return out, nil
}

// DeletePost removes the post; its replies and comments go with it through
// the ON DELETE CASCADE foreign keys.
func (s *PostgresStore) DeletePost(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM forum_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateReply(ctx context.Context, r Reply) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	author, err := marshalAuthor(r.Author)
	if err != nil {
		return err
	}
	// The insert only happens when the post exists. New replies start with
	// no upvotes and no comments.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO forum_replies (id, post_id, author, content, date, upvoted_by, comment_count)
		 SELECT $1::text, $2::text, $3::jsonb, $4::text, $5::timestamptz, '{}', 0
		 WHERE EXISTS (SELECT 1 FROM forum_posts WHERE id = $2::text)`,
		r.ID, r.PostID, author, r.Content, r.Date,
	)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const replyColumns = `id, post_id, author, content, date, upvoted_by, comment_count`

func scanReply(row pgx.Row) (*Reply, error) {
	var (
		r      Reply
		author []byte
	)
	if err := row.Scan(&r.ID, &r.PostID, &author, &r.Content, &r.Date, &r.UpvotedBy, &r.CommentCount); err != nil {
		return nil, err
	}
	if err := decodeAuthor(author, &r.Author); err != nil {
		return nil, err
	}
	if r.UpvotedBy == nil {
		r.UpvotedBy = []string{}
	}
	return &r, nil
}

func (s *PostgresStore) GetReply(ctx context.Context, postID, replyID string) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	r, err := scanReply(s.pool.QueryRow(ctx,
		`SELECT `+replyColumns+` FROM forum_replies WHERE id = $1 AND post_id = $2`,
		replyID, postID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reply: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListReplies(ctx context.Context, postID string) ([]Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+replyColumns+` FROM forum_replies WHERE post_id = $1 ORDER BY date ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	out := []Reply{}
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replies: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteReply(ctx context.Context, postID, replyID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete reply: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM forum_replies WHERE id = $1 AND post_id = $2`, replyID, postID)
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM forum_comments WHERE reply_id = $1`, replyID); err != nil {
		return fmt.Errorf("delete reply comments: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete reply: %w", err)
	}
	return nil
}

func (s *PostgresStore) ToggleUpvote(ctx context.Context, postID, replyID, userID string) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	r, err := scanReply(s.pool.QueryRow(ctx,
		`UPDATE forum_replies
		 SET upvoted_by = CASE
		     WHEN $3::text = ANY(upvoted_by) THEN array_remove(upvoted_by, $3::text)
		     ELSE array_append(upvoted_by, $3::text)
		 END
		 WHERE id = $1 AND post_id = $2
		 RETURNING `+replyColumns,
		replyID, postID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("toggle upvote: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) CreateComment(ctx context.Context, c Comment) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	author, err := marshalAuthor(c.Author)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create comment: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE forum_replies SET comment_count = comment_count + 1 WHERE id = $1 AND post_id = $2`,
		c.ReplyID, c.PostID,
	)
	if err != nil {
		return fmt.Errorf("increment comment count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO forum_comments (id, post_id, reply_id, author, content, date)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		c.ID, c.PostID, c.ReplyID, author, c.Content, c.Date,
	); isForeignKeyViolation(err) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create comment: %w", err)
	}
	return nil
}

const commentColumns = `id, post_id, reply_id, author, content, date`

func scanComment(row pgx.Row) (*Comment, error) {
	var (
		c      Comment
		author []byte
	)
	if err := row.Scan(&c.ID, &c.PostID, &c.ReplyID, &author, &c.Content, &c.Date); err != nil {
		return nil, err
	}
	if err := decodeAuthor(author, &c.Author); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetComment(ctx context.Context, postID, replyID, commentID string) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanComment(s.pool.QueryRow(ctx,
		`SELECT `+commentColumns+` FROM forum_comments WHERE id = $1 AND reply_id = $2 AND post_id = $3`,
		commentID, replyID, postID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, postID string) (map[string][]Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+commentColumns+` FROM forum_comments WHERE post_id = $1 ORDER BY date ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Comment)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out[c.ReplyID] = append(out[c.ReplyID], *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, postID, replyID, commentID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete comment: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM forum_comments WHERE id = $1 AND reply_id = $2 AND post_id = $3`,
		commentID, replyID, postID,
	)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE forum_replies SET comment_count = comment_count - 1 WHERE id = $1 AND post_id = $2`,
		replyID, postID,
	); err != nil {
		return fmt.Errorf("decrement comment count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete comment: %w", err)
	}
	return nil
}
