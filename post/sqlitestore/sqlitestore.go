// Package sqlitestore is a post.Store on SQLite. Comments live in a JSON
// column; every comment mutation runs in a transaction and is committed with
// a compare-and-swap on the post version.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/quailyquaily/socialsim/internal/fsstore"
	"github.com/quailyquaily/socialsim/post"

	_ "modernc.org/sqlite"
)

var _ post.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	author     TEXT NOT NULL,
	text       TEXT NOT NULL,
	likes      INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
	comments   TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	created_ns INTEGER NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_ns, seq);
`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to dsn (a file path or ":memory:") and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlitestore: empty dsn")
	}
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := fsstore.EnsureDir(filepath.Dir(dsn), 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases whole.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing DDL: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, author, text, likes, comments, created_at, version FROM posts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (post.Post, error) {
	var (
		p        post.Post
		comments string
		created  string
	)
	if err := row.Scan(&p.ID, &p.Author, &p.Text, &p.Likes, &comments, &created, &p.Version); err != nil {
		return post.Post{}, err
	}
	if err := json.Unmarshal([]byte(comments), &p.Comments); err != nil {
		return post.Post{}, fmt.Errorf("decoding comments of %s: %w", p.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return post.Post{}, fmt.Errorf("decoding created_at of %s: %w", p.ID, err)
	}
	p.CreatedAt = t
	return p, nil
}

func encodeComments(comments []post.Comment) (string, error) {
	if comments == nil {
		comments = []post.Comment{}
	}
	data, err := json.Marshal(comments)
	if err != nil {
		return "", fmt.Errorf("encoding comments: %w", err)
	}
	return string(data), nil
}

func (s *Store) Get(ctx context.Context, id string) (post.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return post.Post{}, fmt.Errorf("%w: post %s", post.ErrNotFound, id)
	}
	return p, err
}

func (s *Store) Create(ctx context.Context, p post.Post) (post.Post, error) {
	p, err := post.Prepare(post.Clone(p), s.now())
	if err != nil {
		return post.Post{}, err
	}
	comments, err := encodeComments(p.Comments)
	if err != nil {
		return post.Post{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, author, text, likes, comments, created_at, created_ns, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Author, p.Text, p.Likes, comments, p.CreatedAt.Format(time.RFC3339Nano), p.CreatedAt.UnixNano(), p.Version)
	if err != nil {
		return post.Post{}, fmt.Errorf("inserting post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return post.Post{}, fmt.Errorf("%w: post id %s", post.ErrDuplicate, p.ID)
	}
	return p, nil
}

// IncrementLikes is a single UPDATE, so it never races with other writers.
func (s *Store) IncrementLikes(ctx context.Context, id string, delta int) error {
	if delta <= 0 {
		return fmt.Errorf("%w: like delta must be positive, got %d", post.ErrInvalid, delta)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET likes = likes + ?, version = version + 1 WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("incrementing likes: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: post %s", post.ErrNotFound, id)
	}
	return nil
}

// mutateComments loads the post, applies fn and writes the comments back
// only if nobody bumped the version in between.
func (s *Store) mutateComments(ctx context.Context, id string, fn func(p *post.Post) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	p, err := scanPost(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: post %s", post.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	loaded := p.Version
	if err := fn(&p); err != nil {
		return err
	}
	comments, err := encodeComments(p.Comments)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE posts SET comments = ?, version = ? WHERE id = ? AND version = ?`, comments, p.Version, id, loaded)
	if err != nil {
		return fmt.Errorf("updating comments: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: post %s changed concurrently", post.ErrConflict, id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing comment update: %w", err)
	}
	return nil
}

func (s *Store) AppendComment(ctx context.Context, postID string, c post.Comment, opts post.AppendOptions) (post.Comment, error) {
	var out post.Comment
	err := s.mutateComments(ctx, postID, func(p *post.Post) error {
		var err error
		out, err = post.AddComment(p, c, opts, s.now())
		return err
	})
	return out, err
}

func (s *Store) AppendReply(ctx context.Context, postID string, commentID string, r post.Reply, opts post.AppendOptions) error {
	return s.mutateComments(ctx, postID, func(p *post.Post) error {
		return post.AddReply(p, commentID, r, opts, s.now())
	})
}

func (s *Store) DeleteComment(ctx context.Context, postID string, index int, ifVersion int64) error {
	return s.mutateComments(ctx, postID, func(p *post.Post) error {
		return post.RemoveComment(p, index, ifVersion)
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: post %s", post.ErrNotFound, id)
	}
	return nil
}

func (s *Store) List(ctx context.Context, opts post.ListOptions) ([]post.Post, error) {
	query := selectColumns + ` ORDER BY created_ns DESC, seq DESC`
	if opts.Order == post.OrderOldest {
		query = selectColumns + ` ORDER BY created_ns ASC, seq ASC`
	}
	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	var out []post.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
