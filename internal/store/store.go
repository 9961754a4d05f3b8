package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/subfeed/internal/feed"
	"github.com/ppiankov/subfeed/internal/logger"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

// RunSummary describes one saved aggregation run.
type RunSummary struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Subscriptions int
	Posts         int
	New           int
}

// SubscriptionStats holds stored post counts for one subscription.
type SubscriptionStats struct {
	Subscription string
	Type         feed.Type
	Posts        int
	Newest       time.Time
	Oldest       time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun records a run and upserts its posts keyed by subscription and guid.
// Posts must carry their subscription.
func (s *Store) SaveRun(ctx context.Context, posts []feed.Post, startedAt time.Time) (RunSummary, error) {
	if s == nil || s.db == nil {
		return RunSummary{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if startedAt.IsZero() {
		return RunSummary{}, errors.New("started_at is required")
	}

	for i, p := range posts {
		if p.Subscription == nil {
			return RunSummary{}, fmt.Errorf("post %d has no subscription", i)
		}
		if strings.TrimSpace(p.GUID) == "" {
			return RunSummary{}, fmt.Errorf("post %d has no guid", i)
		}
	}

	summary := RunSummary{
		ID:         uuid.NewString(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Posts:      len(posts),
	}
	subs := make(map[string]struct{})
	for _, p := range posts {
		subs[p.Subscription.Name] = struct{}{}
	}
	summary.Subscriptions = len(subs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RunSummary{}, fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, subscriptions, posts, new_posts)
		VALUES (?, ?, ?, ?, ?, 0)
	`, summary.ID, formatTime(summary.StartedAt), formatTime(summary.FinishedAt), summary.Subscriptions, summary.Posts); err != nil {
		_ = tx.Rollback()
		return RunSummary{}, fmt.Errorf("insert run: %w", err)
	}

	seenAt := formatTime(summary.FinishedAt)
	for _, p := range posts {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM posts WHERE subscription = ? AND guid = ?",
			p.Subscription.Name, p.GUID,
		).Scan(&exists)
		if err != nil {
			_ = tx.Rollback()
			return RunSummary{}, fmt.Errorf("check post: %w", err)
		}
		if exists == 0 {
			summary.New++
		}

		var author sql.NullString
		if p.Author != nil {
			author = sql.NullString{String: *p.Author, Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO posts (
				subscription, subscription_type, subscription_url, guid, title, link, author,
				pub_date, description, run_id, seen_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(subscription, guid) DO UPDATE SET
				subscription_type = excluded.subscription_type,
				subscription_url = excluded.subscription_url,
				title = excluded.title,
				link = excluded.link,
				author = excluded.author,
				pub_date = excluded.pub_date,
				description = excluded.description,
				run_id = excluded.run_id,
				seen_at = excluded.seen_at
		`,
			p.Subscription.Name,
			string(p.Subscription.Type),
			p.Subscription.URL,
			p.GUID,
			p.Title,
			p.Link,
			author,
			formatTime(p.PubDate.Time),
			p.Description,
			summary.ID,
			seenAt,
		)
		if err != nil {
			_ = tx.Rollback()
			return RunSummary{}, fmt.Errorf("upsert post %s: %w", p.GUID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE runs SET new_posts = ? WHERE id = ?", summary.New, summary.ID); err != nil {
		_ = tx.Rollback()
		return RunSummary{}, fmt.Errorf("update run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return RunSummary{}, fmt.Errorf("commit run: %w", err)
	}

	logger.L.Debugw("saved run", "run", summary.ID, "posts", summary.Posts, "new", summary.New)
	return summary, nil
}

// LatestPosts returns stored posts newest first. Posts with equal dates keep
// the order they were first stored in. A limit of zero or less returns all.
func (s *Store) LatestPosts(ctx context.Context, limit int) ([]feed.Post, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `
		SELECT subscription, subscription_type, subscription_url, guid, title, link, author, pub_date, description
		FROM posts
		ORDER BY pub_date DESC, id ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get latest posts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	posts := []feed.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, subscriptions, posts, new_posts
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var (
			r                     RunSummary
			startedAt, finishedAt string
		)
		if err := rows.Scan(&r.ID, &startedAt, &finishedAt, &r.Subscriptions, &r.Posts, &r.New); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if r.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// SubscriptionStats returns per-subscription post counts ordered by name.
func (s *Store) SubscriptionStats(ctx context.Context) ([]SubscriptionStats, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT subscription, MAX(subscription_type), COUNT(*), MAX(pub_date), MIN(pub_date)
		FROM posts
		GROUP BY subscription
		ORDER BY subscription
	`)
	if err != nil {
		return nil, fmt.Errorf("get subscription stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []SubscriptionStats
	for rows.Next() {
		var (
			st             SubscriptionStats
			kind           string
			newest, oldest string
		)
		if err := rows.Scan(&st.Subscription, &kind, &st.Posts, &newest, &oldest); err != nil {
			return nil, fmt.Errorf("scan subscription stats: %w", err)
		}
		st.Type = feed.Type(kind)
		if st.Newest, err = parseTime(newest); err != nil {
			return nil, fmt.Errorf("parse newest: %w", err)
		}
		if st.Oldest, err = parseTime(oldest); err != nil {
			return nil, fmt.Errorf("parse oldest: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscription stats: %w", err)
	}

	return stats, nil
}

// PruneOld deletes posts published more than retainDays ago and runs that no
// longer own any post. Returns the number of posts removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE pub_date < ?", cutoff)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prune old posts: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM runs
		WHERE started_at < ? AND id NOT IN (SELECT DISTINCT run_id FROM posts)
	`, cutoff); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prune old runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(scanner rowScanner) (feed.Post, error) {
	var (
		post    feed.Post
		sub     feed.Subscription
		kind    string
		author  sql.NullString
		pubDate string
	)

	if err := scanner.Scan(
		&sub.Name,
		&kind,
		&sub.URL,
		&post.GUID,
		&post.Title,
		&post.Link,
		&author,
		&pubDate,
		&post.Description,
	); err != nil {
		return feed.Post{}, fmt.Errorf("scan post: %w", err)
	}

	sub.Type = feed.Type(kind)
	post.Subscription = &sub
	if author.Valid {
		name := author.String
		post.Author = &name
	}

	published, err := parseTime(pubDate)
	if err != nil {
		return feed.Post{}, fmt.Errorf("parse pub_date: %w", err)
	}
	post.PubDate = feed.NewTimestamp(published)

	return post, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(timeLayout, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
