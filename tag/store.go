package tag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/taskflow/internal/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS tags (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tags_name ON tags (name);

CREATE TABLE IF NOT EXISTS task_tags (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL,
	tag_id     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_tags_task ON task_tags (task_id);
CREATE INDEX IF NOT EXISTS idx_task_tags_tag ON task_tags (tag_id);
`

// SQLiteStore keeps tags and associations in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore ensures the tag tables exist on db. The caller owns db.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create tag schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// ResolveOrCreate looks the normalized name up and inserts a new tag when it
// is absent. When duplicates exist the oldest row wins.
func (s *SQLiteStore) ResolveOrCreate(ctx context.Context, name string) (string, error) {
	const op = "tag.resolve"
	normalized := Normalize(name)
	if normalized == "" {
		return "", apperr.E(apperr.ValidationFailure, op, "empty tag name")
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM tags WHERE name = ? ORDER BY rowid LIMIT 1`, normalized).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", apperr.Wrap(apperr.StoreFailure, op, fmt.Errorf("lookup tag %q: %w", normalized, err))
	}

	id = uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, created_at) VALUES (?,?,?)`,
		id, normalized, time.Now().UTC()); err != nil {
		return "", apperr.Wrap(apperr.StoreFailure, op, fmt.Errorf("insert tag %q: %w", normalized, err))
	}
	s.logger.Info("created tag", slog.String("name", normalized), slog.String("tag_id", id))
	return id, nil
}

// Associate resolves each name and appends an association row for it. The
// same pair may be stored more than once.
func (s *SQLiteStore) Associate(ctx context.Context, taskID string, names []string) error {
	for _, name := range names {
		tagID, err := s.ResolveOrCreate(ctx, name)
		if err != nil {
			s.logger.Warn("skipping tag", slog.String("task_id", taskID),
				slog.String("tag", name), slog.Any("err", err))
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO task_tags (id, task_id, tag_id, created_at) VALUES (?,?,?,?)`,
			uuid.NewString(), taskID, tagID, time.Now().UTC()); err != nil {
			return apperr.Wrap(apperr.StoreFailure, "tag.associate",
				fmt.Errorf("associate tag %q with task %s: %w", name, taskID, err))
		}
		s.logger.Debug("associated tag", slog.String("task_id", taskID), slog.String("tag", name))
	}
	return nil
}

// TagsForTask returns each associated tag name once, in tag storage order.
func (s *SQLiteStore) TagsForTask(ctx context.Context, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM tags
		WHERE id IN (SELECT tag_id FROM task_tags WHERE task_id = ?)
		GROUP BY name
		ORDER BY MIN(rowid)`, taskID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.for_task", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "tag.for_task", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.for_task", err)
	}
	return names, nil
}

// TaskIDsForTag returns the distinct task IDs associated with any tag row
// carrying the normalized name. Unknown names yield an empty result.
func (s *SQLiteStore) TaskIDsForTag(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id FROM task_tags
		WHERE tag_id IN (SELECT id FROM tags WHERE name = ?)
		GROUP BY task_id
		ORDER BY MIN(rowid)`, Normalize(name))
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.task_ids", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "tag.task_ids", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.task_ids", err)
	}
	return ids, nil
}

// Associations returns every association row stored for taskID.
func (s *SQLiteStore) Associations(ctx context.Context, taskID string) ([]Association, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, tag_id, created_at FROM task_tags
		WHERE task_id = ? ORDER BY rowid`, taskID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.associations", err)
	}
	defer rows.Close()

	out := []Association{}
	for rows.Next() {
		var a Association
		if err := rows.Scan(&a.ID, &a.TaskID, &a.TagID, &a.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "tag.associations", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.associations", err)
	}
	return out, nil
}

// All returns every tag row, duplicates included.
func (s *SQLiteStore) All(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY rowid`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.all", err)
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "tag.all", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "tag.all", err)
	}
	return tags, nil
}
