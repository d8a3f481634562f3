package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
	"github.com/garyellow/lessonbot-go/internal/lesson"
)

// SlugExists reports whether any lesson already uses slug.
func (db *DB) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM lessons WHERE slug = ?)`, slug).Scan(&exists)
	if err != nil {
		return false, fail(ctx, "slug_exists", err, "slug", slug)
	}
	return exists, nil
}

// PublishLesson marks the lesson published under slug.
// The unique slug index turns a lost slug race into ErrSlugTaken.
func (db *DB) PublishLesson(ctx context.Context, id, slug string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE lessons SET status = ?, slug = ?, updated_at = ? WHERE id = ?`,
		string(lesson.StatusPublished), slug, db.now().UTC().Unix(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return domerrors.NewWrapper(module, "publish_lesson").Wrap(
				fmt.Errorf("slug %q: %w", slug, domerrors.ErrSlugTaken), "slug already taken")
		}
		return fail(ctx, "publish_lesson", err, "lesson_id", id, "slug", slug)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fail(ctx, "publish_lesson", err, "lesson_id", id)
	}
	if n == 0 {
		return domerrors.NewWrapper(module, "publish_lesson").Wrap(
			fmt.Errorf("lesson %s: %w", id, domerrors.ErrNotFound), "lesson not found")
	}
	return nil
}

// RecordPublish appends to the publish audit trail.
func (db *DB) RecordPublish(ctx context.Context, id, channel string, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO publishes (lesson_id, channel, result, created_at) VALUES (?, ?, ?, ?)`,
		id, channel, string(result), db.now().UTC().Unix())
	if err != nil {
		return fail(ctx, "record_publish", err, "lesson_id", id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
