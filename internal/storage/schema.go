package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all tables and indexes. It is idempotent.
func InitSchema(ctx context.Context, db *sql.DB) error {
	steps := []struct {
		name  string
		query string
	}{
		{"chat_state", chatStateTable},
		{"lessons", lessonsTable},
		{"quizzes", quizzesTable},
		{"lesson_media", lessonMediaTable},
		{"publishes", publishesTable},
		{"processed_messages", processedMessagesTable},
	}

	for _, step := range steps {
		if _, err := db.ExecContext(ctx, step.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", step.name, err)
		}
	}
	return nil
}

// chat_state holds one row per sender. active_lesson is a plain id, not a
// foreign key: the session only references the lesson.
const chatStateTable = `
CREATE TABLE IF NOT EXISTS chat_state (
	sender TEXT PRIMARY KEY,
	active_lesson TEXT,
	awaiting_kind TEXT CHECK(awaiting_kind IN ('image', 'audio', 'video')),
	last_cmd TEXT,
	updated_at INTEGER NOT NULL
);
`

// The partial unique index backs up the best-effort slug search.
const lessonsTable = `
CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	level TEXT NOT NULL,
	topic TEXT NOT NULL,
	author_phone TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft' CHECK(status IN ('draft', 'published')),
	body_md TEXT NOT NULL DEFAULT '',
	slug TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_lessons_slug ON lessons(slug) WHERE slug IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_lessons_author ON lessons(author_phone);
`

const quizzesTable = `
CREATE TABLE IF NOT EXISTS quizzes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	prompt TEXT NOT NULL,
	options TEXT NOT NULL,
	answer_idx INTEGER NOT NULL CHECK(answer_idx BETWEEN 0 AND 2),
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quizzes_lesson ON quizzes(lesson_id);
`

const lessonMediaTable = `
CREATE TABLE IF NOT EXISTS lesson_media (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	kind TEXT NOT NULL CHECK(kind IN ('image', 'audio', 'video')),
	url TEXT NOT NULL,
	caption TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lesson_media_lesson ON lesson_media(lesson_id);
`

const publishesTable = `
CREATE TABLE IF NOT EXISTS publishes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	channel TEXT NOT NULL,
	result TEXT NOT NULL DEFAULT '{}',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_publishes_lesson ON publishes(lesson_id);
`

// processed_messages de-duplicates webhook redeliveries by message id.
const processedMessagesTable = `
CREATE TABLE IF NOT EXISTS processed_messages (
	message_id TEXT PRIMARY KEY,
	sender TEXT NOT NULL,
	processed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processed_messages_at ON processed_messages(processed_at);
`
