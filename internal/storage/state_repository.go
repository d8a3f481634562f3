package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/garyellow/lessonbot-go/internal/session"
)

// GetState loads the session for sender. A sender seen for the first time
// gets a fresh Idle state; nothing is written until SaveState.
func (db *DB) GetState(ctx context.Context, sender string) (*session.State, error) {
	query := `SELECT active_lesson, awaiting_kind, last_cmd, updated_at FROM chat_state WHERE sender = ?`

	var (
		activeLesson, awaitingKind, lastCmd sql.NullString
		updatedAt                           int64
	)
	err := db.conn.QueryRowContext(ctx, query, sender).Scan(&activeLesson, &awaitingKind, &lastCmd, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.New(sender), nil
	}
	if err != nil {
		return nil, fail(ctx, "get_state", err)
	}

	return session.FromColumns(sender,
		activeLesson.String,
		awaitingKind.String,
		lastCmd.String,
		time.Unix(updatedAt, 0).UTC(),
	), nil
}

// SaveState upserts the session. There is no version check: concurrent
// messages from one sender resolve as last writer wins.
func (db *DB) SaveState(ctx context.Context, state *session.State) error {
	query := `
		INSERT INTO chat_state (sender, active_lesson, awaiting_kind, last_cmd, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(sender) DO UPDATE SET
			active_lesson = excluded.active_lesson,
			awaiting_kind = excluded.awaiting_kind,
			last_cmd = excluded.last_cmd,
			updated_at = excluded.updated_at
	`

	now := db.now().UTC()
	activeLesson, awaitingKind := state.Columns()
	_, err := db.conn.ExecContext(ctx, query,
		state.Sender,
		nullString(activeLesson),
		nullString(awaitingKind),
		nullString(state.Marker),
		now.Unix(),
	)
	if err != nil {
		return fail(ctx, "save_state", err)
	}

	state.UpdatedAt = now
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
