package storage

import (
	"context"
	"time"
)

// MarkProcessed records a webhook message id.
// It returns false when the id was seen before (a platform redelivery).
func (db *DB) MarkProcessed(ctx context.Context, messageID, sender string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_messages (message_id, sender, processed_at) VALUES (?, ?, ?)`,
		messageID, sender, db.now().UTC().Unix())
	if err != nil {
		return false, fail(ctx, "mark_processed", err, "message_id", messageID)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fail(ctx, "mark_processed", err, "message_id", messageID)
	}
	return n == 1, nil
}

// CleanupProcessed deletes ids recorded more than olderThan ago.
func (db *DB) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := db.now().Add(-olderThan).UTC().Unix()
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM processed_messages WHERE processed_at < ?`, cutoff)
	if err != nil {
		return 0, fail(ctx, "cleanup_processed", err)
	}
	return result.RowsAffected()
}
