// Package storage is the SQLite-backed lesson store: chat sessions, lessons,
// quizzes, media entries, publish records and webhook de-duplication.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/garyellow/lessonbot-go/internal/lesson"
	"github.com/garyellow/lessonbot-go/internal/session"
)

// StateRepository persists per-sender chat sessions.
type StateRepository interface {
	// GetState returns the stored session or a fresh Idle one.
	GetState(ctx context.Context, sender string) (*session.State, error)
	// SaveState upserts the session. Concurrent writers: last one wins.
	SaveState(ctx context.Context, state *session.State) error
}

// LessonRepository manages lesson drafts and their content.
type LessonRepository interface {
	CreateLesson(ctx context.Context, title, level, topic, author string) (*lesson.Lesson, error)
	// GetLesson returns (nil, nil) when the lesson does not exist.
	GetLesson(ctx context.Context, id string) (*lesson.Lesson, error)
	AppendLessonBody(ctx context.Context, id, markdown string) error
	AddQuiz(ctx context.Context, id, prompt string, options [3]string, answerIndex int) error
	AddMediaEntry(ctx context.Context, id string, kind lesson.MediaKind, url, caption string) error
}

// PublishRepository handles slugs and the publish audit trail.
type PublishRepository interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
	// PublishLesson returns ErrSlugTaken when another lesson owns the slug.
	PublishLesson(ctx context.Context, id, slug string) error
	RecordPublish(ctx context.Context, id, channel string, result json.RawMessage) error
}

// MediaRepository uploads attachment bytes to object storage.
type MediaRepository interface {
	UploadMedia(ctx context.Context, lessonID, filename string, data []byte, mimeType string) (string, error)
}

// DedupRepository remembers processed webhook message ids.
type DedupRepository interface {
	// MarkProcessed returns false when the id was already recorded.
	MarkProcessed(ctx context.Context, messageID, sender string) (bool, error)
	CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HealthRepository defines the interface for health check operations.
type HealthRepository interface {
	Ping(ctx context.Context) error
	Ready(ctx context.Context) error
}

// Repository is the aggregate interface implemented by DB.
type Repository interface {
	StateRepository
	LessonRepository
	PublishRepository
	MediaRepository
	DedupRepository
	HealthRepository
	Close() error
}

// Ensure DB implements all repository interfaces at compile time.
var (
	_ StateRepository   = (*DB)(nil)
	_ LessonRepository  = (*DB)(nil)
	_ PublishRepository = (*DB)(nil)
	_ MediaRepository   = (*DB)(nil)
	_ DedupRepository   = (*DB)(nil)
	_ HealthRepository  = (*DB)(nil)
	_ Repository        = (*DB)(nil)
)
