// Package lesson defines the lesson records authored over chat and the
// pure helpers (slugs, markdown cleanup) shared by the router and the store.
package lesson

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the publication state of a lesson.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// MediaKind is the type of attachment an author can add.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind maps "image", "audio" or "video" (any case) to a MediaKind.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch kind := MediaKind(strings.ToLower(strings.TrimSpace(s))); kind {
	case MediaImage, MediaAudio, MediaVideo:
		return kind, true
	default:
		return "", false
	}
}

func (k MediaKind) String() string { return string(k) }

// Lesson is a lesson record owned by the store.
type Lesson struct {
	ID           string
	Title        string
	Level        string
	Topic        string
	AuthorPhone  string
	Status       Status
	BodyMarkdown string
	Slug         string // Empty until first publish
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPublished reports whether the lesson has been published at least once.
func (l *Lesson) IsPublished() bool {
	return l.Status == StatusPublished
}

// Path returns the site path of a published lesson.
func Path(slug string) string {
	return "/lessons/" + slug
}

// Quiz is a three-option multiple choice question attached to a lesson.
type Quiz struct {
	ID          int64
	LessonID    string
	Prompt      string
	Options     [3]string
	AnswerIndex int
	CreatedAt   time.Time
}

// MediaEntry is a stored attachment.
type MediaEntry struct {
	ID        int64
	LessonID  string
	Kind      MediaKind
	URL       string
	Caption   string
	CreatedAt time.Time
}

// PublishRecord is the audit row written after every publish.
type PublishRecord struct {
	ID        int64
	LessonID  string
	Channel   string
	Result    json.RawMessage
	CreatedAt time.Time
}
