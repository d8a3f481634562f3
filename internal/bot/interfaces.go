// Package bot routes inbound WhatsApp messages: it authorizes the sender,
// applies the rate limit, loads the chat session, runs the parsed command or
// media attachment against the lesson store and replies exactly once.
package bot

import (
	"context"

	"github.com/garyellow/lessonbot-go/internal/revalidate"
	"github.com/garyellow/lessonbot-go/internal/storage"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

// Messenger sends replies and fetches media. whatsapp.Client satisfies it.
type Messenger interface {
	SendText(ctx context.Context, to, text string) error
	DownloadMedia(ctx context.Context, ref whatsapp.MediaRef) (*whatsapp.Media, error)
}

// Store is the lesson store as seen by the router. storage.DB satisfies it.
type Store interface {
	storage.StateRepository
	storage.LessonRepository
	storage.PublishRepository
	storage.MediaRepository
}

// Revalidator refreshes published site paths. revalidate.Client satisfies it.
type Revalidator interface {
	Trigger(ctx context.Context, paths []string) []revalidate.Result
}

// Limiter admits or refuses a sender. ratelimit.Limiter satisfies it.
type Limiter interface {
	Allow(sender string) bool
}

var (
	_ Messenger   = (*whatsapp.Client)(nil)
	_ Store       = (*storage.DB)(nil)
	_ Revalidator = (*revalidate.Client)(nil)
)
