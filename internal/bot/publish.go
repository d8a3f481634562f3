package bot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyellow/lessonbot-go/internal/command"
	"github.com/garyellow/lessonbot-go/internal/lesson"
	"github.com/garyellow/lessonbot-go/internal/session"
)

// maxSlugAttempts bounds the collision search (base, base-2 ... base-100).
const maxSlugAttempts = 100

// publishChannel is recorded with every publish made through chat.
const publishChannel = "whatsapp"

func (r *Router) handlePublish(ctx context.Context, st *session.State) Response {
	id := st.ActiveLessonID()
	if id == "" {
		return r.noActiveLesson(ctx, command.NamePublish)
	}

	l, err := r.store.GetLesson(ctx, id)
	if err != nil || l == nil {
		r.collaboratorFailed(ctx, "get_lesson", err)
		return Response{Reply: ReplyLoadLessonFailed, Status: StatusError}
	}

	slug := l.Slug
	if slug == "" {
		slug, err = r.uniqueSlug(ctx, l.Title)
		if err != nil {
			r.collaboratorFailed(ctx, "slug_exists", err)
			return Response{Reply: ReplyPublishFailed, Status: StatusError}
		}
	}

	// The slug search above is not transactional; a concurrent publish may still
	// claim the slug first, in which case the unique index rejects this one.
	if err := r.store.PublishLesson(ctx, id, slug); err != nil {
		r.collaboratorFailed(ctx, "publish_lesson", err)
		return Response{Reply: ReplyPublishFailed, Status: StatusError}
	}

	results := r.revalidator.Trigger(ctx, []string{lesson.Path(slug)})
	for _, res := range results {
		if !res.OK() {
			r.logger.WarnContext(ctx, "Revalidation not accepted", "path", res.Path, "status", res.Status)
		}
	}

	record, _ := json.Marshal(map[string]any{"revalidation": results})
	if err := r.store.RecordPublish(ctx, id, publishChannel, record); err != nil {
		r.collaboratorFailed(ctx, "record_publish", err)
	}

	// The lesson is live even if the session cannot be cleared.
	st.Clear(command.NamePublish)
	r.saveMarker(ctx, st)

	r.logger.InfoContext(ctx, "Lesson published", "lesson_id", id, "slug", slug)
	return Response{Reply: replyPublished(slug), Status: StatusOK}
}

// uniqueSlug slugifies title and tries base, base-2, base-3 ... until free.
func (r *Router) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := lesson.Slugify(title)
	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := lesson.SlugCandidate(base, n)
		exists, err := r.store.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}
