package bot

import (
	"context"

	"github.com/garyellow/lessonbot-go/internal/session"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

// handleMedia attaches an inbound media message to the active draft when the
// session is waiting for one. Each failed step gets its own reply and leaves
// the session waiting.
func (r *Router) handleMedia(ctx context.Context, st *session.State, msg whatsapp.Message) Response {
	expected, ok := st.ExpectedMedia()
	if !ok {
		r.logger.DebugContext(ctx, "Media received without ADD MEDIA")
		return Response{Reply: ReplyNoMediaExpected, Status: StatusRejected}
	}
	if string(expected) != string(msg.Kind) {
		r.logger.DebugContext(ctx, "Media kind mismatch", "expected", expected, "received", msg.Kind)
		return Response{Reply: replyMediaMismatch(expected, string(msg.Kind)), Status: StatusRejected}
	}
	if msg.Media == nil || msg.Media.ID == "" {
		return Response{Reply: ReplyMediaMissingRef, Status: StatusRejected}
	}

	lessonID := st.ActiveLessonID()

	media, err := r.messenger.DownloadMedia(ctx, *msg.Media)
	if err != nil {
		r.collaboratorFailed(ctx, "download_media", err)
		return Response{Reply: ReplyDownloadFailed, Status: StatusError}
	}

	filename := msg.Media.Filename
	if filename == "" {
		filename = media.Filename
	}
	url, err := r.store.UploadMedia(ctx, lessonID, filename, media.Data, media.MimeType)
	if err != nil {
		r.collaboratorFailed(ctx, "upload_media", err)
		return Response{Reply: ReplyUploadFailed, Status: StatusError}
	}

	if err := r.store.AddMediaEntry(ctx, lessonID, expected, url, msg.Media.Caption); err != nil {
		r.collaboratorFailed(ctx, "add_media_entry", err)
		return Response{Reply: ReplyRecordFailed, Status: StatusError}
	}

	st.MediaAttached()
	r.saveMarker(ctx, st)

	r.logger.InfoContext(ctx, "Media attached", "lesson_id", lessonID, "kind", expected, "url", url)
	return Response{Reply: replyMediaAttached(expected), Status: StatusOK}
}
