package bot

import (
	"fmt"

	"github.com/garyellow/lessonbot-go/internal/lesson"
)

// User-facing replies.
const (
	ReplySlowDown        = "Please slow down. Let's continue in a minute."
	ReplyGenericError    = "Something went wrong. Please try again."
	ReplyStateSaveFailed = "Could not save your session. Please try again."
	ReplyNoActiveLesson  = "No active lesson. Use NEW LESSON first."

	ReplyCreateFailed = "Could not create a lesson right now. Please try again."
	ReplyBodyUpdated  = "Updated the lesson body."
	ReplyBodyFailed   = "Could not update the lesson body. Please retry."
	ReplyQuizAdded    = "Quiz added to the lesson."
	ReplyQuizFailed   = "Could not add the quiz. Please retry."

	ReplyNoMediaExpected  = "No media expected. Use ADD MEDIA first."
	ReplyMediaMissingRef  = "Media payload missing reference. Please resend."
	ReplyDownloadFailed   = "Could not download that media. Please try again."
	ReplyUploadFailed     = "Could not store the media. Please try again."
	ReplyRecordFailed     = "Media uploaded but could not record it. Please retry later."
	ReplyLoadLessonFailed = "Could not load the lesson. Please try again."
	ReplyPublishFailed    = "Failed to publish. Please try again."
	ReplyCancelled        = "Draft cleared. Ready for the next lesson."

	// ReplyDraftCreatedPrefix starts the NEW LESSON confirmation.
	ReplyDraftCreatedPrefix = "Draft lesson created"
)

func replyDraftCreated(l *lesson.Lesson) string {
	return fmt.Sprintf("%s: %s\nLesson ID: %s", ReplyDraftCreatedPrefix, l.Title, l.ID)
}

func replyAwaitMedia(kind lesson.MediaKind) string {
	return fmt.Sprintf("Okay! Send the %s you want to attach.", kind)
}

func replyMediaMismatch(expected lesson.MediaKind, got string) string {
	return fmt.Sprintf("Expected a %s but received %s. Send ADD MEDIA again if needed.", expected, got)
}

func replyMediaAttached(kind lesson.MediaKind) string {
	return fmt.Sprintf("Attached %s to the lesson.", kind)
}

func replyPublished(slug string) string {
	return fmt.Sprintf("Published! %s\n(Site will refresh shortly.)", lesson.Path(slug))
}
