// Package command turns lesson author text messages into structured commands.
package command

import "github.com/garyellow/lessonbot-go/internal/lesson"

// Command names, also stored as the chat state marker.
const (
	NameHelp      = "help"
	NameNewLesson = "new_lesson"
	NameAddBody   = "add_body"
	NameAddQuiz   = "add_quiz"
	NameAddMedia  = "add_media"
	NamePublish   = "publish"
	NameCancel    = "cancel"
	NameUnknown   = "unknown"
)

// Command is a parsed author instruction. The concrete type is one of the
// variants below; a Command is never partially populated.
type Command interface {
	Name() string
	command()
}

// Help asks for the cheat sheet.
type Help struct{}

// NewLesson starts a new draft lesson.
type NewLesson struct {
	Title string
	Level string
	Topic string
}

// AddBody appends markdown to the active draft.
type AddBody struct {
	Body string
}

// AddQuiz adds a multiple choice question to the active draft.
type AddQuiz struct {
	Prompt      string
	Options     [3]string
	AnswerIndex int // 0..2
}

// AddMedia announces that the next media message should be attached.
type AddMedia struct {
	Kind lesson.MediaKind
}

// Publish publishes the active draft.
type Publish struct{}

// Cancel forgets the active draft.
type Cancel struct{}

// Unknown is any text that did not parse; Reason is shown to the sender.
type Unknown struct {
	Reason string
}

func (Help) Name() string      { return NameHelp }
func (NewLesson) Name() string { return NameNewLesson }
func (AddBody) Name() string   { return NameAddBody }
func (AddQuiz) Name() string   { return NameAddQuiz }
func (AddMedia) Name() string  { return NameAddMedia }
func (Publish) Name() string   { return NamePublish }
func (Cancel) Name() string    { return NameCancel }
func (Unknown) Name() string   { return NameUnknown }

func (Help) command()      {}
func (NewLesson) command() {}
func (AddBody) command()   {}
func (AddQuiz) command()   {}
func (AddMedia) command()  {}
func (Publish) command()   {}
func (Cancel) command()    {}
func (Unknown) command()   {}

// CheatSheet lists every command. It is the HELP reply.
const CheatSheet = "Lesson Bot commands:\n" +
	"HELP — show this list.\n" +
	"NEW LESSON: <title> | Level: <level> | Topic: <topic>\n" +
	"ADD BODY: <markdown body>\n" +
	"ADD QUIZ: \"<prompt>\" | A) option | B) option | C) option | ANS: <A|B|C>\n" +
	"ADD MEDIA: image|audio|video\n" +
	"PUBLISH — publish the draft lesson.\n" +
	"CANCEL — forget the active lesson."

// CheatSheetHeader is the first line of CheatSheet.
const CheatSheetHeader = "Lesson Bot commands:"

// Reasons carried by Unknown.
const (
	ReasonEmpty          = "Empty message."
	ReasonNewLessonShape = "NEW LESSON requires title, level, and topic."
	ReasonAddBodyEmpty   = "ADD BODY requires markdown content."
	ReasonQuizOptions    = "ADD QUIZ requires three answer options."
	ReasonUnknown        = "Unknown command. Send HELP for a cheat-sheet."
)
