package command

import (
	"strings"
	"testing"

	"github.com/garyellow/lessonbot-go/internal/lesson"
)

func TestParse_NewLesson(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  NewLesson
	}{
		{
			name:  "canonical",
			input: "NEW LESSON: Solar System | Level: Grade 6 | Topic: Science",
			want:  NewLesson{Title: "Solar System", Level: "Grade 6", Topic: "Science"},
		},
		{
			name:  "lower case with padding",
			input: " new lesson: Fractions | level: Grade 4 | topic: Math ",
			want:  NewLesson{Title: "Fractions", Level: "Grade 4", Topic: "Math"},
		},
		{
			name:  "no colons",
			input: "New Lesson Rain Cycle | Level Grade 5 | Topic Science",
			want:  NewLesson{Title: "Rain Cycle", Level: "Grade 5", Topic: "Science"},
		},
		{
			name:  "labels omitted",
			input: "NEW LESSON: Verbs | A2 | English",
			want:  NewLesson{Title: "Verbs", Level: "A2", Topic: "English"},
		},
		{
			name:  "extra internal whitespace",
			input: "NEW   LESSON :   Rain Cycle   |   LEVEL :  Grade 5  |  TOPIC:   Science  ",
			want:  NewLesson{Title: "Rain Cycle", Level: "Grade 5", Topic: "Science"},
		},
		{
			name:  "topic keeps further pipes",
			input: "NEW LESSON: Logic | Level: 9 | Topic: A | B",
			want:  NewLesson{Title: "Logic", Level: "9", Topic: "A | B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tt.input).(NewLesson)
			if !ok {
				t.Fatalf("Parse(%q) = %#v, want NewLesson", tt.input, Parse(tt.input))
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_NewLessonMissingFields(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"NEW LESSON:",
		"NEW LESSON: Only Title",
		"NEW LESSON: Title | Level: 5",
		"NEW LESSON:  | Level: 5 | Topic: Math",
		"NEW LESSON: Title | Level: | Topic: Math",
		"NEW LESSON: Title | Level: 5 | Topic:   ",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			assertUnknown(t, input, ReasonNewLessonShape)
		})
	}
}

func TestParse_AddBody(t *testing.T) {
	t.Parallel()

	got, ok := Parse("ADD BODY: # Heading\nContent\n\n- bullet").(AddBody)
	if !ok {
		t.Fatal("expected AddBody")
	}
	if got.Body != "# Heading\nContent\n\n- bullet" {
		t.Errorf("Body = %q", got.Body)
	}

	got, ok = Parse("add body   Plain text  ").(AddBody)
	if !ok || got.Body != "Plain text" {
		t.Errorf("Parse without colon = %#v", got)
	}

	got, ok = Parse("ADD BODYtext").(AddBody)
	if !ok || got.Body != "text" {
		t.Errorf("Parse without separator = %#v", Parse("ADD BODYtext"))
	}

	assertUnknown(t, "ADD BODY:", ReasonAddBodyEmpty)
	assertUnknown(t, "add body :   \n  ", ReasonAddBodyEmpty)
}

func TestParse_AddQuiz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		answer string
		want   int
	}{
		{"A", 0},
		{"a", 0},
		{"B", 1},
		{"b", 1},
		{"C", 2},
		{"c", 2},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			t.Parallel()
			input := `ADD QUIZ: "What is 2+2?" | A) 4 | B) 5 | C) 6 | ANS: ` + tt.answer
			got, ok := Parse(input).(AddQuiz)
			if !ok {
				t.Fatalf("Parse(%q) = %#v, want AddQuiz", input, Parse(input))
			}
			if got.Prompt != "What is 2+2?" {
				t.Errorf("Prompt = %q", got.Prompt)
			}
			if got.Options != [3]string{"4", "5", "6"} {
				t.Errorf("Options = %q", got.Options)
			}
			if got.AnswerIndex != tt.want {
				t.Errorf("AnswerIndex = %d, want %d", got.AnswerIndex, tt.want)
			}
		})
	}
}

func TestParse_AddQuizVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  AddQuiz
	}{
		{
			name:  "no colons, lower case",
			input: `add quiz "Capital of France?" | a) Paris | b) Rome | c) Madrid | ans b`,
			want:  AddQuiz{Prompt: "Capital of France?", Options: [3]string{"Paris", "Rome", "Madrid"}, AnswerIndex: 1},
		},
		{
			name:  "smart quotes and nbsp",
			input: "ADD QUIZ:\u00a0“Largest planet?” | A) Mars | B) Jupiter | C) Venus | ANS: B",
			want:  AddQuiz{Prompt: "Largest planet?", Options: [3]string{"Mars", "Jupiter", "Venus"}, AnswerIndex: 1},
		},
		{
			name:  "multi word options",
			input: `ADD QUIZ: "Water boils at?" | A) 100 degrees C | B) 50 degrees C | C) 0 degrees C | ANS: A`,
			want:  AddQuiz{Prompt: "Water boils at?", Options: [3]string{"100 degrees C", "50 degrees C", "0 degrees C"}, AnswerIndex: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tt.input).(AddQuiz)
			if !ok {
				t.Fatalf("Parse(%q) = %#v, want AddQuiz", tt.input, Parse(tt.input))
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_AddQuizInvalid(t *testing.T) {
	t.Parallel()

	assertUnknown(t, `ADD QUIZ: "Q?" | A) one | B)  | C) three | ANS: A`, ReasonQuizOptions)
	assertUnknown(t, `ADD QUIZ: "Q?" | A) | B) two | C) three | ANS: C`, ReasonQuizOptions)

	// Structurally malformed quizzes fall through to the generic reason.
	assertUnknown(t, `ADD QUIZ: Q? | A) one | B) two | C) three | ANS: A`, ReasonUnknown)
	assertUnknown(t, `ADD QUIZ: "Q?" | A) one | B) two | ANS: A`, ReasonUnknown)
	assertUnknown(t, `ADD QUIZ: "Q?" | A) one | B) two | C) three | ANS: D`, ReasonUnknown)
}

func TestParse_AddMedia(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  lesson.MediaKind
	}{
		{"ADD MEDIA: image", lesson.MediaImage},
		{"add media audio", lesson.MediaAudio},
		{"  Add Media :  VIDEO ", lesson.MediaVideo},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.input).(AddMedia)
		if !ok || got.Kind != tt.want {
			t.Errorf("Parse(%q) = %#v, want AddMedia{%s}", tt.input, Parse(tt.input), tt.want)
		}
	}

	assertUnknown(t, "ADD MEDIA: document", ReasonUnknown)
	assertUnknown(t, "ADD MEDIA: image please", ReasonUnknown)
}

func TestParse_BareWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"help", NameHelp},
		{"  HELP  ", NameHelp},
		{"publish", NamePublish},
		{"Publish\n", NamePublish},
		{"CANCEL", NameCancel},
		{"cancel ", NameCancel},
		{"help me", NameUnknown},
		{"publish now", NameUnknown},
	}
	for _, tt := range tests {
		if got := Parse(tt.input).Name(); got != tt.want {
			t.Errorf("Parse(%q).Name() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParse_EmptyAndUnknown(t *testing.T) {
	t.Parallel()

	assertUnknown(t, "", ReasonEmpty)
	assertUnknown(t, "   ", ReasonEmpty)
	assertUnknown(t, "\n\t", ReasonEmpty)
	assertUnknown(t, "xyz", ReasonUnknown)
	assertUnknown(t, "something random", ReasonUnknown)
}

func TestCheatSheet(t *testing.T) {
	t.Parallel()

	if !strings.HasPrefix(CheatSheet, CheatSheetHeader) {
		t.Errorf("CheatSheet should start with %q", CheatSheetHeader)
	}
	for _, keyword := range []string{"HELP", "NEW LESSON", "ADD BODY", "ADD QUIZ", "ADD MEDIA", "PUBLISH", "CANCEL"} {
		if !strings.Contains(CheatSheet, keyword) {
			t.Errorf("CheatSheet missing %s", keyword)
		}
	}
}

func TestCommandNames(t *testing.T) {
	t.Parallel()

	commands := map[Command]string{
		Help{}:      "help",
		NewLesson{}: "new_lesson",
		AddBody{}:   "add_body",
		AddQuiz{}:   "add_quiz",
		AddMedia{}:  "add_media",
		Publish{}:   "publish",
		Cancel{}:    "cancel",
		Unknown{}:   "unknown",
	}
	for cmd, want := range commands {
		if got := cmd.Name(); got != want {
			t.Errorf("%T.Name() = %q, want %q", cmd, got, want)
		}
	}
}

func assertUnknown(t *testing.T, input, reason string) {
	t.Helper()
	got, ok := Parse(input).(Unknown)
	if !ok {
		t.Errorf("Parse(%q) = %#v, want Unknown", input, Parse(input))
		return
	}
	if got.Reason != reason {
		t.Errorf("Parse(%q).Reason = %q, want %q", input, got.Reason, reason)
	}
}
