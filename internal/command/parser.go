package command

import (
	"regexp"
	"strings"

	"github.com/garyellow/lessonbot-go/internal/lesson"
)

// Patterns are case-insensitive and accept an optional colon after the keyword.
// Keywords need no separator from their payload ("ADD BODYtext").
// WhatsApp clients often insert non-breaking spaces and smart quotes, so the
// quiz pattern accepts both.
var (
	helpPattern      = regexp.MustCompile(`(?i)^\s*help\s*$`)
	newLessonPattern = regexp.MustCompile(`(?is)^\s*new\s*lesson\s*:?\s*(.*)$`)
	levelLabel       = regexp.MustCompile(`(?i)^level\b\s*:?\s*`)
	topicLabel       = regexp.MustCompile(`(?i)^topic\b\s*:?\s*`)
	addBodyPattern   = regexp.MustCompile(`(?is)^\s*add\s*body\s*:?(.*)$`)
	addQuizPattern   = regexp.MustCompile(`(?is)^\s*add\s*quiz\s*:?[\s\x{00A0}]*` +
		`["“”](.+?)["“”]\s*` +
		`\|\s*A\)\s*([^|]*?)\s*` +
		`\|\s*B\)\s*([^|]*?)\s*` +
		`\|\s*C\)\s*([^|]*?)\s*` +
		`\|\s*ANS\s*:?[\s\x{00A0}]*([ABC])\s*$`)
	addMediaPattern = regexp.MustCompile(`(?i)^\s*add\s*media\s*:?\s*(image|audio|video)\s*$`)
	publishPattern  = regexp.MustCompile(`(?i)^\s*publish\s*$`)
	cancelPattern   = regexp.MustCompile(`(?i)^\s*cancel\s*$`)
)

// Parse converts raw message text into a Command.
// Rules are tried in a fixed order and the first match wins.
func Parse(raw string) Command {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Unknown{Reason: ReasonEmpty}
	}

	if helpPattern.MatchString(text) {
		return Help{}
	}

	if m := newLessonPattern.FindStringSubmatch(text); m != nil {
		return parseNewLesson(m[1])
	}

	if m := addBodyPattern.FindStringSubmatch(text); m != nil {
		body := strings.TrimSpace(m[1])
		if body == "" {
			return Unknown{Reason: ReasonAddBodyEmpty}
		}
		return AddBody{Body: body}
	}

	if m := addQuizPattern.FindStringSubmatch(text); m != nil {
		return parseQuiz(m)
	}

	if m := addMediaPattern.FindStringSubmatch(text); m != nil {
		kind, _ := lesson.ParseMediaKind(m[1])
		return AddMedia{Kind: kind}
	}

	if publishPattern.MatchString(text) {
		return Publish{}
	}

	if cancelPattern.MatchString(text) {
		return Cancel{}
	}

	return Unknown{Reason: ReasonUnknown}
}

// parseNewLesson splits "<title> | Level: <level> | Topic: <topic>".
// The topic keeps any further pipes.
func parseNewLesson(rest string) Command {
	parts := strings.SplitN(rest, "|", 3)
	if len(parts) < 3 {
		return Unknown{Reason: ReasonNewLessonShape}
	}

	title := strings.TrimSpace(parts[0])
	level := strings.TrimSpace(levelLabel.ReplaceAllString(strings.TrimSpace(parts[1]), ""))
	topic := strings.TrimSpace(topicLabel.ReplaceAllString(strings.TrimSpace(parts[2]), ""))
	if title == "" || level == "" || topic == "" {
		return Unknown{Reason: ReasonNewLessonShape}
	}

	return NewLesson{Title: title, Level: level, Topic: topic}
}

func parseQuiz(m []string) Command {
	quiz := AddQuiz{
		Prompt: strings.TrimSpace(m[1]),
		Options: [3]string{
			strings.TrimSpace(m[2]),
			strings.TrimSpace(m[3]),
			strings.TrimSpace(m[4]),
		},
		AnswerIndex: int(strings.ToUpper(m[5])[0] - 'A'),
	}
	for _, opt := range quiz.Options {
		if opt == "" {
			return Unknown{Reason: ReasonQuizOptions}
		}
	}
	return quiz
}
