// Package session holds the per-sender chat state: which draft lesson the
// sender is editing and whether the bot is waiting for a media upload.
package session

import (
	"time"

	"github.com/garyellow/lessonbot-go/internal/lesson"
)

// MarkerMediaAttached is recorded after a successful media upload.
const MarkerMediaAttached = "media_attached"

// Mode is one of Idle, Drafting or AwaitingMedia.
type Mode interface {
	mode()
}

// Idle means no draft is active.
type Idle struct{}

// Drafting means LessonID is the active draft.
type Drafting struct {
	LessonID string
}

// AwaitingMedia means the next media message is attached to LessonID.
type AwaitingMedia struct {
	LessonID string
	Kind     lesson.MediaKind
}

func (Idle) mode()          {}
func (Drafting) mode()      {}
func (AwaitingMedia) mode() {}

// State is the session record persisted per sender.
type State struct {
	Sender    string
	Mode      Mode
	Marker    string // Name of the last handled command
	UpdatedAt time.Time
}

// New returns the default state for a sender seen for the first time.
func New(sender string) *State {
	return &State{Sender: sender, Mode: Idle{}}
}

// ActiveLessonID returns the draft being edited, or "" when idle.
func (s *State) ActiveLessonID() string {
	switch m := s.Mode.(type) {
	case Drafting:
		return m.LessonID
	case AwaitingMedia:
		return m.LessonID
	default:
		return ""
	}
}

// ExpectedMedia reports the media kind the bot is waiting for.
func (s *State) ExpectedMedia() (lesson.MediaKind, bool) {
	if m, ok := s.Mode.(AwaitingMedia); ok {
		return m.Kind, true
	}
	return "", false
}

// StartDraft makes lessonID the active draft.
func (s *State) StartDraft(lessonID, marker string) {
	s.Mode = Drafting{LessonID: lessonID}
	s.Marker = marker
}

// AwaitMedia switches to waiting for a media message of the given kind.
// It is a no-op when there is no active draft.
func (s *State) AwaitMedia(kind lesson.MediaKind, marker string) bool {
	id := s.ActiveLessonID()
	if id == "" {
		return false
	}
	s.Mode = AwaitingMedia{LessonID: id, Kind: kind}
	s.Marker = marker
	return true
}

// MediaAttached returns to plain drafting after an upload.
func (s *State) MediaAttached() {
	if id := s.ActiveLessonID(); id != "" {
		s.Mode = Drafting{LessonID: id}
	}
	s.Marker = MarkerMediaAttached
}

// Clear forgets the active draft.
func (s *State) Clear(marker string) {
	s.Mode = Idle{}
	s.Marker = marker
}

// Mark records the last command. The marker is a single slot, so any
// command other than ADD MEDIA ends a pending media expectation.
func (s *State) Mark(marker string) {
	if m, ok := s.Mode.(AwaitingMedia); ok {
		s.Mode = Drafting{LessonID: m.LessonID}
	}
	s.Marker = marker
}

// Columns flattens the mode into the two persisted columns.
// Empty strings stand for NULL.
func (s *State) Columns() (activeLesson, awaitingKind string) {
	switch m := s.Mode.(type) {
	case Drafting:
		return m.LessonID, ""
	case AwaitingMedia:
		return m.LessonID, string(m.Kind)
	default:
		return "", ""
	}
}

// FromColumns rebuilds a State from persisted columns. An awaiting kind
// without an active lesson, or an unrecognized kind, degrades gracefully.
func FromColumns(sender, activeLesson, awaitingKind, marker string, updatedAt time.Time) *State {
	s := &State{Sender: sender, Marker: marker, UpdatedAt: updatedAt}

	switch {
	case activeLesson == "":
		s.Mode = Idle{}
	case awaitingKind != "":
		if kind, ok := lesson.ParseMediaKind(awaitingKind); ok {
			s.Mode = AwaitingMedia{LessonID: activeLesson, Kind: kind}
		} else {
			s.Mode = Drafting{LessonID: activeLesson}
		}
	default:
		s.Mode = Drafting{LessonID: activeLesson}
	}
	return s
}
