package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
	"github.com/garyellow/lessonbot-go/internal/lesson"
	"github.com/garyellow/lessonbot-go/internal/logger"
	"github.com/garyellow/lessonbot-go/internal/metrics"
	"github.com/garyellow/lessonbot-go/internal/revalidate"
	"github.com/garyellow/lessonbot-go/internal/session"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

const testSender = "15551234567"

type sentMessage struct {
	To   string
	Text string
}

type fakeMessenger struct {
	mu          sync.Mutex
	sent        []sentMessage
	downloads   []whatsapp.MediaRef
	media       *whatsapp.Media
	downloadErr error
}

func (f *fakeMessenger) SendText(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{To: to, Text: text})
	return nil
}

func (f *fakeMessenger) DownloadMedia(_ context.Context, ref whatsapp.MediaRef) (*whatsapp.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, ref)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if f.media != nil {
		return f.media, nil
	}
	return &whatsapp.Media{Data: []byte("bytes"), MimeType: "image/jpeg", Filename: ref.ID + ".jpg"}, nil
}

func (f *fakeMessenger) replies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

func (f *fakeMessenger) lastReply() string {
	r := f.replies()
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

type createCall struct {
	Title, Level, Topic, Author string
}

type mediaEntry struct {
	LessonID string
	Kind     lesson.MediaKind
	URL      string
	Caption  string
}

type uploadCall struct {
	LessonID, Filename, MimeType string
}

type publishRecord struct {
	LessonID string
	Channel  string
	Result   json.RawMessage
}

// fakeStore is an in-memory Store. errs injects a failure per operation
// name; panicOn makes an operation panic.
type fakeStore struct {
	mu         sync.Mutex
	states     map[string]session.State
	lessons    map[string]*lesson.Lesson
	slugs      map[string]string // slug -> lesson id
	creates    []createCall
	bodies     map[string][]string
	quizzes    map[string]int
	media      []mediaEntry
	uploads    []uploadCall
	publishes  []publishRecord
	slugChecks []string
	mutations  int
	getStates  int
	errs       map[string]error
	panicOn    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:  map[string]session.State{},
		lessons: map[string]*lesson.Lesson{},
		slugs:   map[string]string{},
		bodies:  map[string][]string{},
		quizzes: map[string]int{},
		errs:    map[string]error{},
	}
}

// enter records the call and returns an injected error.
func (s *fakeStore) enter(op string, mutation bool) error {
	if s.panicOn == op {
		panic("fake store panic in " + op)
	}
	if mutation {
		s.mutations++
	}
	return s.errs[op]
}

func (s *fakeStore) GetState(_ context.Context, sender string) (*session.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getStates++
	if err := s.enter("get_state", false); err != nil {
		return nil, err
	}
	if st, ok := s.states[sender]; ok {
		return &st, nil
	}
	return session.New(sender), nil
}

func (s *fakeStore) SaveState(_ context.Context, st *session.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("save_state", true); err != nil {
		return err
	}
	s.states[st.Sender] = *st
	return nil
}

func (s *fakeStore) state(sender string) (session.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sender]
	return st, ok
}

func (s *fakeStore) seed(st session.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.Sender] = st
}

func (s *fakeStore) addLesson(l *lesson.Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = l
	if l.Slug != "" {
		s.slugs[l.Slug] = l.ID
	}
}

func (s *fakeStore) CreateLesson(_ context.Context, title, level, topic, author string) (*lesson.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("create_lesson", true); err != nil {
		return nil, err
	}
	s.creates = append(s.creates, createCall{title, level, topic, author})
	l := &lesson.Lesson{
		ID:          fmt.Sprintf("lesson-%d", len(s.lessons)+1),
		Title:       title,
		Level:       level,
		Topic:       topic,
		AuthorPhone: author,
		Status:      lesson.StatusDraft,
	}
	s.lessons[l.ID] = l
	return l, nil
}

func (s *fakeStore) GetLesson(_ context.Context, id string) (*lesson.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("get_lesson", false); err != nil {
		return nil, err
	}
	l, ok := s.lessons[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *fakeStore) AppendLessonBody(_ context.Context, id, markdown string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("append_body", true); err != nil {
		return err
	}
	s.bodies[id] = append(s.bodies[id], markdown)
	return nil
}

func (s *fakeStore) AddQuiz(_ context.Context, id, _ string, _ [3]string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("add_quiz", true); err != nil {
		return err
	}
	s.quizzes[id]++
	return nil
}

func (s *fakeStore) AddMediaEntry(_ context.Context, id string, kind lesson.MediaKind, url, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("add_media_entry", true); err != nil {
		return err
	}
	s.media = append(s.media, mediaEntry{id, kind, url, caption})
	return nil
}

func (s *fakeStore) SlugExists(_ context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("slug_exists", false); err != nil {
		return false, err
	}
	s.slugChecks = append(s.slugChecks, slug)
	_, ok := s.slugs[slug]
	return ok, nil
}

func (s *fakeStore) PublishLesson(_ context.Context, id, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("publish_lesson", true); err != nil {
		return err
	}
	if owner, ok := s.slugs[slug]; ok && owner != id {
		return domerrors.NewWrapper("storage", "publish_lesson").Wrap(domerrors.ErrSlugTaken, "slug already taken")
	}
	l, ok := s.lessons[id]
	if !ok {
		return domerrors.ErrNotFound
	}
	l.Slug = slug
	l.Status = lesson.StatusPublished
	s.slugs[slug] = id
	return nil
}

func (s *fakeStore) RecordPublish(_ context.Context, id, channel string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("record_publish", true); err != nil {
		return err
	}
	s.publishes = append(s.publishes, publishRecord{id, channel, result})
	return nil
}

func (s *fakeStore) UploadMedia(_ context.Context, lessonID, filename string, _ []byte, mimeType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("upload_media", true); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, uploadCall{lessonID, filename, mimeType})
	return "https://media.example.com/" + lessonID + "/" + filename, nil
}

type fakeRevalidator struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeRevalidator) Trigger(_ context.Context, paths []string) []revalidate.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), paths...))
	results := make([]revalidate.Result, 0, len(paths))
	for _, p := range paths {
		results = append(results, revalidate.Result{Path: p, Status: http.StatusOK, Body: json.RawMessage(`{"revalidated":true}`)})
	}
	return results
}

type fakeLimiter struct {
	deny bool
}

func (f fakeLimiter) Allow(string) bool { return !f.deny }

type harness struct {
	router      *Router
	messenger   *fakeMessenger
	store       *fakeStore
	revalidator *fakeRevalidator
	metrics     *metrics.Metrics
}

func newHarness(t *testing.T, opts ...func(*RouterConfig)) *harness {
	t.Helper()
	h := &harness{
		messenger:   &fakeMessenger{},
		store:       newFakeStore(),
		revalidator: &fakeRevalidator{},
		metrics:     metrics.New(prometheus.NewRegistry()),
	}
	cfg := RouterConfig{
		Messenger:   h.messenger,
		Store:       h.store,
		Revalidator: h.revalidator,
		Limiter:     fakeLimiter{},
		Logger:      logger.NewWithWriter("debug", io.Discard),
		Metrics:     h.metrics,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.router = NewRouter(cfg)
	return h
}

func (h *harness) text(body string) {
	h.router.HandleMessage(context.Background(), whatsapp.Message{
		Sender: testSender, ID: "wamid.test", Kind: whatsapp.KindText, Text: body,
	})
}

func (h *harness) sendMedia(kind whatsapp.Kind, ref *whatsapp.MediaRef) {
	h.router.HandleMessage(context.Background(), whatsapp.Message{
		Sender: testSender, ID: "wamid.media", Kind: kind, Media: ref,
	})
}

var errBoom = errors.New("boom")
