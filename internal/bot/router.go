package bot

import (
	"context"
	"strings"

	"github.com/garyellow/lessonbot-go/internal/command"
	"github.com/garyellow/lessonbot-go/internal/ctxutil"
	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
	"github.com/garyellow/lessonbot-go/internal/logger"
	"github.com/garyellow/lessonbot-go/internal/metrics"
	"github.com/garyellow/lessonbot-go/internal/sentry"
	"github.com/garyellow/lessonbot-go/internal/session"
	"github.com/garyellow/lessonbot-go/internal/whatsapp"
)

// Router is the chat state machine. It holds no per-sender state of its
// own; sessions are loaded from the store for every message.
type Router struct {
	messenger   Messenger
	store       Store
	revalidator Revalidator
	limiter     Limiter
	allowed     map[string]struct{} // empty allows everyone
	logger      *logger.Logger
	metrics     *metrics.Metrics
	handle      HandlerFunc
}

// RouterConfig holds the collaborators of a Router.
type RouterConfig struct {
	Messenger      Messenger
	Store          Store
	Revalidator    Revalidator
	Limiter        Limiter
	AllowedSenders []string
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) *Router {
	allowed := make(map[string]struct{}, len(cfg.AllowedSenders))
	for _, s := range cfg.AllowedSenders {
		if s = normalizeSender(s); s != "" {
			allowed[s] = struct{}{}
		}
	}

	r := &Router{
		messenger:   cfg.Messenger,
		store:       cfg.Store,
		revalidator: cfg.Revalidator,
		limiter:     cfg.Limiter,
		allowed:     allowed,
		logger:      cfg.Logger.WithModule("router"),
		metrics:     cfg.Metrics,
	}
	r.handle = Chain(r.dispatch,
		MetricsMiddleware(cfg.Metrics),
		RecoveryMiddleware(r.logger),
		LoggingMiddleware(r.logger),
	)
	return r
}

// HandleMessages routes messages in order.
func (r *Router) HandleMessages(ctx context.Context, messages []whatsapp.Message) {
	for _, msg := range messages {
		r.HandleMessage(ctx, msg)
	}
}

// HandleMessage routes one inbound message and sends at most one reply.
// Unauthorized senders get no reply at all.
func (r *Router) HandleMessage(ctx context.Context, msg whatsapp.Message) {
	ctx = ctxutil.WithSender(ctx, msg.Sender)
	if msg.ID != "" {
		ctx = ctxutil.WithMessageID(ctx, msg.ID)
	}

	if !r.authorized(msg.Sender) {
		r.logger.InfoContext(ctx, "Ignoring message from unauthorized sender",
			"masked_sender", sentry.MaskSender(msg.Sender))
		return
	}

	if !r.limiter.Allow(msg.Sender) {
		r.logger.WithError(domerrors.ErrRateLimitExceeded).WarnContext(ctx, "Dropping message")
		r.reply(ctx, msg.Sender, ReplySlowDown)
		return
	}

	state, err := r.store.GetState(ctx, msg.Sender)
	if err != nil {
		r.collaboratorFailed(ctx, "get_state", err)
		r.reply(ctx, msg.Sender, ReplyGenericError)
		return
	}

	req := Request{State: state, Message: msg}
	switch {
	case msg.Kind == whatsapp.KindText:
		req.Command = command.Parse(msg.Text)
	case msg.Kind.IsMedia():
	default:
		r.logger.DebugContext(ctx, "Ignoring unsupported message kind", "kind", msg.Kind)
		return
	}

	resp := r.handle(ctx, req)
	if resp.Reply != "" {
		r.reply(ctx, msg.Sender, resp.Reply)
	}
}

func (r *Router) dispatch(ctx context.Context, req Request) Response {
	st := req.State
	switch cmd := req.Command.(type) {
	case nil:
		return r.handleMedia(ctx, st, req.Message)
	case command.Help:
		st.Mark(command.NameHelp)
		r.saveMarker(ctx, st)
		return Response{Reply: command.CheatSheet, Status: StatusOK}
	case command.NewLesson:
		return r.handleNewLesson(ctx, st, cmd)
	case command.AddBody:
		return r.handleAddBody(ctx, st, cmd)
	case command.AddQuiz:
		return r.handleAddQuiz(ctx, st, cmd)
	case command.AddMedia:
		return r.handleAddMedia(ctx, st, cmd)
	case command.Publish:
		return r.handlePublish(ctx, st)
	case command.Cancel:
		st.Clear(command.NameCancel)
		if !r.saveTransition(ctx, st) {
			return Response{Reply: ReplyStateSaveFailed, Status: StatusError}
		}
		return Response{Reply: ReplyCancelled, Status: StatusOK}
	case command.Unknown:
		st.Mark(command.NameUnknown)
		r.saveMarker(ctx, st)
		return Response{Reply: cmd.Reason, Status: StatusInvalid}
	default:
		r.logger.ErrorContext(ctx, "Unhandled command type", "command", cmd.Name())
		return Response{Reply: ReplyGenericError, Status: StatusError}
	}
}

func (r *Router) handleNewLesson(ctx context.Context, st *session.State, cmd command.NewLesson) Response {
	created, err := r.store.CreateLesson(ctx, cmd.Title, cmd.Level, cmd.Topic, st.Sender)
	if err != nil || created == nil {
		r.collaboratorFailed(ctx, "create_lesson", err)
		return Response{Reply: ReplyCreateFailed, Status: StatusError}
	}

	st.StartDraft(created.ID, command.NameNewLesson)
	if !r.saveTransition(ctx, st) {
		return Response{Reply: ReplyStateSaveFailed, Status: StatusError}
	}

	r.logger.InfoContext(ctx, "Draft lesson created", "lesson_id", created.ID)
	return Response{Reply: replyDraftCreated(created), Status: StatusOK}
}

func (r *Router) handleAddBody(ctx context.Context, st *session.State, cmd command.AddBody) Response {
	id := st.ActiveLessonID()
	if id == "" {
		return r.noActiveLesson(ctx, command.NameAddBody)
	}

	if err := r.store.AppendLessonBody(ctx, id, cmd.Body); err != nil {
		r.collaboratorFailed(ctx, "append_body", err)
		return Response{Reply: ReplyBodyFailed, Status: StatusError}
	}

	st.Mark(command.NameAddBody)
	r.saveMarker(ctx, st)
	return Response{Reply: ReplyBodyUpdated, Status: StatusOK}
}

func (r *Router) handleAddQuiz(ctx context.Context, st *session.State, cmd command.AddQuiz) Response {
	id := st.ActiveLessonID()
	if id == "" {
		return r.noActiveLesson(ctx, command.NameAddQuiz)
	}

	if err := r.store.AddQuiz(ctx, id, cmd.Prompt, cmd.Options, cmd.AnswerIndex); err != nil {
		r.collaboratorFailed(ctx, "add_quiz", err)
		return Response{Reply: ReplyQuizFailed, Status: StatusError}
	}

	st.Mark(command.NameAddQuiz)
	r.saveMarker(ctx, st)
	return Response{Reply: ReplyQuizAdded, Status: StatusOK}
}

func (r *Router) handleAddMedia(ctx context.Context, st *session.State, cmd command.AddMedia) Response {
	if !st.AwaitMedia(cmd.Kind, command.NameAddMedia) {
		return r.noActiveLesson(ctx, command.NameAddMedia)
	}
	if !r.saveTransition(ctx, st) {
		return Response{Reply: ReplyStateSaveFailed, Status: StatusError}
	}
	return Response{Reply: replyAwaitMedia(cmd.Kind), Status: StatusOK}
}

func (r *Router) noActiveLesson(ctx context.Context, name string) Response {
	r.logger.DebugContext(ctx, "Command needs an active lesson", "command", name)
	return Response{Reply: ReplyNoActiveLesson, Status: StatusRejected}
}

// saveMarker persists a marker-only change. Failure is logged; the command
// itself already succeeded.
func (r *Router) saveMarker(ctx context.Context, st *session.State) {
	if err := r.store.SaveState(ctx, st); err != nil {
		r.collaboratorFailed(ctx, "save_state", err)
	}
}

// saveTransition persists a mode change and reports success.
func (r *Router) saveTransition(ctx context.Context, st *session.State) bool {
	if err := r.store.SaveState(ctx, st); err != nil {
		r.collaboratorFailed(ctx, "save_state", err)
		return false
	}
	return true
}

func (r *Router) reply(ctx context.Context, to, text string) {
	if err := r.messenger.SendText(ctx, to, text); err != nil {
		r.collaboratorFailed(ctx, "send_text", err)
	}
}

// collaboratorFailed logs, counts and reports a failed collaborator call.
// The module comes from a WrappedError in the chain when present.
func (r *Router) collaboratorFailed(ctx context.Context, operation string, err error) {
	module, op := domerrors.Origin(err)
	if module == "unknown" {
		module, op = "bot", operation
	}

	r.logger.ErrorContext(ctx, "Collaborator call failed",
		"collaborator", module,
		"operation", op,
		"detail", domerrors.GetUserMessage(err),
		"error", err)
	if r.metrics != nil {
		r.metrics.RecordCollaboratorError(module, op)
	}
	if err != nil {
		sentry.CaptureError(ctx, module, op, err)
	}
}

func (r *Router) authorized(sender string) bool {
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[normalizeSender(sender)]
	return ok
}

func normalizeSender(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "+")
}
