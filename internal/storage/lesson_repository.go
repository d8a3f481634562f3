package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
	"github.com/garyellow/lessonbot-go/internal/lesson"
)

// CreateLesson inserts a draft lesson authored by author.
func (db *DB) CreateLesson(ctx context.Context, title, level, topic, author string) (*lesson.Lesson, error) {
	query := `
		INSERT INTO lessons (id, title, level, topic, author_phone, status, body_md, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)
	`

	now := db.now().UTC().Truncate(time.Second)
	l := &lesson.Lesson{
		ID:          uuid.NewString(),
		Title:       title,
		Level:       level,
		Topic:       topic,
		AuthorPhone: author,
		Status:      lesson.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		l.ID, l.Title, l.Level, l.Topic, l.AuthorPhone, string(l.Status), now.Unix(), now.Unix())
	if err != nil {
		return nil, fail(ctx, "create_lesson", err, "title", title)
	}
	warnSlow(ctx, "create_lesson", start)

	return l, nil
}

// GetLesson returns the lesson or (nil, nil) when it does not exist.
func (db *DB) GetLesson(ctx context.Context, id string) (*lesson.Lesson, error) {
	return getLesson(ctx, db.conn, id)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getLesson(ctx context.Context, q queryer, id string) (*lesson.Lesson, error) {
	query := `
		SELECT id, title, level, topic, author_phone, status, body_md, slug, created_at, updated_at
		FROM lessons WHERE id = ?
	`

	var (
		l                    lesson.Lesson
		status               string
		slug                 sql.NullString
		createdAt, updatedAt int64
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Title, &l.Level, &l.Topic, &l.AuthorPhone,
		&status, &l.BodyMarkdown, &slug, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail(ctx, "get_lesson", err, "lesson_id", id)
	}

	l.Status = lesson.Status(status)
	l.Slug = slug.String
	l.CreatedAt = time.Unix(createdAt, 0).UTC()
	l.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &l, nil
}

// AppendLessonBody sanitizes markdown and appends it to the stored body,
// separated by a blank line. Read and write share one transaction.
func (db *DB) AppendLessonBody(ctx context.Context, id, markdown string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		l, err := getLesson(ctx, tx, id)
		if err != nil {
			return err
		}
		if l == nil {
			return domerrors.NewWrapper(module, "append_body").Wrap(
				fmt.Errorf("lesson %s: %w", id, domerrors.ErrNotFound), "lesson not found")
		}

		body := lesson.AppendBody(l.BodyMarkdown, markdown)
		_, err = tx.ExecContext(ctx,
			`UPDATE lessons SET body_md = ?, updated_at = ? WHERE id = ?`,
			body, db.now().UTC().Unix(), id)
		if err != nil {
			return fail(ctx, "append_body", err, "lesson_id", id)
		}
		return nil
	})
}

// AddQuiz stores a three-option question. Options are kept as a JSON array.
func (db *DB) AddQuiz(ctx context.Context, id, prompt string, options [3]string, answerIndex int) error {
	if answerIndex < 0 || answerIndex > 2 {
		return domerrors.NewValidationError("answer_index", fmt.Sprintf("must be 0..2, got %d", answerIndex))
	}

	encoded, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("encode quiz options: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO quizzes (lesson_id, prompt, options, answer_idx, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, prompt, string(encoded), answerIndex, db.now().UTC().Unix())
	if err != nil {
		return fail(ctx, "add_quiz", err, "lesson_id", id)
	}
	return nil
}

// AddMediaEntry records an uploaded attachment.
func (db *DB) AddMediaEntry(ctx context.Context, id string, kind lesson.MediaKind, url, caption string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO lesson_media (lesson_id, kind, url, caption, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), url, nullString(caption), db.now().UTC().Unix())
	if err != nil {
		return fail(ctx, "add_media_entry", err, "lesson_id", id, "kind", kind)
	}
	return nil
}

// ListQuizzes returns the quizzes of a lesson in insertion order.
func (db *DB) ListQuizzes(ctx context.Context, id string) ([]lesson.Quiz, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, lesson_id, prompt, options, answer_idx, created_at FROM quizzes WHERE lesson_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fail(ctx, "list_quizzes", err, "lesson_id", id)
	}
	defer rows.Close()

	var quizzes []lesson.Quiz
	for rows.Next() {
		var (
			q         lesson.Quiz
			options   string
			createdAt int64
		)
		if err := rows.Scan(&q.ID, &q.LessonID, &q.Prompt, &options, &q.AnswerIndex, &createdAt); err != nil {
			return nil, fail(ctx, "list_quizzes", err, "lesson_id", id)
		}
		if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
			return nil, fmt.Errorf("decode quiz %d options: %w", q.ID, err)
		}
		q.CreatedAt = time.Unix(createdAt, 0).UTC()
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// ListMedia returns the attachments of a lesson in insertion order.
func (db *DB) ListMedia(ctx context.Context, id string) ([]lesson.MediaEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, lesson_id, kind, url, caption, created_at FROM lesson_media WHERE lesson_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fail(ctx, "list_media", err, "lesson_id", id)
	}
	defer rows.Close()

	var entries []lesson.MediaEntry
	for rows.Next() {
		var (
			e         lesson.MediaEntry
			kind      string
			caption   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.LessonID, &kind, &e.URL, &caption, &createdAt); err != nil {
			return nil, fail(ctx, "list_media", err, "lesson_id", id)
		}
		e.Kind = lesson.MediaKind(kind)
		e.Caption = caption.String
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
