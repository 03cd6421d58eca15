package repository

import (
	"context"
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository persists the attempt activity log.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func eventPayload(ev model.AttemptEvent) string {
	if len(ev.Payload) == 0 {
		return "{}"
	}
	return string(ev.Payload)
}

// InsertBatch bulk-loads events with COPY.
func (r *EventRepository) InsertBatch(ctx context.Context, events []model.AttemptEvent) error {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []any{ev.AttemptID, ev.QuizID, ev.StudentID, string(ev.Type), eventPayload(ev), ev.CreatedAt})
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"attempt_events"},
		[]string{"attempt_id", "quiz_id", "student_id", "event_type", "payload", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert writes a single event. It returns ErrOrphanEvent when the quiz
// was deleted in the meantime.
func (r *EventRepository) Insert(ctx context.Context, ev model.AttemptEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_events (attempt_id, quiz_id, student_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		ev.AttemptID, ev.QuizID, ev.StudentID, string(ev.Type), eventPayload(ev), ev.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return ErrOrphanEvent
	}
	return err
}

// ListRecentByQuiz returns the newest events of a quiz, newest first.
func (r *EventRepository) ListRecentByQuiz(ctx context.Context, quizID uuid.UUID, since time.Time, limit int) ([]model.AttemptEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, quiz_id, student_id, event_type, payload, created_at
		 FROM attempt_events
		 WHERE quiz_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		quizID, since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]model.AttemptEvent, 0)
	for rows.Next() {
		var (
			ev      model.AttemptEvent
			payload []byte
		)
		if err := rows.Scan(&ev.AttemptID, &ev.QuizID, &ev.StudentID, &ev.Type, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	return events, rows.Err()
}
