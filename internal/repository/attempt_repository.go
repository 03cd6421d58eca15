package repository

import (
	"context"
	"errors"
	"time"

	"github.com/classquiz/classquiz-backend/internal/database"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAttemptNotInProgress is returned when writing to a finished attempt.
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	// ErrAttemptTimeUp is returned when writing to an attempt past its time limit.
	ErrAttemptTimeUp = errors.New("attempt time limit reached")
)

// AttemptRepository handles quiz attempt and student answer data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// ExpiredAttempt is an in-progress attempt together with the quiz timing it runs under.
type ExpiredAttempt struct {
	model.QuizAttempt
	DurationMinutes int
	Deadline        time.Time
}

// FinishParams describes how an attempt is finalised.
type FinishParams struct {
	Status   model.AttemptStatus
	Now      time.Time
	Duration time.Duration
	Key      scoring.AnswerKey
}

const attemptColumns = `id, quiz_id, student_id, status, started_at, completed_at,
	score, total_questions, time_taken_seconds, ranking`

func scanAttempt(row pgx.Row, a *model.QuizAttempt) error {
	return row.Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Status, &a.StartedAt, &a.CompletedAt,
		&a.Score, &a.TotalQuestions, &a.TimeTakenSeconds, &a.Ranking)
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.QuizAttempt, error) {
	a := &model.QuizAttempt{}
	if err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id), a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByQuizAndStudent retrieves the single attempt of a student on a quiz.
func (r *AttemptRepository) GetByQuizAndStudent(ctx context.Context, quizID uuid.UUID, studentID int) (*model.QuizAttempt, error) {
	a := &model.QuizAttempt{}
	if err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2`,
		quizID, studentID), a); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateIfAbsent starts an attempt unless one already exists for the same
// quiz and student, in which case the existing one is loaded into a.
// Reports whether a new row was inserted.
func (r *AttemptRepository) CreateIfAbsent(ctx context.Context, a *model.QuizAttempt) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO quiz_attempts (quiz_id, student_id, status, total_questions)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (quiz_id, student_id) DO NOTHING
		 RETURNING `+attemptColumns,
		a.QuizID, a.StudentID, model.AttemptStatusInProgress, a.TotalQuestions,
	).Scan(&a.ID, &a.QuizID, &a.StudentID, &a.Status, &a.StartedAt, &a.CompletedAt,
		&a.Score, &a.TotalQuestions, &a.TimeTakenSeconds, &a.Ranking)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	existing, err := r.GetByQuizAndStudent(ctx, a.QuizID, a.StudentID)
	if err != nil {
		return false, err
	}
	*a = *existing
	return false, nil
}

// Selections returns the saved answer ids per question of an attempt.
func (r *AttemptRepository) Selections(ctx context.Context, attemptID uuid.UUID) (scoring.Selections, error) {
	return loadSelections(ctx, r.pool, attemptID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadSelections(ctx context.Context, q querier, attemptID uuid.UUID) (scoring.Selections, error) {
	rows, err := q.Query(ctx,
		`SELECT question_id, answer_id FROM student_answers WHERE attempt_id = $1 ORDER BY id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sel := make(scoring.Selections)
	for rows.Next() {
		var qID, aID uuid.UUID
		if err := rows.Scan(&qID, &aID); err != nil {
			return nil, err
		}
		sel[qID] = append(sel[qID], aID)
	}
	return sel, rows.Err()
}

// ReplaceSelection atomically swaps the selected answers of one question.
// An empty answerIDs clears the question. Fails with ErrAttemptNotInProgress
// once the attempt is finished and with ErrAttemptTimeUp when clock reads at
// or past endsAt after the attempt row is locked.
func (r *AttemptRepository) ReplaceSelection(ctx context.Context, attemptID, questionID uuid.UUID, answerIDs []uuid.UUID, endsAt time.Time, clock func() time.Time) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var status model.AttemptStatus
		if err := tx.QueryRow(ctx,
			`SELECT status FROM quiz_attempts WHERE id = $1 FOR UPDATE`, attemptID,
		).Scan(&status); err != nil {
			return err
		}
		if err := checkWritable(status, clock(), endsAt); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM student_answers WHERE attempt_id = $1 AND question_id = $2`,
			attemptID, questionID,
		); err != nil {
			return err
		}
		if len(answerIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO student_answers (attempt_id, question_id, answer_id)
			 SELECT $1, $2, a FROM unnest($3::uuid[]) AS a
			 ON CONFLICT DO NOTHING`,
			attemptID, questionID, uuidStrings(answerIDs),
		)
		return err
	})
}

// checkWritable reports whether an attempt in status may take answers at now.
func checkWritable(status model.AttemptStatus, now, endsAt time.Time) error {
	if status != model.AttemptStatusInProgress {
		return ErrAttemptNotInProgress
	}
	if !now.Before(endsAt) {
		return ErrAttemptTimeUp
	}
	return nil
}

// Finish grades and closes an in-progress attempt inside one transaction.
// When the attempt is already finished it is returned unchanged with false.
func (r *AttemptRepository) Finish(ctx context.Context, attemptID uuid.UUID, p FinishParams) (*model.QuizAttempt, bool, error) {
	a := &model.QuizAttempt{}
	finished := false

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := scanAttempt(tx.QueryRow(ctx,
			`SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1 FOR UPDATE`, attemptID), a); err != nil {
			return err
		}
		if a.Status != model.AttemptStatusInProgress {
			return nil
		}

		sel, err := loadSelections(ctx, tx, attemptID)
		if err != nil {
			return err
		}
		res := scoring.Grade(p.Key, sel)
		taken := scoring.TimeTaken(a.StartedAt, p.Now, p.Duration)

		if err := scanAttempt(tx.QueryRow(ctx,
			`UPDATE quiz_attempts
			 SET status = $2, completed_at = $3, score = $4, total_questions = $5, time_taken_seconds = $6
			 WHERE id = $1
			 RETURNING `+attemptColumns,
			attemptID, p.Status, p.Now, res.Score, res.TotalQuestions, taken), a); err != nil {
			return err
		}
		finished = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return a, finished, nil
}

// ListExpired returns up to limit in-progress attempts whose time limit has passed at now.
func (r *AttemptRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]ExpiredAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.quiz_id, a.student_id, a.status, a.started_at, a.completed_at,
		        a.score, a.total_questions, a.time_taken_seconds, a.ranking,
		        q.duration_minutes, q.deadline
		 FROM quiz_attempts a
		 JOIN quizzes q ON q.id = a.quiz_id
		 WHERE a.status = 'IN_PROGRESS'
		   AND (a.started_at + make_interval(mins => q.duration_minutes) <= $1 OR q.deadline <= $1)
		 ORDER BY a.started_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expired := make([]ExpiredAttempt, 0)
	for rows.Next() {
		var e ExpiredAttempt
		if err := rows.Scan(&e.ID, &e.QuizID, &e.StudentID, &e.Status, &e.StartedAt, &e.CompletedAt,
			&e.Score, &e.TotalQuestions, &e.TimeTakenSeconds, &e.Ranking,
			&e.DurationMinutes, &e.Deadline); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}

// ListInProgressIDs returns the ids of attempts of a quiz still in progress.
func (r *AttemptRepository) ListInProgressIDs(ctx context.Context, quizID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM quiz_attempts WHERE quiz_id = $1 AND status = 'IN_PROGRESS'`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const attemptRowSelect = `
	SELECT a.id, s.id, s.name, g.id, g.name, a.status, a.score, a.total_questions,
	       a.started_at, a.completed_at, a.time_taken_seconds, a.ranking,
	       (SELECT COUNT(DISTINCT sa.question_id) FROM student_answers sa WHERE sa.attempt_id = a.id)
	FROM quiz_attempts a
	JOIN students s ON s.id = a.student_id
	JOIN groups g ON g.id = s.group_id`

func scanAttemptRows(rows pgx.Rows) ([]model.AttemptRow, error) {
	defer rows.Close()
	out := make([]model.AttemptRow, 0)
	for rows.Next() {
		var a model.AttemptRow
		if err := rows.Scan(&a.AttemptID, &a.StudentID, &a.StudentName, &a.GroupID, &a.GroupName,
			&a.Status, &a.Score, &a.TotalQuestions, &a.StartedAt, &a.CompletedAt,
			&a.TimeTakenSeconds, &a.Ranking, &a.AnsweredCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListByQuiz retrieves a page of attempts of a quiz, optionally filtered by group.
// A limit of 0 returns every attempt.
func (r *AttemptRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID, groupID *int, limit, offset int) ([]model.AttemptRow, int, error) {
	where := ` WHERE a.quiz_id = $1`
	args := []any{quizID}
	if groupID != nil {
		args = append(args, *groupID)
		where += ` AND s.group_id = ` + placeholder(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts a JOIN students s ON s.id = a.student_id`+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	var lim *int
	if limit > 0 {
		lim = &limit
	}
	args = append(args, lim, offset)
	rows, err := r.pool.Query(ctx,
		attemptRowSelect+where+` ORDER BY g.name, s.name LIMIT `+placeholder(len(args)-1)+` OFFSET `+placeholder(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	list, err := scanAttemptRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Leaderboard returns finished attempts in ranking order. Before rankings
// exist the same ordering rule gives the provisional order. A limit of 0
// returns every row.
func (r *AttemptRepository) Leaderboard(ctx context.Context, quizID uuid.UUID, limit int) ([]model.AttemptRow, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.pool.Query(ctx,
		attemptRowSelect+`
		 WHERE a.quiz_id = $1 AND a.status IN ('COMPLETED', 'TIMED_OUT')
		 ORDER BY a.ranking ASC NULLS LAST, a.score DESC,
		          a.time_taken_seconds ASC NULLS LAST, a.completed_at ASC NULLS LAST, a.id
		 LIMIT $2`,
		quizID, lim,
	)
	if err != nil {
		return nil, err
	}
	return scanAttemptRows(rows)
}

// RecalculateRankings numbers the finished attempts of a quiz by score, then
// time taken, then completion time, and stamps the quiz with now.
// Returns the number of ranked attempts.
func (r *AttemptRepository) RecalculateRankings(ctx context.Context, quizID uuid.UUID, now time.Time) (int64, error) {
	var ranked int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE quiz_attempts SET ranking = NULL WHERE quiz_id = $1 AND status = 'IN_PROGRESS'`, quizID,
		); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`WITH ranked AS (
			     SELECT id, ROW_NUMBER() OVER (
			         ORDER BY score DESC, time_taken_seconds ASC NULLS LAST,
			                  completed_at ASC NULLS LAST, id
			     ) AS rn
			     FROM quiz_attempts
			     WHERE quiz_id = $1 AND status IN ('COMPLETED', 'TIMED_OUT')
			 )
			 UPDATE quiz_attempts a SET ranking = ranked.rn
			 FROM ranked WHERE a.id = ranked.id`, quizID,
		)
		if err != nil {
			return err
		}
		ranked = tag.RowsAffected()

		_, err = tx.Exec(ctx,
			`UPDATE quizzes SET rankings_calculated_at = $2 WHERE id = $1`, quizID, now,
		)
		return err
	})
	return ranked, err
}

// Delete removes the attempt of a student on a quiz with all saved answers.
func (r *AttemptRepository) Delete(ctx context.Context, quizID uuid.UUID, studentID int) (*model.QuizAttempt, error) {
	a := &model.QuizAttempt{}
	if err := scanAttempt(r.pool.QueryRow(ctx,
		`DELETE FROM quiz_attempts WHERE quiz_id = $1 AND student_id = $2 RETURNING `+attemptColumns,
		quizID, studentID), a); err != nil {
		return nil, err
	}
	return a, nil
}

// CountByQuiz returns the number of attempts on a quiz.
func (r *AttemptRepository) CountByQuiz(ctx context.Context, quizID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = $1`, quizID).Scan(&n)
	return n, err
}
