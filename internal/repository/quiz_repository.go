package repository

import (
	"context"
	"time"

	"github.com/classquiz/classquiz-backend/internal/database"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuizRepository handles quiz and quiz group data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

const quizSelect = `
	SELECT q.id, q.teacher_id, q.title, q.description, q.access_code, q.duration_minutes,
	       q.deadline, q.status, q.rankings_calculated_at, q.created_at, q.updated_at,
	       COALESCE((SELECT array_agg(qg.group_id ORDER BY qg.group_id)
	                 FROM quiz_groups qg WHERE qg.quiz_id = q.id), '{}'::int[]),
	       (SELECT COUNT(*) FROM questions qs WHERE qs.quiz_id = q.id)
	FROM quizzes q`

func scanQuiz(row pgx.Row, q *model.Quiz) error {
	return row.Scan(&q.ID, &q.TeacherID, &q.Title, &q.Description, &q.AccessCode, &q.DurationMinutes,
		&q.Deadline, &q.Status, &q.RankingsCalculatedAt, &q.CreatedAt, &q.UpdatedAt,
		&q.GroupIDs, &q.QuestionCount)
}

func (r *QuizRepository) list(ctx context.Context, where string, args ...any) ([]model.Quiz, error) {
	rows, err := r.pool.Query(ctx, quizSelect+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := make([]model.Quiz, 0)
	for rows.Next() {
		var q model.Quiz
		if err := scanQuiz(rows, &q); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

// GetByID retrieves a quiz with its group ids and question count.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	if err := scanQuiz(r.pool.QueryRow(ctx, quizSelect+` WHERE q.id = $1`, id), q); err != nil {
		return nil, err
	}
	return q, nil
}

// GetByAccessCode retrieves a quiz by its normalised access code.
func (r *QuizRepository) GetByAccessCode(ctx context.Context, code string) (*model.Quiz, error) {
	q := &model.Quiz{}
	if err := scanQuiz(r.pool.QueryRow(ctx, quizSelect+` WHERE q.access_code = $1`, code), q); err != nil {
		return nil, err
	}
	return q, nil
}

// ListByTeacher retrieves a page of a teacher's quizzes, newest first,
// optionally filtered by status.
func (r *QuizRepository) ListByTeacher(ctx context.Context, teacherID int, status *model.QuizStatus, limit, offset int) ([]model.Quiz, int, error) {
	where := ` WHERE q.teacher_id = $1`
	args := []any{teacherID}
	if status != nil {
		args = append(args, *status)
		where += ` AND q.status = ` + placeholder(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes q`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	quizzes, err := r.list(ctx,
		where+` ORDER BY q.created_at DESC LIMIT `+placeholder(len(args)-1)+` OFFSET `+placeholder(len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	return quizzes, total, nil
}

// ListDueForRanking returns published quizzes whose deadline passed before now
// and whose rankings were never calculated.
func (r *QuizRepository) ListDueForRanking(ctx context.Context, now time.Time, limit int) ([]model.Quiz, error) {
	return r.list(ctx,
		` WHERE q.status = 'PUBLISHED' AND q.deadline <= $1 AND q.rankings_calculated_at IS NULL
		  ORDER BY q.deadline LIMIT $2`,
		now, limit,
	)
}

// ListPublished returns every published quiz whose deadline has not passed.
func (r *QuizRepository) ListPublished(ctx context.Context, now time.Time) ([]model.Quiz, error) {
	return r.list(ctx, ` WHERE q.status = 'PUBLISHED' AND q.deadline > $1 ORDER BY q.deadline`, now)
}

// Create inserts a quiz and its group assignments in one transaction.
// Returns ErrDuplicateAccessCode on an access code clash.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO quizzes (teacher_id, title, description, access_code, duration_minutes, deadline, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at, updated_at`,
			q.TeacherID, q.Title, q.Description, q.AccessCode, q.DurationMinutes, q.Deadline, q.Status,
		).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return err
		}
		return replaceGroups(ctx, tx, q.ID, q.GroupIDs)
	})
	if isUniqueViolation(err) {
		return ErrDuplicateAccessCode
	}
	return err
}

// Update writes the editable metadata of a quiz.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var moved bool
		err := tx.QueryRow(ctx,
			`SELECT deadline <> $2 FROM quizzes WHERE id = $1 FOR UPDATE`, q.ID, q.Deadline,
		).Scan(&moved)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE quizzes SET title = $1, description = $2, duration_minutes = $3, deadline = $4, updated_at = NOW()
			 WHERE id = $5`,
			q.Title, q.Description, q.DurationMinutes, q.Deadline, q.ID,
		); err != nil {
			return err
		}
		if !moved {
			return nil
		}
		q.RankingsCalculatedAt = nil
		return clearRankings(ctx, tx, q.ID)
	})
}

// clearRankings drops a quiz's ranking stamp and per-attempt ranks so the
// next leaderboard read recalculates them.
func clearRankings(ctx context.Context, tx pgx.Tx, quizID uuid.UUID) error {
	if _, err := tx.Exec(ctx,
		`UPDATE quizzes SET rankings_calculated_at = NULL WHERE id = $1`, quizID,
	); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE quiz_attempts SET ranking = NULL WHERE quiz_id = $1`, quizID)
	return err
}

// SetGroups replaces the groups a quiz is assigned to.
func (r *QuizRepository) SetGroups(ctx context.Context, quizID uuid.UUID, groupIDs []int) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return replaceGroups(ctx, tx, quizID, groupIDs)
	})
}

func replaceGroups(ctx context.Context, tx pgx.Tx, quizID uuid.UUID, groupIDs []int) error {
	if _, err := tx.Exec(ctx, `DELETE FROM quiz_groups WHERE quiz_id = $1`, quizID); err != nil {
		return err
	}
	if len(groupIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO quiz_groups (quiz_id, group_id)
		 SELECT $1, g FROM unnest($2::int[]) AS g
		 ON CONFLICT DO NOTHING`,
		quizID, groupIDs,
	)
	return err
}

// UpdateAccessCode replaces the access code of a quiz.
func (r *QuizRepository) UpdateAccessCode(ctx context.Context, id uuid.UUID, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE quizzes SET access_code = $1, updated_at = NOW() WHERE id = $2`, code, id,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateAccessCode
	}
	return err
}

// UpdateStatus changes the status of a quiz.
// Any status change invalidates previously calculated rankings.
func (r *QuizRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.QuizStatus) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE quizzes SET status = $1, updated_at = NOW() WHERE id = $2`, status, id,
		); err != nil {
			return err
		}
		return clearRankings(ctx, tx, id)
	})
}

// Delete removes a quiz with its questions, groups and attempts.
func (r *QuizRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	return err
}

// IsGroupAssigned reports whether groupID is one of the quiz's groups.
func (r *QuizRepository) IsGroupAssigned(ctx context.Context, quizID uuid.UUID, groupID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_groups WHERE quiz_id = $1 AND group_id = $2)`,
		quizID, groupID,
	).Scan(&ok)
	return ok, err
}
