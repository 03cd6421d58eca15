package repository

import (
	"context"
	"errors"

	"github.com/classquiz/classquiz-backend/internal/database"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrOrderMismatch is returned when a reorder list does not name every question exactly once.
var ErrOrderMismatch = errors.New("question order must list every question of the quiz once")

// QuestionRepository handles question and answer data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByQuiz retrieves all questions of a quiz with their answers, both ordered.
func (r *QuestionRepository) ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, question_text, question_type, image_url, order_num
		 FROM questions WHERE quiz_id = $1
		 ORDER BY order_num, id`, quizID,
	)
	if err != nil {
		return nil, err
	}
	questions := make([]model.Question, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.QuestionText, &q.QuestionType, &q.ImageURL, &q.OrderNum); err != nil {
			rows.Close()
			return nil, err
		}
		q.Answers = make([]model.Answer, 0)
		index[q.ID] = len(questions)
		questions = append(questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := r.pool.Query(ctx,
		`SELECT a.id, a.question_id, a.answer_text, a.is_correct, a.order_num
		 FROM answers a JOIN questions q ON q.id = a.question_id
		 WHERE q.quiz_id = $1
		 ORDER BY a.order_num, a.id`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer arows.Close()

	for arows.Next() {
		var a model.Answer
		if err := arows.Scan(&a.ID, &a.QuestionID, &a.AnswerText, &a.IsCorrect, &a.OrderNum); err != nil {
			return nil, err
		}
		if i, ok := index[a.QuestionID]; ok {
			questions[i].Answers = append(questions[i].Answers, a)
		}
	}
	return questions, arows.Err()
}

// GetByID retrieves one question of a quiz with its answers.
func (r *QuestionRepository) GetByID(ctx context.Context, quizID, questionID uuid.UUID) (*model.Question, error) {
	questions, err := r.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		if questions[i].ID == questionID {
			return &questions[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

// AnswerKey returns the correct answer ids of every question of a quiz.
func (r *QuestionRepository) AnswerKey(ctx context.Context, quizID uuid.UUID) (scoring.AnswerKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, a.id, a.is_correct
		 FROM questions q LEFT JOIN answers a ON a.question_id = q.id
		 WHERE q.quiz_id = $1`, quizID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	key := make(scoring.AnswerKey)
	for rows.Next() {
		var (
			qID     uuid.UUID
			aID     *uuid.UUID
			correct *bool
		)
		if err := rows.Scan(&qID, &aID, &correct); err != nil {
			return nil, err
		}
		if _, ok := key[qID]; !ok {
			key[qID] = nil
		}
		if aID != nil && correct != nil && *correct {
			key[qID] = append(key[qID], *aID)
		}
	}
	return key, rows.Err()
}

// Create appends a question with its answers. A nil OrderNum puts it last.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if q.OrderNum <= 0 {
			if err := tx.QueryRow(ctx,
				`SELECT COALESCE(MAX(order_num), 0) + 1 FROM questions WHERE quiz_id = $1`, q.QuizID,
			).Scan(&q.OrderNum); err != nil {
				return err
			}
		}
		return insertQuestion(ctx, tx, q)
	})
}

// ReplaceAll deletes every question of a quiz and inserts questions in order.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, quizID uuid.UUID, questions []model.Question) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE quiz_id = $1`, quizID); err != nil {
			return err
		}
		for i := range questions {
			questions[i].QuizID = quizID
			questions[i].OrderNum = i + 1
			if err := insertQuestion(ctx, tx, &questions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update rewrites a question and replaces its answers.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE questions SET question_text = $1, question_type = $2, image_url = $3,
			        order_num = CASE WHEN $4::int > 0 THEN $4::int ELSE order_num END
			 WHERE id = $5 AND quiz_id = $6`,
			q.QuestionText, q.QuestionType, q.ImageURL, q.OrderNum, q.ID, q.QuizID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE question_id = $1`, q.ID); err != nil {
			return err
		}
		return insertAnswers(ctx, tx, q)
	})
}

// Delete removes a question and closes the gap in the order of the rest.
func (r *QuestionRepository) Delete(ctx context.Context, quizID, questionID uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM questions WHERE id = $1 AND quiz_id = $2`, questionID, quizID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		_, err = tx.Exec(ctx,
			`UPDATE questions q SET order_num = o.rn
			 FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY order_num, id) AS rn
			       FROM questions WHERE quiz_id = $1) o
			 WHERE q.id = o.id`, quizID,
		)
		return err
	})
}

// Reorder assigns order_num 1..n following ids, which must list every
// question of the quiz exactly once.
func (r *QuestionRepository) Reorder(ctx context.Context, quizID uuid.UUID, ids []uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var total int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE quiz_id = $1`, quizID).Scan(&total); err != nil {
			return err
		}
		if total != len(ids) {
			return ErrOrderMismatch
		}
		tag, err := tx.Exec(ctx,
			`UPDATE questions q SET order_num = t.ord
			 FROM unnest($2::uuid[]) WITH ORDINALITY AS t(id, ord)
			 WHERE q.id = t.id AND q.quiz_id = $1`,
			quizID, uuidStrings(ids),
		)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != total {
			return ErrOrderMismatch
		}
		return nil
	})
}

func insertQuestion(ctx context.Context, tx pgx.Tx, q *model.Question) error {
	if err := tx.QueryRow(ctx,
		`INSERT INTO questions (quiz_id, question_text, question_type, image_url, order_num)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		q.QuizID, q.QuestionText, q.QuestionType, q.ImageURL, q.OrderNum,
	).Scan(&q.ID); err != nil {
		return err
	}
	return insertAnswers(ctx, tx, q)
}

// insertAnswers bulk-loads the answers of q, assigning ids and order.
func insertAnswers(ctx context.Context, tx pgx.Tx, q *model.Question) error {
	if len(q.Answers) == 0 {
		return nil
	}
	for i := range q.Answers {
		q.Answers[i].ID = uuid.New()
		q.Answers[i].QuestionID = q.ID
		q.Answers[i].OrderNum = i + 1
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"answers"},
		[]string{"id", "question_id", "answer_text", "is_correct", "order_num"},
		pgx.CopyFromSlice(len(q.Answers), func(i int) ([]any, error) {
			a := q.Answers[i]
			return []any{a.ID, a.QuestionID, a.AnswerText, a.IsCorrect, a.OrderNum}, nil
		}),
	)
	return err
}
