package service

import (
	"context"
	"errors"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// QuestionService handles question authoring on draft quizzes.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	quizzes      *QuizService
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, quizzes *QuizService) *QuestionService {
	return &QuestionService{questionRepo: questionRepo, quizzes: quizzes}
}

// List returns the questions of one of the teacher's quizzes with answers.
func (s *QuestionService) List(ctx context.Context, teacherID int, quizID uuid.UUID) ([]model.Question, error) {
	if _, err := s.quizzes.Get(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByQuiz(ctx, quizID)
}

// Add appends a question to a draft quiz.
func (s *QuestionService) Add(ctx context.Context, teacherID int, quizID uuid.UUID, req model.QuestionRequest) (*model.Question, error) {
	if _, err := s.quizzes.getDraft(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	q := questionFromRequest(quizID, req)
	if err := validateQuestions([]model.Question{q}); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Create(ctx, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// ReplaceAll swaps every question of a draft quiz for reqs, in order.
func (s *QuestionService) ReplaceAll(ctx context.Context, teacherID int, quizID uuid.UUID, reqs []model.QuestionRequest) ([]model.Question, error) {
	if _, err := s.quizzes.getDraft(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	questions := make([]model.Question, len(reqs))
	for i, r := range reqs {
		questions[i] = questionFromRequest(quizID, r)
	}
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	if err := s.questionRepo.ReplaceAll(ctx, quizID, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Update rewrites one question of a draft quiz.
func (s *QuestionService) Update(ctx context.Context, teacherID int, quizID, questionID uuid.UUID, req model.QuestionRequest) (*model.Question, error) {
	if _, err := s.quizzes.getDraft(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	q := questionFromRequest(quizID, req)
	q.ID = questionID
	if err := validateQuestions([]model.Question{q}); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Update(ctx, &q); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.questionRepo.GetByID(ctx, quizID, questionID)
}

// Delete removes one question of a draft quiz.
func (s *QuestionService) Delete(ctx context.Context, teacherID int, quizID, questionID uuid.UUID) error {
	if _, err := s.quizzes.getDraft(ctx, teacherID, quizID); err != nil {
		return err
	}
	if err := s.questionRepo.Delete(ctx, quizID, questionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Reorder sets the order of every question of a draft quiz.
func (s *QuestionService) Reorder(ctx context.Context, teacherID int, quizID uuid.UUID, ids []uuid.UUID) ([]model.Question, error) {
	if _, err := s.quizzes.getDraft(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	if err := s.questionRepo.Reorder(ctx, quizID, ids); err != nil {
		if errors.Is(err, repository.ErrOrderMismatch) {
			return nil, &RuleError{Err: ErrInvalidQuestion, Problems: map[string]string{"question_ids": err.Error()}}
		}
		return nil, err
	}
	return s.questionRepo.ListByQuiz(ctx, quizID)
}
