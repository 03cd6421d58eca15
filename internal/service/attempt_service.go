package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/classquiz/classquiz-backend/internal/accesscode"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/classquiz/classquiz-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// EventPublisher receives attempt lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.AttemptEvent) error
}

// AttemptService runs the quiz attempt lifecycle:
// join, answer, complete and expiry.
type AttemptService struct {
	quizRepo    *repository.QuizRepository
	studentRepo *repository.StudentRepository
	attemptRepo *repository.AttemptRepository
	quizzes     *QuizService
	auth        *AuthService
	events      EventPublisher
	log         zerolog.Logger
	now         func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	quizRepo *repository.QuizRepository,
	studentRepo *repository.StudentRepository,
	attemptRepo *repository.AttemptRepository,
	quizzes *QuizService,
	auth *AuthService,
	events EventPublisher,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		quizRepo:    quizRepo,
		studentRepo: studentRepo,
		attemptRepo: attemptRepo,
		quizzes:     quizzes,
		auth:        auth,
		events:      events,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

// Join resolves an access code and student code to an attempt, creating it
// on first entry and resuming it afterwards. A finished attempt is returned
// as is so the student can see their result.
func (s *AttemptService) Join(ctx context.Context, accessCode, studentCode string) (*model.JoinQuizResponse, error) {
	quiz, err := s.quizRepo.GetByAccessCode(ctx, accesscode.Normalize(accessCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidAccessCode
		}
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.Status != model.QuizStatusPublished {
		return nil, ErrInvalidAccessCode
	}

	student, err := s.studentRepo.GetByCode(ctx, accesscode.Normalize(studentCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStudentCode
		}
		return nil, fmt.Errorf("get student: %w", err)
	}

	assigned, err := s.quizRepo.IsGroupAssigned(ctx, quiz.ID, student.GroupID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !assigned {
		return nil, ErrStudentNotAssigned
	}

	now := s.now()
	attempt, err := s.attemptRepo.GetByQuizAndStudent(ctx, quiz.ID, student.ID)
	resumed := true
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows):
		if quiz.DeadlinePassed(now) {
			return nil, ErrQuizClosed
		}
		attempt = &model.QuizAttempt{QuizID: quiz.ID, StudentID: student.ID, TotalQuestions: quiz.QuestionCount}
		created, err := s.attemptRepo.CreateIfAbsent(ctx, attempt)
		if err != nil {
			return nil, fmt.Errorf("create attempt: %w", err)
		}
		if created {
			resumed = false
			s.emit(ctx, attempt, model.EventJoined, nil)
			s.log.Info().
				Str("quiz_id", quiz.ID.String()).
				Int("student_id", student.ID).
				Msg("Attempt started")
		}
	default:
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	attempt, err = s.expireIfDue(ctx, attempt, quiz)
	if err != nil {
		return nil, err
	}
	if resumed && attempt.Status == model.AttemptStatusInProgress {
		s.emit(ctx, attempt, model.EventResumed, nil)
	}

	endsAt := scoring.AttemptDeadline(attempt.StartedAt, quiz.Duration(), quiz.Deadline)
	token, err := s.auth.GenerateAttemptToken(attempt, endsAt)
	if err != nil {
		return nil, err
	}

	return &model.JoinQuizResponse{
		Token:   token,
		Attempt: attempt,
		Quiz:    quiz.Summary(),
		Student: *student,
		Resumed: resumed,
	}, nil
}

// load returns an attempt and its quiz, finalising the attempt first when its
// time limit has passed.
func (s *AttemptService) load(ctx context.Context, attemptID uuid.UUID) (*model.QuizAttempt, *model.Quiz, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	quiz, err := s.quizzes.GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, nil, err
	}
	attempt, err = s.expireIfDue(ctx, attempt, quiz)
	if err != nil {
		return nil, nil, err
	}
	return attempt, quiz, nil
}

func (s *AttemptService) expireIfDue(ctx context.Context, attempt *model.QuizAttempt, quiz *model.Quiz) (*model.QuizAttempt, error) {
	if attempt.Status != model.AttemptStatusInProgress {
		return attempt, nil
	}
	endsAt := scoring.AttemptDeadline(attempt.StartedAt, quiz.Duration(), quiz.Deadline)
	if s.now().Before(endsAt) {
		return attempt, nil
	}
	return s.finish(ctx, attempt.ID, quiz, model.AttemptStatusTimedOut, endsAt)
}

// finish grades and closes an attempt at completedAt. Finishing an already
// finished attempt returns it unchanged.
func (s *AttemptService) finish(ctx context.Context, attemptID uuid.UUID, quiz *model.Quiz, status model.AttemptStatus, completedAt time.Time) (*model.QuizAttempt, error) {
	key, err := s.quizzes.AnswerKey(ctx, quiz.ID)
	if err != nil {
		return nil, fmt.Errorf("answer key: %w", err)
	}
	attempt, finished, err := s.attemptRepo.Finish(ctx, attemptID, repository.FinishParams{
		Status:   status,
		Now:      completedAt,
		Duration: quiz.Duration(),
		Key:      key,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("finish attempt: %w", err)
	}
	if finished {
		evType := model.EventCompleted
		if status == model.AttemptStatusTimedOut {
			evType = model.EventTimedOut
		}
		s.emit(ctx, attempt, evType, map[string]any{
			"score":           attempt.Score,
			"total_questions": attempt.TotalQuestions,
		})
	}
	return attempt, nil
}

// State returns what a client needs to restore the quiz screen.
func (s *AttemptService) State(ctx context.Context, attemptID uuid.UUID) (*model.AttemptState, error) {
	attempt, quiz, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	paper, err := s.quizzes.Paper(ctx, quiz)
	if err != nil {
		return nil, err
	}
	sel, err := s.attemptRepo.Selections(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}

	order := make([]uuid.UUID, len(paper.Questions))
	for i, q := range paper.Questions {
		order[i] = q.ID
	}
	endsAt := scoring.AttemptDeadline(attempt.StartedAt, quiz.Duration(), quiz.Deadline)
	remaining := scoring.Remaining(s.now(), endsAt)
	if attempt.Status.Finished() {
		remaining = 0
	}

	return &model.AttemptState{
		Attempt:          attempt,
		RemainingSeconds: remaining.Seconds(),
		EndsAt:           endsAt,
		Selections:       sel,
		CurrentQuestion:  scoring.FirstUnanswered(order, sel),
		TotalQuestions:   len(order),
	}, nil
}

// Paper returns the questions of an attempt that is still running.
func (s *AttemptService) Paper(ctx context.Context, attemptID uuid.UUID) (*model.QuizPaper, error) {
	attempt, quiz, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status.Finished() {
		return nil, ErrAttemptFinished
	}
	return s.quizzes.Paper(ctx, quiz)
}

// SaveAnswer replaces the selection of one question. Past the time limit
// the attempt is closed and ErrTimeUp returned.
func (s *AttemptService) SaveAnswer(ctx context.Context, attemptID, questionID uuid.UUID, answerIDs []uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if attempt.Status.Finished() {
		return nil, ErrAttemptFinished
	}
	quiz, err := s.quizzes.GetByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	if expired, err := s.expireIfDue(ctx, attempt, quiz); err != nil {
		return nil, err
	} else if expired.Status.Finished() {
		return nil, ErrTimeUp
	}

	paper, err := s.quizzes.Paper(ctx, quiz)
	if err != nil {
		return nil, err
	}
	question := findQuestion(paper, questionID)
	if question == nil {
		return nil, ErrInvalidAnswer
	}
	ids, err := checkSelection(question, answerIDs)
	if err != nil {
		return nil, err
	}

	endsAt := scoring.AttemptDeadline(attempt.StartedAt, quiz.Duration(), quiz.Deadline)
	if err := s.attemptRepo.ReplaceSelection(ctx, attemptID, questionID, ids, endsAt, s.now); err != nil {
		if errors.Is(err, repository.ErrAttemptNotInProgress) {
			return nil, ErrAttemptFinished
		}
		if errors.Is(err, repository.ErrAttemptTimeUp) {
			if _, err := s.expireIfDue(ctx, attempt, quiz); err != nil {
				return nil, err
			}
			return nil, ErrTimeUp
		}
		return nil, fmt.Errorf("save answer: %w", err)
	}
	s.emit(ctx, attempt, model.EventAnswerSaved, map[string]any{
		"question_id": questionID,
		"selected":    len(ids),
	})

	return s.State(ctx, attemptID)
}

// Complete submits an attempt. Calling it again returns the same result.
func (s *AttemptService) Complete(ctx context.Context, attemptID uuid.UUID) (*model.AttemptResult, error) {
	attempt, quiz, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status == model.AttemptStatusInProgress {
		attempt, err = s.finish(ctx, attemptID, quiz, model.AttemptStatusCompleted, s.now())
		if err != nil {
			return nil, err
		}
		s.log.Info().
			Str("attempt_id", attemptID.String()).
			Int("score", attempt.Score).
			Int("total", attempt.TotalQuestions).
			Msg("Attempt completed")
	}
	return buildResult(attempt, quiz, s.now()), nil
}

// Result returns the outcome of an attempt. Rankings stay hidden until they
// have been calculated after the deadline.
func (s *AttemptService) Result(ctx context.Context, attemptID uuid.UUID) (*model.AttemptResult, error) {
	attempt, quiz, err := s.load(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return buildResult(attempt, quiz, s.now()), nil
}

func buildResult(attempt *model.QuizAttempt, quiz *model.Quiz, now time.Time) *model.AttemptResult {
	released := quiz.RankingsCalculatedAt != nil && checkRankable(quiz, now) == nil
	if !released {
		attempt.Ranking = nil
	}
	return &model.AttemptResult{
		Attempt:         attempt,
		Percentage:      scoring.Percentage(attempt.Score, attempt.TotalQuestions),
		RankingReleased: released,
	}
}

// FinalizeExpired closes up to limit attempts whose time limit passed.
// Returns how many were closed.
func (s *AttemptService) FinalizeExpired(ctx context.Context, limit int) (int, error) {
	now := s.now()
	expired, err := s.attemptRepo.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired: %w", err)
	}

	closed := 0
	for _, e := range expired {
		quiz := &model.Quiz{ID: e.QuizID, DurationMinutes: e.DurationMinutes, Deadline: e.Deadline}
		endsAt := scoring.AttemptDeadline(e.StartedAt, quiz.Duration(), quiz.Deadline)
		if _, err := s.finish(ctx, e.ID, quiz, model.AttemptStatusTimedOut, endsAt); err != nil {
			s.log.Error().Err(err).Str("attempt_id", e.ID.String()).Msg("Failed to close expired attempt")
			continue
		}
		closed++
	}
	return closed, nil
}

// FinalizeQuiz closes every running attempt of a quiz whose time is up and
// returns how many were closed.
func (s *AttemptService) FinalizeQuiz(ctx context.Context, quiz *model.Quiz) (int, error) {
	ids, err := s.attemptRepo.ListInProgressIDs(ctx, quiz.ID)
	if err != nil {
		return 0, fmt.Errorf("list running attempts: %w", err)
	}
	closed := 0
	for _, id := range ids {
		attempt, err := s.attemptRepo.GetByID(ctx, id)
		if err != nil {
			return closed, err
		}
		done, err := s.expireIfDue(ctx, attempt, quiz)
		if err != nil {
			return closed, err
		}
		if done.Status.Finished() {
			closed++
		}
	}
	return closed, nil
}

// Reset deletes a student's attempt so they can take the quiz again before
// the deadline.
func (s *AttemptService) Reset(ctx context.Context, teacherID int, quizID uuid.UUID, studentID int) error {
	quiz, err := s.quizzes.Get(ctx, teacherID, quizID)
	if err != nil {
		return err
	}
	if quiz.DeadlinePassed(s.now()) {
		return ErrQuizClosed
	}
	attempt, err := s.attemptRepo.Delete(ctx, quizID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	s.emit(ctx, attempt, model.EventReset, map[string]any{"teacher_id": teacherID})
	s.log.Info().
		Str("quiz_id", quizID.String()).
		Int("student_id", studentID).
		Msg("Attempt reset")
	return nil
}

func (s *AttemptService) emit(ctx context.Context, a *model.QuizAttempt, typ model.AttemptEventType, payload map[string]any) {
	ev := model.AttemptEvent{
		AttemptID: a.ID,
		QuizID:    a.QuizID,
		StudentID: a.StudentID,
		Type:      typ,
		CreatedAt: s.now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			ev.Payload = data
		}
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Str("event", string(typ)).Msg("Failed to publish attempt event")
	}
}

func findQuestion(paper *model.QuizPaper, id uuid.UUID) *model.QuestionForStudent {
	for i := range paper.Questions {
		if paper.Questions[i].ID == id {
			return &paper.Questions[i]
		}
	}
	return nil
}

// checkSelection validates answer ids against a question and removes
// duplicates. An empty selection is valid and clears the question.
func checkSelection(q *model.QuestionForStudent, answerIDs []uuid.UUID) ([]uuid.UUID, error) {
	valid := make(map[uuid.UUID]struct{}, len(q.Answers))
	for _, a := range q.Answers {
		valid[a.ID] = struct{}{}
	}

	seen := make(map[uuid.UUID]struct{}, len(answerIDs))
	ids := make([]uuid.UUID, 0, len(answerIDs))
	for _, id := range answerIDs {
		if _, ok := valid[id]; !ok {
			return nil, ErrInvalidAnswer
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if q.QuestionType == model.QuestionTypeSingle && len(ids) > 1 {
		return nil, ErrInvalidAnswer
	}
	return ids, nil
}
