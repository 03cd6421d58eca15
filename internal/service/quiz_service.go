package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/classquiz/classquiz-backend/internal/accesscode"
	"github.com/classquiz/classquiz-backend/internal/cache"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// QuizService handles quiz authoring and the cached student paper.
type QuizService struct {
	quizRepo     *repository.QuizRepository
	questionRepo *repository.QuestionRepository
	attemptRepo  *repository.AttemptRepository
	groups       *GroupService
	cache        *cache.QuizCache
	log          zerolog.Logger
	now          func() time.Time
	rebuild      singleflight.Group
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
	groups *GroupService,
	quizCache *cache.QuizCache,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		questionRepo: questionRepo,
		attemptRepo:  attemptRepo,
		groups:       groups,
		cache:        quizCache,
		log:          log.With().Str("component", "quiz_service").Logger(),
		now:          time.Now,
	}
}

// List returns a page of the teacher's quizzes.
func (s *QuizService) List(ctx context.Context, teacherID int, status *model.QuizStatus, page, perPage int) ([]model.Quiz, *response.Pagination, error) {
	page, perPage, offset := pageBounds(page, perPage)
	quizzes, total, err := s.quizRepo.ListByTeacher(ctx, teacherID, status, perPage, offset)
	if err != nil {
		return nil, nil, err
	}
	return quizzes, response.NewPagination(page, perPage, total), nil
}

// GetByID returns a quiz regardless of owner.
func (s *QuizService) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.quizRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return q, nil
}

// Get returns one of the teacher's quizzes.
func (s *QuizService) Get(ctx context.Context, teacherID int, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.TeacherID != teacherID {
		return nil, ErrNotFound
	}
	return q, nil
}

// getDraft returns one of the teacher's quizzes, failing unless it is a draft.
func (s *QuizService) getDraft(ctx context.Context, teacherID int, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if q.Status != model.QuizStatusDraft {
		return nil, ErrQuizNotDraft
	}
	return q, nil
}

// Create adds a draft quiz with a fresh access code.
func (s *QuizService) Create(ctx context.Context, teacherID int, req model.CreateQuizRequest) (*model.Quiz, error) {
	if !req.Deadline.After(s.now()) {
		return nil, ErrDeadlineInPast
	}
	if err := s.groups.EnsureOwned(ctx, teacherID, req.GroupIDs); err != nil {
		return nil, err
	}

	q := &model.Quiz{
		TeacherID:       teacherID,
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		DurationMinutes: req.DurationMinutes,
		Deadline:        req.Deadline.UTC(),
		Status:          model.QuizStatusDraft,
		GroupIDs:        dedupe(req.GroupIDs),
	}

	for i := 0; i < accesscode.MaxAttempts; i++ {
		code, err := accesscode.Generate(accesscode.QuizCodeLength)
		if err != nil {
			return nil, err
		}
		q.AccessCode = code
		err = s.quizRepo.Create(ctx, q)
		if err == nil {
			s.log.Info().Str("quiz_id", q.ID.String()).Int("teacher_id", teacherID).Msg("Quiz created")
			return q, nil
		}
		if !errors.Is(err, repository.ErrDuplicateAccessCode) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("generate access code: %w", ErrConflict)
}

// Update edits the metadata of a draft quiz.
func (s *QuizService) Update(ctx context.Context, teacherID int, id uuid.UUID, req model.UpdateQuizRequest) (*model.Quiz, error) {
	q, err := s.getDraft(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		q.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != nil {
		q.Description = strings.TrimSpace(*req.Description)
	}
	if req.DurationMinutes > 0 {
		q.DurationMinutes = req.DurationMinutes
	}
	if req.Deadline != nil {
		if !req.Deadline.After(s.now()) {
			return nil, ErrDeadlineInPast
		}
		q.Deadline = req.Deadline.UTC()
	}
	if err := s.quizRepo.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// Delete removes a draft quiz, or a published one nobody has attempted.
func (s *QuizService) Delete(ctx context.Context, teacherID int, id uuid.UUID) error {
	q, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return err
	}
	if q.Status == model.QuizStatusPublished {
		n, err := s.attemptRepo.CountByQuiz(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrQuizHasAttempts
		}
	}
	if err := s.quizRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// SetGroups replaces the groups assigned to a quiz. Groups of a published
// quiz may change too, so late additions can still take part.
func (s *QuizService) SetGroups(ctx context.Context, teacherID int, id uuid.UUID, groupIDs []int) (*model.Quiz, error) {
	q, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if err := s.groups.EnsureOwned(ctx, teacherID, groupIDs); err != nil {
		return nil, err
	}
	if err := s.quizRepo.SetGroups(ctx, q.ID, dedupe(groupIDs)); err != nil {
		return nil, err
	}
	return s.Get(ctx, teacherID, id)
}

// RegenerateAccessCode replaces the access code of a quiz.
func (s *QuizService) RegenerateAccessCode(ctx context.Context, teacherID int, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	for i := 0; i < accesscode.MaxAttempts; i++ {
		code, err := accesscode.Generate(accesscode.QuizCodeLength)
		if err != nil {
			return nil, err
		}
		err = s.quizRepo.UpdateAccessCode(ctx, id, code)
		if err == nil {
			q.AccessCode = code
			return q, nil
		}
		if !errors.Is(err, repository.ErrDuplicateAccessCode) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("regenerate access code: %w", ErrConflict)
}

// Publish validates a draft quiz, opens it to students and warms its cache.
func (s *QuizService) Publish(ctx context.Context, teacherID int, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.getDraft(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.ListByQuiz(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if err := checkPublishable(q, questions, s.now()); err != nil {
		return nil, err
	}

	if err := s.quizRepo.UpdateStatus(ctx, id, model.QuizStatusPublished); err != nil {
		return nil, err
	}
	q.Status = model.QuizStatusPublished
	q.RankingsCalculatedAt = nil

	if err := s.warm(ctx, q, questions); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Cache warm failed after publish")
	}
	s.log.Info().Str("quiz_id", id.String()).Int("questions", len(questions)).Msg("Quiz published")
	return q, nil
}

// Unpublish moves a published quiz back to draft while nobody has attempted it.
func (s *QuizService) Unpublish(ctx context.Context, teacherID int, id uuid.UUID) (*model.Quiz, error) {
	q, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if q.Status != model.QuizStatusPublished {
		return q, nil
	}
	n, err := s.attemptRepo.CountByQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrQuizHasAttempts
	}
	if err := s.quizRepo.UpdateStatus(ctx, id, model.QuizStatusDraft); err != nil {
		return nil, err
	}
	q.Status = model.QuizStatusDraft
	q.RankingsCalculatedAt = nil
	s.invalidate(ctx, id)
	return q, nil
}

// Paper returns the student-facing paper of a quiz, rebuilding the cache
// from PostgreSQL on a miss.
func (s *QuizService) Paper(ctx context.Context, q *model.Quiz) (*model.QuizPaper, error) {
	paper, err := s.cache.Paper(ctx, q.ID)
	if err == nil {
		return paper, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn().Err(err).Str("quiz_id", q.ID.String()).Msg("Paper cache read failed, using database")
	}

	v, err, _ := s.rebuild.Do("paper:"+q.ID.String(), func() (any, error) {
		questions, err := s.questionRepo.ListByQuiz(ctx, q.ID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		if err := s.warm(ctx, q, questions); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", q.ID.String()).Msg("Cache warm failed")
		}
		return buildPaper(q, questions), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.QuizPaper), nil
}

// AnswerKey returns the answer key of a quiz, from cache when possible.
func (s *QuizService) AnswerKey(ctx context.Context, quizID uuid.UUID) (scoring.AnswerKey, error) {
	key, err := s.cache.AnswerKey(ctx, quizID)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Answer key cache read failed, using database")
	}
	v, err, _ := s.rebuild.Do("key:"+quizID.String(), func() (any, error) {
		return s.questionRepo.AnswerKey(ctx, quizID)
	})
	if err != nil {
		return nil, err
	}
	return v.(scoring.AnswerKey), nil
}

// PrewarmAll loads every open published quiz into Redis on startup.
func (s *QuizService) PrewarmAll(ctx context.Context) error {
	quizzes, err := s.quizRepo.ListPublished(ctx, s.now())
	if err != nil {
		return fmt.Errorf("list published quizzes: %w", err)
	}

	warmed := 0
	for i := range quizzes {
		questions, err := s.questionRepo.ListByQuiz(ctx, quizzes[i].ID)
		if err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizzes[i].ID.String()).Msg("Failed to load quiz, skipping")
			continue
		}
		if err := s.warm(ctx, &quizzes[i], questions); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizzes[i].ID.String()).Msg("Failed to warm quiz, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().Int("warmed", warmed).Int("total", len(quizzes)).Msg("Prewarming complete")
	return nil
}

func (s *QuizService) warm(ctx context.Context, q *model.Quiz, questions []model.Question) error {
	key := make(scoring.AnswerKey, len(questions))
	for _, qs := range questions {
		correct := make([]uuid.UUID, 0, 1)
		for _, a := range qs.Answers {
			if a.IsCorrect {
				correct = append(correct, a.ID)
			}
		}
		key[qs.ID] = correct
	}
	return s.cache.Store(ctx, buildPaper(q, questions), key)
}

func (s *QuizService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Cache invalidation failed")
	}
}

func buildPaper(q *model.Quiz, questions []model.Question) *model.QuizPaper {
	paper := &model.QuizPaper{
		QuizID:    q.ID,
		Title:     q.Title,
		Duration:  q.DurationMinutes,
		Deadline:  q.Deadline,
		Questions: make([]model.QuestionForStudent, len(questions)),
	}
	for i, qs := range questions {
		answers := make([]model.AnswerForStudent, len(qs.Answers))
		for j, a := range qs.Answers {
			answers[j] = model.AnswerForStudent{ID: a.ID, AnswerText: a.AnswerText, OrderNum: a.OrderNum}
		}
		paper.Questions[i] = model.QuestionForStudent{
			ID:           qs.ID,
			QuestionText: qs.QuestionText,
			QuestionType: qs.QuestionType,
			ImageURL:     qs.ImageURL,
			OrderNum:     qs.OrderNum,
			Answers:      answers,
		}
	}
	return paper
}

func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
