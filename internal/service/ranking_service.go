package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/classquiz/classquiz-backend/internal/cache"
	"github.com/classquiz/classquiz-backend/internal/leaderboard"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/spreadsheet"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RankingService handles results, rankings and their exports.
type RankingService struct {
	attemptRepo *repository.AttemptRepository
	quizRepo    *repository.QuizRepository
	quizzes     *QuizService
	attempts    *AttemptService
	images      *cache.ImageCache
	imageRows   int
	log         zerolog.Logger
	now         func() time.Time
}

// NewRankingService creates a new RankingService. imageRows bounds the
// number of rows drawn on a leaderboard image.
func NewRankingService(
	attemptRepo *repository.AttemptRepository,
	quizRepo *repository.QuizRepository,
	quizzes *QuizService,
	attempts *AttemptService,
	images *cache.ImageCache,
	imageRows int,
	log zerolog.Logger,
) *RankingService {
	return &RankingService{
		attemptRepo: attemptRepo,
		quizRepo:    quizRepo,
		quizzes:     quizzes,
		attempts:    attempts,
		images:      images,
		imageRows:   imageRows,
		log:         log.With().Str("component", "ranking_service").Logger(),
		now:         time.Now,
	}
}

// Attempts returns a page of attempts of one of the teacher's quizzes.
func (s *RankingService) Attempts(ctx context.Context, teacherID int, quizID uuid.UUID, groupID *int, page, perPage int) ([]model.AttemptRow, *response.Pagination, error) {
	if _, err := s.quizzes.Get(ctx, teacherID, quizID); err != nil {
		return nil, nil, err
	}
	page, perPage, offset := pageBounds(page, perPage)
	rows, total, err := s.attemptRepo.ListByQuiz(ctx, quizID, groupID, perPage, offset)
	if err != nil {
		return nil, nil, err
	}
	return rows, response.NewPagination(page, perPage, total), nil
}

// Recalculate ranks one of the teacher's quizzes. It fails with
// ErrDeadlineNotPassed while the quiz is still open.
func (s *RankingService) Recalculate(ctx context.Context, teacherID int, quizID uuid.UUID) (*model.RankingResult, error) {
	quiz, err := s.quizzes.Get(ctx, teacherID, quizID)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, quiz)
}

// RecalculateByID ranks a quiz regardless of owner. Used by the admin CLI.
func (s *RankingService) RecalculateByID(ctx context.Context, quizID uuid.UUID) (*model.RankingResult, error) {
	quiz, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, quiz)
}

func (s *RankingService) rank(ctx context.Context, quiz *model.Quiz) (*model.RankingResult, error) {
	now := s.now()
	if err := checkRankable(quiz, now); err != nil {
		return nil, err
	}

	finalized, err := s.attempts.FinalizeQuiz(ctx, quiz)
	if err != nil {
		return nil, fmt.Errorf("finalize attempts: %w", err)
	}
	ranked, err := s.attemptRepo.RecalculateRankings(ctx, quiz.ID, now)
	if err != nil {
		return nil, fmt.Errorf("recalculate rankings: %w", err)
	}
	quiz.RankingsCalculatedAt = &now

	s.log.Info().
		Str("quiz_id", quiz.ID.String()).
		Int64("ranked", ranked).
		Int("finalized", finalized).
		Msg("Rankings calculated")

	return &model.RankingResult{
		QuizID:               quiz.ID,
		Ranked:               ranked,
		Finalized:            finalized,
		RankingsCalculatedAt: now,
	}, nil
}

// RankDue ranks up to limit published quizzes whose deadline passed and
// which were never ranked. Returns how many quizzes were ranked.
func (s *RankingService) RankDue(ctx context.Context, limit int) (int, error) {
	quizzes, err := s.quizRepo.ListDueForRanking(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list due quizzes: %w", err)
	}
	done := 0
	for i := range quizzes {
		if _, err := s.rank(ctx, &quizzes[i]); err != nil {
			s.log.Error().Err(err).Str("quiz_id", quizzes[i].ID.String()).Msg("Background ranking failed")
			continue
		}
		done++
	}
	return done, nil
}

// Leaderboard returns the ranked rows of a quiz. After the deadline the
// ranking is brought up to date first; before it the order is provisional
// and ranks are left empty.
func (s *RankingService) Leaderboard(ctx context.Context, teacherID int, quizID uuid.UUID, limit int) (*model.Leaderboard, error) {
	quiz, err := s.quizzes.Get(ctx, teacherID, quizID)
	if err != nil {
		return nil, err
	}
	return s.leaderboard(ctx, quiz, limit)
}

// checkRankable fails unless quiz is published and its deadline passed.
func checkRankable(quiz *model.Quiz, now time.Time) error {
	if quiz.Status != model.QuizStatusPublished {
		return ErrQuizNotPublished
	}
	if !quiz.DeadlinePassed(now) {
		return ErrDeadlineNotPassed
	}
	return nil
}

func (s *RankingService) leaderboard(ctx context.Context, quiz *model.Quiz, limit int) (*model.Leaderboard, error) {
	final := checkRankable(quiz, s.now()) == nil
	if final {
		if quiz.RankingsCalculatedAt == nil {
			if _, err := s.rank(ctx, quiz); err != nil {
				return nil, err
			}
		} else if n, err := s.attempts.FinalizeQuiz(ctx, quiz); err != nil {
			return nil, err
		} else if n > 0 {
			if _, err := s.rank(ctx, quiz); err != nil {
				return nil, err
			}
		}
	}

	rows, err := s.attemptRepo.Leaderboard(ctx, quiz.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if !final {
		for i := range rows {
			rows[i].Ranking = nil
		}
	}

	return &model.Leaderboard{
		Quiz:                 quiz.Summary(),
		Final:                final,
		RankingsCalculatedAt: quiz.RankingsCalculatedAt,
		Rows:                 rows,
	}, nil
}

// LeaderboardImage renders the top rows of a quiz as a PNG. Final
// leaderboards are cached per ranking version.
func (s *RankingService) LeaderboardImage(ctx context.Context, teacherID int, quizID uuid.UUID) ([]byte, error) {
	quiz, err := s.quizzes.Get(ctx, teacherID, quizID)
	if err != nil {
		return nil, err
	}
	board, err := s.leaderboard(ctx, quiz, s.imageRows)
	if err != nil {
		return nil, err
	}

	var version int64
	if board.Final && board.RankingsCalculatedAt != nil {
		version = board.RankingsCalculatedAt.UnixNano()
		img, err := s.images.Get(ctx, quizID, version)
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Leaderboard image cache read failed")
		}
	}

	entries := make([]leaderboard.Entry, len(board.Rows))
	for i, r := range board.Rows {
		e := leaderboard.Entry{
			Name:      r.StudentName,
			Group:     r.GroupName,
			Score:     r.Score,
			Total:     r.TotalQuestions,
			TimeTaken: r.TimeTakenSeconds,
		}
		if r.Ranking != nil {
			e.Rank = *r.Ranking
		}
		entries[i] = e
	}

	subtitle := "Provisional order, deadline " + quiz.Deadline.UTC().Format("2006-01-02 15:04 MST")
	if board.Final {
		subtitle = "Final ranking"
	}
	img, err := leaderboard.Render(entries, leaderboard.Options{
		Title:    quiz.Title,
		Subtitle: subtitle,
		MaxRows:  s.imageRows,
	})
	if err != nil {
		return nil, err
	}

	if version != 0 {
		if err := s.images.Set(ctx, quizID, version, img); err != nil {
			s.log.Warn().Err(err).Str("quiz_id", quizID.String()).Msg("Leaderboard image cache write failed")
		}
	}
	return img, nil
}

// Export writes every attempt of a quiz as an XLSX workbook to w and
// returns a file name for it.
func (s *RankingService) Export(ctx context.Context, teacherID int, quizID uuid.UUID, w io.Writer) (string, error) {
	quiz, err := s.quizzes.Get(ctx, teacherID, quizID)
	if err != nil {
		return "", err
	}
	board, err := s.leaderboard(ctx, quiz, 0)
	if err != nil {
		return "", err
	}
	rows := board.Rows

	// Running attempts are not on the leaderboard but still belong in the export.
	all, _, err := s.attemptRepo.ListByQuiz(ctx, quizID, nil, 0, 0)
	if err != nil {
		return "", err
	}
	for _, r := range all {
		if r.Status == model.AttemptStatusInProgress {
			rows = append(rows, r)
		}
	}

	if err := spreadsheet.WriteResults(w, spreadsheet.Results{
		QuizTitle: quiz.Title,
		Deadline:  quiz.Deadline,
		Rows:      rows,
	}); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return fmt.Sprintf("results-%s.xlsx", quiz.AccessCode), nil
}
