package service

import (
	"context"
	"time"

	"github.com/classquiz/classquiz-backend/internal/cache"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	recentEventWindow = time.Hour
	recentEventLimit  = 50
)

// MonitorService builds the live view of a running quiz.
type MonitorService struct {
	quizzes     *QuizService
	attemptRepo *repository.AttemptRepository
	eventRepo   *repository.EventRepository
	events      *cache.EventQueue
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	quizzes *QuizService,
	attemptRepo *repository.AttemptRepository,
	eventRepo *repository.EventRepository,
	events *cache.EventQueue,
) *MonitorService {
	return &MonitorService{
		quizzes:     quizzes,
		attemptRepo: attemptRepo,
		eventRepo:   eventRepo,
		events:      events,
	}
}

// Snapshot returns every attempt of one of the teacher's quizzes plus the
// most recent persisted events. Both are fetched in parallel.
func (s *MonitorService) Snapshot(ctx context.Context, teacherID int, quizID uuid.UUID) (*model.MonitorSnapshot, error) {
	quiz, err := s.quizzes.Get(ctx, teacherID, quizID)
	if err != nil {
		return nil, err
	}

	snap := &model.MonitorSnapshot{Quiz: quiz.Summary()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, _, err := s.attemptRepo.ListByQuiz(gctx, quizID, nil, 0, 0)
		snap.Attempts = rows
		return err
	})
	g.Go(func() error {
		evs, err := s.eventRepo.ListRecentByQuiz(gctx, quizID, time.Now().Add(-recentEventWindow), recentEventLimit)
		snap.Events = evs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.Stats = countStats(snap.Attempts)
	return snap, nil
}

// Stats recounts the attempts of a quiz for periodic refreshes.
func (s *MonitorService) Stats(ctx context.Context, quizID uuid.UUID) (model.MonitorStats, error) {
	rows, _, err := s.attemptRepo.ListByQuiz(ctx, quizID, nil, 0, 0)
	if err != nil {
		return model.MonitorStats{}, err
	}
	return countStats(rows), nil
}

// Subscribe follows the live event channel of a quiz. The caller closes it.
func (s *MonitorService) Subscribe(ctx context.Context, quizID uuid.UUID) *redis.PubSub {
	return s.events.Subscribe(ctx, quizID)
}

func countStats(rows []model.AttemptRow) model.MonitorStats {
	st := model.MonitorStats{Joined: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case model.AttemptStatusInProgress:
			st.InProgress++
		case model.AttemptStatusCompleted:
			st.Completed++
		case model.AttemptStatusTimedOut:
			st.TimedOut++
		}
	}
	return st
}
