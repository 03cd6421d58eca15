package service

import (
	"context"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DashboardData consolidates the metrics shown on a teacher's dashboard.
type DashboardData struct {
	TotalGroups      int                              `json:"total_groups"`
	TotalStudents    int                              `json:"total_students"`
	TotalAttempts    int                              `json:"total_attempts"`
	QuizStatusCounts map[model.QuizStatus]int         `json:"quiz_status_counts"`
	RecentQuizzes    []repository.DashboardRecentQuiz `json:"recent_quizzes"`
}

// DashboardService handles teacher dashboard business logic.
type DashboardService struct {
	repo *repository.DashboardRepository
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo *repository.DashboardRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

// GetDashboardData fetches the dashboard metrics of a teacher concurrently.
func (s *DashboardService) GetDashboardData(ctx context.Context, teacherID int) (*DashboardData, error) {
	data := &DashboardData{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		data.TotalGroups, data.TotalStudents, data.TotalAttempts, err = s.repo.GetSummaryCounts(gctx, teacherID)
		return err
	})
	g.Go(func() error {
		var err error
		data.QuizStatusCounts, err = s.repo.GetQuizStatusCounts(gctx, teacherID)
		return err
	})
	g.Go(func() error {
		var err error
		data.RecentQuizzes, err = s.repo.GetRecentQuizzes(gctx, teacherID, 5)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}
