package repository

import (
	"context"
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DashboardRepository handles teacher dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts returns the group, student and attempt totals of a teacher.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context, teacherID int) (groups, students, attempts int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM groups WHERE teacher_id = $1),
			(SELECT COUNT(*) FROM students s JOIN groups g ON g.id = s.group_id WHERE g.teacher_id = $1),
			(SELECT COUNT(*) FROM quiz_attempts a JOIN quizzes q ON q.id = a.quiz_id WHERE q.teacher_id = $1)`,
		teacherID,
	).Scan(&groups, &students, &attempts)
	return
}

// GetQuizStatusCounts returns the distribution of a teacher's quizzes by status.
func (r *DashboardRepository) GetQuizStatusCounts(ctx context.Context, teacherID int) (map[model.QuizStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM quizzes WHERE teacher_id = $1 GROUP BY status`, teacherID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[model.QuizStatus]int{
		model.QuizStatusDraft:     0,
		model.QuizStatusPublished: 0,
	}
	for rows.Next() {
		var status model.QuizStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// DashboardRecentQuiz is a compact quiz row with attempt statistics.
type DashboardRecentQuiz struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	Status           model.QuizStatus `json:"status"`
	Deadline         time.Time        `json:"deadline"`
	ParticipantCount int              `json:"participant_count"`
	FinishedCount    int              `json:"finished_count"`
	AverageScore     *float64         `json:"average_score"`
}

// GetRecentQuizzes returns a teacher's most recently created quizzes.
func (r *DashboardRepository) GetRecentQuizzes(ctx context.Context, teacherID, limit int) ([]DashboardRecentQuiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.title, q.status, q.deadline,
		        COUNT(a.id),
		        COUNT(a.id) FILTER (WHERE a.status <> 'IN_PROGRESS'),
		        AVG(a.score) FILTER (WHERE a.status <> 'IN_PROGRESS')
		 FROM quizzes q
		 LEFT JOIN quiz_attempts a ON a.quiz_id = q.id
		 WHERE q.teacher_id = $1
		 GROUP BY q.id
		 ORDER BY q.created_at DESC
		 LIMIT $2`,
		teacherID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := make([]DashboardRecentQuiz, 0)
	for rows.Next() {
		var q DashboardRecentQuiz
		if err := rows.Scan(&q.ID, &q.Title, &q.Status, &q.Deadline, &q.ParticipantCount, &q.FinishedCount, &q.AverageScore); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}
