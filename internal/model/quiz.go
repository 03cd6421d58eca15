package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizStatus enumerates the possible states of a quiz.
type QuizStatus string

const (
	QuizStatusDraft     QuizStatus = "DRAFT"
	QuizStatusPublished QuizStatus = "PUBLISHED"
)

// Quiz is a teacher's quiz session. Students reach it through AccessCode.
type Quiz struct {
	ID                   uuid.UUID  `json:"id"`
	TeacherID            int        `json:"teacher_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	AccessCode           string     `json:"access_code"`
	DurationMinutes      int        `json:"duration_minutes"`
	Deadline             time.Time  `json:"deadline"`
	Status               QuizStatus `json:"status"`
	RankingsCalculatedAt *time.Time `json:"rankings_calculated_at,omitempty"`
	GroupIDs             []int      `json:"group_ids"`
	QuestionCount        int        `json:"question_count"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Duration returns the per-attempt time allowance.
func (q *Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// DeadlinePassed reports whether the quiz no longer accepts answers at now.
func (q *Quiz) DeadlinePassed(now time.Time) bool {
	return !now.Before(q.Deadline)
}

// CreateQuizRequest is the payload for creating a new quiz.
type CreateQuizRequest struct {
	Title           string    `json:"title" binding:"required,min=3,max=255"`
	Description     string    `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int       `json:"duration_minutes" binding:"required,min=1,max=480"`
	Deadline        time.Time `json:"deadline" binding:"required"`
	GroupIDs        []int     `json:"group_ids" binding:"omitempty,dive,min=1"`
}

// UpdateQuizRequest is the payload for updating a draft quiz.
type UpdateQuizRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string    `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Deadline        *time.Time `json:"deadline" binding:"omitempty"`
}

// SetQuizGroupsRequest replaces the set of groups a quiz is assigned to.
type SetQuizGroupsRequest struct {
	GroupIDs []int `json:"group_ids" binding:"required,min=1,dive,min=1"`
}

// QuizPaper is the Redis-cached payload sent to students (no correctness flags).
type QuizPaper struct {
	QuizID    uuid.UUID            `json:"quiz_id"`
	Title     string               `json:"title"`
	Duration  int                  `json:"duration_minutes"`
	Deadline  time.Time            `json:"deadline"`
	Questions []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answers, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID          `json:"id"`
	QuestionText string             `json:"question_text"`
	QuestionType QuestionType       `json:"question_type"`
	ImageURL     *string            `json:"image_url,omitempty"`
	OrderNum     int                `json:"order_num"`
	Answers      []AnswerForStudent `json:"answers"`
}

// AnswerForStudent is an answer option without its correctness flag.
type AnswerForStudent struct {
	ID         uuid.UUID `json:"id"`
	AnswerText string    `json:"answer_text"`
	OrderNum   int       `json:"order_num"`
}

// Summary returns the student-visible part of q.
func (q *Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		DurationMinutes: q.DurationMinutes,
		Deadline:        q.Deadline,
		QuestionCount:   q.QuestionCount,
	}
}
