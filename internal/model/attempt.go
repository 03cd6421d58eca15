package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates quiz attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusCompleted  AttemptStatus = "COMPLETED"
	AttemptStatusTimedOut   AttemptStatus = "TIMED_OUT"
)

// Finished reports whether s is a terminal state.
func (s AttemptStatus) Finished() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusTimedOut
}

// QuizAttempt is a student's single attempt at a quiz.
type QuizAttempt struct {
	ID               uuid.UUID     `json:"id"`
	QuizID           uuid.UUID     `json:"quiz_id"`
	StudentID        int           `json:"student_id"`
	Status           AttemptStatus `json:"status"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	Score            int           `json:"score"`
	TotalQuestions   int           `json:"total_questions"`
	TimeTakenSeconds *int          `json:"time_taken_seconds,omitempty"`
	Ranking          *int          `json:"ranking,omitempty"`
}

// Percentage returns the share of correct questions, 0 when the quiz has none.
func (a *QuizAttempt) Percentage() float64 {
	if a.TotalQuestions == 0 {
		return 0
	}
	return float64(a.Score) / float64(a.TotalQuestions) * 100
}

// JoinQuizRequest is the payload a student sends to enter a quiz.
type JoinQuizRequest struct {
	AccessCode  string `json:"access_code" binding:"required,min=4,max=12"`
	StudentCode string `json:"student_code" binding:"required,min=4,max=12"`
}

// JoinQuizResponse is returned after a successful join or resume.
type JoinQuizResponse struct {
	Token   string       `json:"token"`
	Attempt *QuizAttempt `json:"attempt"`
	Quiz    QuizSummary  `json:"quiz"`
	Student Student      `json:"student"`
	Resumed bool         `json:"resumed"`
}

// QuizSummary is the subset of quiz fields a student may see.
type QuizSummary struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"duration_minutes"`
	Deadline        time.Time `json:"deadline"`
	QuestionCount   int       `json:"question_count"`
}

// SaveAnswerRequest replaces the selected options for one question.
// An empty list clears the question.
type SaveAnswerRequest struct {
	AnswerIDs []uuid.UUID `json:"answer_ids" binding:"omitempty,max=10"`
}

// AttemptState is returned on reload so the client can restore its screen.
type AttemptState struct {
	Attempt          *QuizAttempt              `json:"attempt"`
	RemainingSeconds float64                   `json:"remaining_seconds"`
	EndsAt           time.Time                 `json:"ends_at"`
	Selections       map[uuid.UUID][]uuid.UUID `json:"selections"`
	CurrentQuestion  int                       `json:"current_question"`
	TotalQuestions   int                       `json:"total_questions"`
}

// AttemptResult is shown to the student after finishing.
type AttemptResult struct {
	Attempt         *QuizAttempt `json:"attempt"`
	Percentage      float64      `json:"percentage"`
	RankingReleased bool         `json:"ranking_released"`
}

// AttemptRow combines an attempt with student data for teacher-facing lists.
type AttemptRow struct {
	AttemptID        uuid.UUID     `json:"attempt_id"`
	StudentID        int           `json:"student_id"`
	StudentName      string        `json:"student_name"`
	GroupID          int           `json:"group_id"`
	GroupName        string        `json:"group_name"`
	Status           AttemptStatus `json:"status"`
	Score            int           `json:"score"`
	TotalQuestions   int           `json:"total_questions"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	TimeTakenSeconds *int          `json:"time_taken_seconds,omitempty"`
	Ranking          *int          `json:"ranking,omitempty"`
	AnsweredCount    int           `json:"answered_count"`
}

// Leaderboard is the ranked list of finished attempts of a quiz. Final is
// false before the deadline, when the order is provisional.
type Leaderboard struct {
	Quiz                 QuizSummary  `json:"quiz"`
	Final                bool         `json:"final"`
	RankingsCalculatedAt *time.Time   `json:"rankings_calculated_at,omitempty"`
	Rows                 []AttemptRow `json:"rows"`
}

// RankingResult reports a ranking recalculation.
type RankingResult struct {
	QuizID               uuid.UUID `json:"quiz_id"`
	Ranked               int64     `json:"ranked"`
	Finalized            int       `json:"finalized"`
	RankingsCalculatedAt time.Time `json:"rankings_calculated_at"`
}
