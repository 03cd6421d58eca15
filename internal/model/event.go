package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptEventType names a lifecycle transition of an attempt.
type AttemptEventType string

const (
	EventJoined      AttemptEventType = "joined"
	EventResumed     AttemptEventType = "resumed"
	EventAnswerSaved AttemptEventType = "answer_saved"
	EventCompleted   AttemptEventType = "completed"
	EventTimedOut    AttemptEventType = "timed_out"
	EventReset       AttemptEventType = "reset"
	EventRanked      AttemptEventType = "ranked"
)

// AttemptEvent is one entry of the attempt activity log. It is also the
// message published to the quiz monitor channel.
type AttemptEvent struct {
	AttemptID uuid.UUID        `json:"attempt_id"`
	QuizID    uuid.UUID        `json:"quiz_id"`
	StudentID int              `json:"student_id"`
	Type      AttemptEventType `json:"type"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// MonitorStats counts the attempts of a quiz by state.
type MonitorStats struct {
	Joined     int `json:"total_joined"`
	InProgress int `json:"total_in_progress"`
	Completed  int `json:"total_completed"`
	TimedOut   int `json:"total_timed_out"`
}

// MonitorSnapshot is the first message of a live monitor stream.
type MonitorSnapshot struct {
	Quiz     QuizSummary    `json:"quiz"`
	Stats    MonitorStats   `json:"stats"`
	Attempts []AttemptRow   `json:"attempts"`
	Events   []AttemptEvent `json:"recent_events"`
}
