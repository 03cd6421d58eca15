package websocket

import (
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
	ActionState    Action = "state"
)

// Request is every message a client sends. Only autosave uses the
// question and answer fields. Ref is echoed back so clients can match replies.
type Request struct {
	Action     Action      `json:"action"`
	Ref        string      `json:"ref,omitempty"`
	QuestionID uuid.UUID   `json:"q_id"`
	AnswerIDs  []uuid.UUID `json:"answer_ids"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventCompleted Event = "completed"
	EventState     Event = "state"
	EventPong      Event = "pong"
)

type SavedResponse struct {
	Event            Event     `json:"event"`
	Ref              string    `json:"ref,omitempty"`
	QuestionID       uuid.UUID `json:"q_id"`
	RemainingSeconds float64   `json:"remaining_seconds"`
}

type CompletedResponse struct {
	Event  Event                `json:"event"`
	Ref    string               `json:"ref,omitempty"`
	Result *model.AttemptResult `json:"result"`
}

type StateResponse struct {
	Event Event               `json:"event"`
	Ref   string              `json:"ref,omitempty"`
	State *model.AttemptState `json:"state"`
}

type PongResponse struct {
	Event      Event     `json:"event"`
	Ref        string    `json:"ref,omitempty"`
	ServerTime time.Time `json:"server_time"`
}

// ErrorResponse carries the same codes as the REST error envelope.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Ref   string `json:"ref,omitempty"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
