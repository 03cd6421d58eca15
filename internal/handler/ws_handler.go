package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	ws "github.com/classquiz/classquiz-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// actionTimeout bounds the work done for one WebSocket message.
const actionTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams quiz play over a WebSocket. Its actions mirror the
// play REST endpoints.
type WSHandler struct {
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// PlayStream godoc
// WS /ws/v1/play?token=...
// Upgrades to WebSocket for autosave and submit.
func (h *WSHandler) PlayStream(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	// Refuse before upgrading so the client gets a proper HTTP error.
	state, err := h.attemptService.State(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	if state.Attempt.Status.Finished() {
		response.Fail(c, http.StatusConflict, response.ErrAttemptFinished)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("attempt_id", id.String()).
		Str("quiz_id", state.Attempt.QuizID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		done := h.handle(conn, wsLog, id, &msg)
		if done {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt finished"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// handle runs one action and reports whether the attempt is over.
func (h *WSHandler) handle(conn *websocket.Conn, wsLog zerolog.Logger, id uuid.UUID, msg *ws.Request) bool {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	switch msg.Action {
	case ws.ActionAutosave:
		if msg.QuestionID == uuid.Nil {
			ws.WriteError(conn, msg.Ref, string(response.ErrValidation), "q_id is required")
			return false
		}
		state, err := h.attemptService.SaveAnswer(ctx, id, msg.QuestionID, msg.AnswerIDs)
		if err != nil {
			return h.writeErr(conn, wsLog, msg.Ref, err)
		}
		ws.WriteTyped(conn, ws.SavedResponse{
			Event:            ws.EventSaved,
			Ref:              msg.Ref,
			QuestionID:       msg.QuestionID,
			RemainingSeconds: state.RemainingSeconds,
		})

	case ws.ActionSubmit:
		res, err := h.attemptService.Complete(ctx, id)
		if err != nil {
			return h.writeErr(conn, wsLog, msg.Ref, err)
		}
		wsLog.Info().Int("score", res.Attempt.Score).Msg("Attempt submitted")
		ws.WriteTyped(conn, ws.CompletedResponse{Event: ws.EventCompleted, Ref: msg.Ref, Result: res})
		return true

	case ws.ActionState:
		state, err := h.attemptService.State(ctx, id)
		if err != nil {
			return h.writeErr(conn, wsLog, msg.Ref, err)
		}
		ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, Ref: msg.Ref, State: state})
		return state.Attempt.Status.Finished()

	case ws.ActionPing:
		ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, Ref: msg.Ref, ServerTime: time.Now().UTC()})

	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		ws.WriteError(conn, msg.Ref, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
	}
	return false
}

// writeErr reports err to the client. Time-up and finished attempts end
// the stream.
func (h *WSHandler) writeErr(conn *websocket.Conn, wsLog zerolog.Logger, ref string, err error) bool {
	status, code, _ := classify(err)
	if status == http.StatusInternalServerError {
		wsLog.Error().Err(err).Msg("Action failed")
	}
	ws.WriteError(conn, ref, string(code), response.GetMessage(code))
	return code == response.ErrTimeUp || code == response.ErrAttemptFinished
}
