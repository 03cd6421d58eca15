package handler

import (
	"net/http"

	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PlayHandler serves the student side of a quiz: join, answer and finish.
type PlayHandler struct {
	attemptService *service.AttemptService
}

// NewPlayHandler creates a new PlayHandler.
func NewPlayHandler(attemptService *service.AttemptService) *PlayHandler {
	return &PlayHandler{attemptService: attemptService}
}

// attemptID reads the attempt bound to the request's attempt token.
func attemptID(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, false
	}
	id, err := claims.AttemptUUID()
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return uuid.Nil, false
	}
	return id, true
}

// JoinQuiz godoc
// POST /api/v1/play/join
// Resolves an access code and student code, creating or resuming the
// attempt, and returns an attempt token.
func (h *PlayHandler) JoinQuiz(c *gin.Context) {
	var req model.JoinQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.attemptService.Join(c.Request.Context(), req.AccessCode, req.StudentCode)
	if err != nil {
		failWith(c, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed || res.Attempt.Status.Finished() {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// GetState godoc
// GET /api/v1/play/state
// Returns remaining time, saved selections and the resume point.
func (h *PlayHandler) GetState(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	state, err := h.attemptService.State(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetPaper godoc
// GET /api/v1/play/paper
// Returns the questions of the attempt's quiz without correctness flags.
func (h *PlayHandler) GetPaper(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	paper, err := h.attemptService.Paper(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// SaveAnswer godoc
// PUT /api/v1/play/answers/:question_id
// Replaces the selection for one question. An empty list clears it.
func (h *PlayHandler) SaveAnswer(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}
	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.attemptService.SaveAnswer(c.Request.Context(), id, questionID, req.AnswerIDs)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// CompleteAttempt godoc
// POST /api/v1/play/complete
// Finishes the attempt and returns the score. Calling it again returns the
// same result.
func (h *PlayHandler) CompleteAttempt(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	res, err := h.attemptService.Complete(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// GetResult godoc
// GET /api/v1/play/result
// Returns the score and, once rankings are calculated, the rank.
func (h *PlayHandler) GetResult(c *gin.Context) {
	id, ok := attemptID(c)
	if !ok {
		return
	}

	res, err := h.attemptService.Result(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}
