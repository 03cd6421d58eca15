package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultHandler serves attempts, rankings and their exports to teachers.
type ResultHandler struct {
	rankingService *service.RankingService
	attemptService *service.AttemptService
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(rankingService *service.RankingService, attemptService *service.AttemptService) *ResultHandler {
	return &ResultHandler{
		rankingService: rankingService,
		attemptService: attemptService,
	}
}

type listAttemptsQuery struct {
	PageQuery
	GroupID int `form:"group_id" binding:"omitempty,min=1"`
}

// ListAttempts godoc
// GET /api/v1/quizzes/:id/attempts
// Lists the attempts of a quiz, optionally for one group.
func (h *ResultHandler) ListAttempts(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var q listAttemptsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var groupID *int
	if q.GroupID > 0 {
		groupID = &q.GroupID
	}

	rows, pagination, err := h.rankingService.Attempts(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, groupID, q.Page, q.PerPage)
	if err != nil {
		failWith(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": rows}, pagination)
}

// RecalculateRankings godoc
// POST /api/v1/quizzes/:id/rankings
// Ranks finished attempts. Returns 409 before the deadline.
func (h *ResultHandler) RecalculateRankings(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	res, err := h.rankingService.Recalculate(c.Request.Context(), middleware.GetClaims(c).UserID, quizID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

type leaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// GetLeaderboard godoc
// GET /api/v1/quizzes/:id/leaderboard
// Returns ranked rows after the deadline, the provisional order before it.
func (h *ResultHandler) GetLeaderboard(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var q leaderboardQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	board, err := h.rankingService.Leaderboard(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, q.Limit)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, board)
}

// GetLeaderboardImage godoc
// GET /api/v1/quizzes/:id/leaderboard.png
// Renders the top of the leaderboard as a shareable PNG.
func (h *ResultHandler) GetLeaderboardImage(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	img, err := h.rankingService.LeaderboardImage(c.Request.Context(), middleware.GetClaims(c).UserID, quizID)
	if err != nil {
		failWith(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", img)
}

// ExportResults godoc
// GET /api/v1/quizzes/:id/results.xlsx
// Downloads every attempt of the quiz as an XLSX workbook.
func (h *ResultHandler) ExportResults(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var buf bytes.Buffer
	name, err := h.rankingService.Export(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, &buf)
	if err != nil {
		failWith(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ResetAttempt godoc
// DELETE /api/v1/quizzes/:id/attempts/:student_id
// Deletes a student's attempt so they can take the quiz again.
func (h *ResultHandler) ResetAttempt(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	studentID, ok := intParam(c, "student_id")
	if !ok {
		return
	}

	if err := h.attemptService.Reset(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, studentID); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "attempt reset successfully"})
}
