package handler

import (
	"net/http"

	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// QuizHandler handles quiz management endpoints.
type QuizHandler struct {
	quizService *service.QuizService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

type listQuizzesQuery struct {
	PageQuery
	Status string `form:"status" binding:"omitempty,oneof=DRAFT PUBLISHED"`
}

// ListQuizzes godoc
// GET /api/v1/quizzes
// Lists the teacher's quizzes with pagination, optionally filtered by status.
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	var q listQuizzesQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var status *model.QuizStatus
	if q.Status != "" {
		s := model.QuizStatus(q.Status)
		status = &s
	}

	quizzes, pagination, err := h.quizService.List(c.Request.Context(), middleware.GetClaims(c).UserID, status, q.Page, q.PerPage)
	if err != nil {
		failWith(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"quizzes": quizzes}, pagination)
}

// CreateQuiz godoc
// POST /api/v1/quizzes
// Creates a draft quiz with a fresh access code.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Create(c.Request.Context(), middleware.GetClaims(c).UserID, req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// GetQuiz godoc
// GET /api/v1/quizzes/:id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.Get(c.Request.Context(), middleware.GetClaims(c).UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// UpdateQuiz godoc
// PATCH /api/v1/quizzes/:id
// Updates a draft quiz. Omitted fields keep their value.
func (h *QuizHandler) UpdateQuiz(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Update(c.Request.Context(), middleware.GetClaims(c).UserID, id, req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// DeleteQuiz godoc
// DELETE /api/v1/quizzes/:id
// Deletes a draft, or a published quiz nobody has attempted.
func (h *QuizHandler) DeleteQuiz(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.quizService.Delete(c.Request.Context(), middleware.GetClaims(c).UserID, id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "quiz deleted successfully"})
}

// SetGroups godoc
// PUT /api/v1/quizzes/:id/groups
// Replaces the groups allowed to take the quiz.
func (h *QuizHandler) SetGroups(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req model.SetQuizGroupsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.SetGroups(c.Request.Context(), middleware.GetClaims(c).UserID, id, req.GroupIDs)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// RegenerateAccessCode godoc
// POST /api/v1/quizzes/:id/regenerate-code
func (h *QuizHandler) RegenerateAccessCode(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.RegenerateAccessCode(c.Request.Context(), middleware.GetClaims(c).UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// PublishQuiz godoc
// POST /api/v1/quizzes/:id/publish
// Publishes a ready quiz and warms the paper cache.
func (h *QuizHandler) PublishQuiz(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.Publish(c.Request.Context(), middleware.GetClaims(c).UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// UnpublishQuiz godoc
// POST /api/v1/quizzes/:id/unpublish
// Returns a quiz without attempts to draft.
func (h *QuizHandler) UnpublishQuiz(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.Unpublish(c.Request.Context(), middleware.GetClaims(c).UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}
