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

// QuestionHandler handles question management endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListQuestions godoc
// GET /api/v1/quizzes/:id/questions
// Lists the questions of a quiz in order, answers included.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	questions, err := h.questionService.List(c.Request.Context(), middleware.GetClaims(c).UserID, quizID)
	if err != nil {
		failWith(c, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/quizzes/:id/questions
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Add(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// ReplaceQuestions godoc
// PUT /api/v1/quizzes/:id/questions
// Replaces every question of a draft quiz in one transaction.
func (h *QuestionHandler) ReplaceQuestions(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.questionService.ReplaceAll(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, req.Questions)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// UpdateQuestion godoc
// PUT /api/v1/quizzes/:id/questions/:question_id
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, questionID, req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/quizzes/:id/questions/:question_id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := uuidParam(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, questionID); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "question deleted successfully"})
}

// ReorderQuestions godoc
// POST /api/v1/quizzes/:id/questions/reorder
// Sets the order of every question of the quiz.
func (h *QuestionHandler) ReorderQuestions(c *gin.Context) {
	quizID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req model.ReorderQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.questionService.Reorder(c.Request.Context(), middleware.GetClaims(c).UserID, quizID, req.QuestionIDs)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}
