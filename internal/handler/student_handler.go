package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/classquiz/classquiz-backend/internal/middleware"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/validator"
	"github.com/gin-gonic/gin"
)

// maxImportSize bounds an uploaded student spreadsheet.
const maxImportSize = 5 << 20

// StudentHandler handles teacher-facing student management.
type StudentHandler struct {
	studentService *service.StudentService
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(studentService *service.StudentService) *StudentHandler {
	return &StudentHandler{studentService: studentService}
}

// ListStudents godoc
// GET /api/v1/groups/:id/students
// Lists the students of a group with pagination.
func (h *StudentHandler) ListStudents(c *gin.Context) {
	groupID, ok := intParam(c, "id")
	if !ok {
		return
	}
	var q PageQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	students, pagination, err := h.studentService.ListByGroup(c.Request.Context(), middleware.GetClaims(c).UserID, groupID, q.Page, q.PerPage)
	if err != nil {
		failWith(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// CreateStudent godoc
// POST /api/v1/groups/:id/students
// Adds a student to a group. The code is generated unless supplied.
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	groupID, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.Create(c.Request.Context(), middleware.GetClaims(c).UserID, groupID, req.Name, req.Code)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// ImportStudents godoc
// POST /api/v1/groups/:id/students/import
// Creates students from an uploaded XLSX sheet (column A name, column B optional code).
func (h *StudentHandler) ImportStudents(c *gin.Context) {
	groupID, ok := intParam(c, "id")
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidFile)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidFile)
		return
	}

	res, err := h.studentService.Import(c.Request.Context(), middleware.GetClaims(c).UserID, groupID, file)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusCreated, res)
}

// GetStudent godoc
// GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	student, err := h.studentService.Get(c.Request.Context(), middleware.GetClaims(c).UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// UpdateStudent godoc
// PUT /api/v1/students/:id
// Renames a student or moves them to another group.
func (h *StudentHandler) UpdateStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.studentService.Update(c.Request.Context(), middleware.GetClaims(c).UserID, id, req)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// RegenerateCode godoc
// POST /api/v1/students/:id/regenerate-code
func (h *StudentHandler) RegenerateCode(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	student, err := h.studentService.RegenerateCode(c.Request.Context(), middleware.GetClaims(c).UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// DeleteStudent godoc
// DELETE /api/v1/students/:id
// Deletes a student together with their attempts.
func (h *StudentHandler) DeleteStudent(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}

	if err := h.studentService.Delete(c.Request.Context(), middleware.GetClaims(c).UserID, id); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student deleted successfully"})
}
