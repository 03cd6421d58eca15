package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/spreadsheet"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// serviceErrors maps service sentinels to a status and response code.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrConflict, http.StatusConflict, response.ErrConflict},
	{service.ErrDependencyExists, http.StatusConflict, response.ErrDependencyExists},
	{service.ErrQuizNotDraft, http.StatusConflict, response.ErrQuizNotDraft},
	{service.ErrQuizHasAttempts, http.StatusConflict, response.ErrQuizHasAttempts},
	{service.ErrDeadlineInPast, http.StatusBadRequest, response.ErrDeadlineInPast},
	{service.ErrGroupNotOwned, http.StatusForbidden, response.ErrForbidden},
	{service.ErrInvalidAccessCode, http.StatusNotFound, response.ErrInvalidAccessCode},
	{service.ErrInvalidStudentCode, http.StatusNotFound, response.ErrInvalidStudentCode},
	{service.ErrStudentNotAssigned, http.StatusForbidden, response.ErrStudentNotAssigned},
	{service.ErrQuizClosed, http.StatusConflict, response.ErrQuizClosed},
	{service.ErrAttemptFinished, http.StatusConflict, response.ErrAttemptFinished},
	{service.ErrTimeUp, http.StatusConflict, response.ErrTimeUp},
	{service.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidAnswer},
	{service.ErrDeadlineNotPassed, http.StatusConflict, response.ErrDeadlineNotPassed},
	{service.ErrQuizNotPublished, http.StatusConflict, response.ErrQuizNotPublished},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{spreadsheet.ErrEmptySheet, http.StatusBadRequest, response.ErrInvalidFile},
	{spreadsheet.ErrTooManyRows, http.StatusBadRequest, response.ErrInvalidFile},
	{spreadsheet.ErrUnreadable, http.StatusBadRequest, response.ErrInvalidFile},
}

// classify returns the status, code and field problems matching err.
// Unknown errors map to 500.
func classify(err error) (int, response.ErrCode, map[string]string) {
	var rule *service.RuleError
	if errors.As(err, &rule) {
		code := response.ErrInvalidQuestion
		if errors.Is(err, service.ErrQuizNotPublishable) {
			code = response.ErrQuizNotPublishable
		}
		return http.StatusUnprocessableEntity, code, rule.Problems
	}

	if errors.Is(err, service.ErrMalformedCode) {
		return http.StatusBadRequest, response.ErrValidation, map[string]string{
			"code": "code may only use the letters and digits of the code alphabet",
		}
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code, nil
		}
	}
	return http.StatusInternalServerError, response.ErrInternal, nil
}

// failWith writes the error response matching err. Unexpected errors are
// attached to the context for the request logger.
func failWith(c *gin.Context, err error) {
	status, code, fields := classify(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if fields != nil {
		response.FailWithFields(c, status, code, fields)
		return
	}
	response.Fail(c, status, code)
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// PageQuery is the common pagination query string.
type PageQuery struct {
	Page    int `form:"page" binding:"omitempty,min=1"`
	PerPage int `form:"per_page" binding:"omitempty,min=1,max=100"`
}
