package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/spreadsheet"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
		{fmt.Errorf("load quiz: %w", service.ErrQuizNotDraft), http.StatusConflict, response.ErrQuizNotDraft},
		{service.ErrTimeUp, http.StatusConflict, response.ErrTimeUp},
		{service.ErrDeadlineNotPassed, http.StatusConflict, response.ErrDeadlineNotPassed},
		{service.ErrStudentNotAssigned, http.StatusForbidden, response.ErrStudentNotAssigned},
		{spreadsheet.ErrTooManyRows, http.StatusBadRequest, response.ErrInvalidFile},
		{service.ErrMalformedCode, http.StatusBadRequest, response.ErrValidation},
		{errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code, _ := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("classify() = %d %s, want %d %s", status, code, tt.status, tt.code)
			}
		})
	}
}

func TestFailWithRuleError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	failWith(c, &service.RuleError{
		Err:      service.ErrQuizNotPublishable,
		Problems: map[string]string{"group_ids": "quiz is not assigned to any group"},
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Code != response.ErrQuizNotPublishable {
		t.Fatalf("error = %+v", body.Error)
	}
	if body.Error.Fields["group_ids"] == "" {
		t.Errorf("problems not returned as fields: %v", body.Error.Fields)
	}
}

func TestFailWithUnknownErrorIsRecorded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	failWith(c, errors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if len(c.Errors) != 1 {
		t.Errorf("error not attached to context: %v", c.Errors)
	}
}

func TestParams(t *testing.T) {
	r := gin.New()
	r.GET("/groups/:id", func(c *gin.Context) {
		if id, ok := intParam(c, "id"); ok {
			c.String(http.StatusOK, "%d", id)
		}
	})
	r.GET("/quizzes/:id", func(c *gin.Context) {
		if id, ok := uuidParam(c, "id"); ok {
			c.String(http.StatusOK, id.String())
		}
	})

	tests := []struct {
		path   string
		status int
	}{
		{"/groups/12", http.StatusOK},
		{"/groups/0", http.StatusBadRequest},
		{"/groups/abc", http.StatusBadRequest},
		{"/quizzes/2b7e4f1c-6d3a-4c1e-9f0a-1c2d3e4f5a6b", http.StatusOK},
		{"/quizzes/not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.status)
		}
	}
}

func TestAttemptIDRequiresClaims(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if _, ok := attemptID(c); ok {
		t.Fatal("attemptID succeeded without claims")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
