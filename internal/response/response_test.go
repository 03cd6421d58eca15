package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFailEnvelopeCarriesRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/x", func(c *gin.Context) {
		Fail(c, http.StatusConflict, ErrQuizNotDraft)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != ErrQuizNotDraft {
		t.Fatalf("error = %+v", body.Error)
	}
	if body.Error.Message != GetMessage(ErrQuizNotDraft) {
		t.Errorf("message = %q", body.Error.Message)
	}
	if body.Metadata.RequestID != "req-1" {
		t.Errorf("request id = %q, want req-1", body.Metadata.RequestID)
	}
	if w.Header().Get("X-Request-ID") != "req-1" {
		t.Errorf("header request id not echoed")
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		page, perPage, total, wantPages int
	}{
		{1, 20, 0, 0},
		{1, 20, 20, 1},
		{2, 20, 21, 2},
		{1, 0, 5, 0},
	}
	for _, tt := range tests {
		p := NewPagination(tt.page, tt.perPage, tt.total)
		if p.TotalPages != tt.wantPages {
			t.Errorf("NewPagination(%d,%d,%d).TotalPages = %d, want %d", tt.page, tt.perPage, tt.total, p.TotalPages, tt.wantPages)
		}
	}
}

func TestGetMessageUnknown(t *testing.T) {
	if GetMessage(ErrCode("NOPE")) == "" {
		t.Fatal("expected fallback message")
	}
}

func TestValidRequestID(t *testing.T) {
	tests := map[string]bool{
		"":                         false,
		"req-1":                    true,
		"has space":                false,
		"line\nbreak":              false,
		string(make([]byte, 65)):   false,
		"0f8fad5b-d9cb-469f-a165-": true,
	}
	for id, want := range tests {
		if got := validRequestID(id); got != want {
			t.Errorf("validRequestID(%q) = %v, want %v", id, got, want)
		}
	}
}
