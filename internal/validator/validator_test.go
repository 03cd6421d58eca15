package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type sample struct {
	Name  string `json:"name" binding:"required,notblank,max=5"`
	Count int    `json:"count" binding:"min=1"`
}

func bindBody(t *testing.T, body string) map[string]string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	Setup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var dst sample
	return Bind(c, &dst)
}

func TestBindUsesJSONFieldNames(t *testing.T) {
	fields := bindBody(t, `{"name":"toolongname","count":0}`)
	if _, ok := fields["name"]; !ok {
		t.Errorf("expected error for name, got %v", fields)
	}
	if _, ok := fields["count"]; !ok {
		t.Errorf("expected error for count, got %v", fields)
	}
}

func TestBindNotBlank(t *testing.T) {
	fields := bindBody(t, `{"name":"   ","count":1}`)
	msg, ok := fields["name"]
	if !ok {
		t.Fatalf("expected notblank error, got %v", fields)
	}
	if !strings.Contains(msg, "blank") {
		t.Errorf("message = %q", msg)
	}
}

func TestBindSyntaxErrorGoesToDetail(t *testing.T) {
	fields := bindBody(t, `{"name":`)
	if _, ok := fields["detail"]; !ok {
		t.Errorf("expected detail key, got %v", fields)
	}
}

func TestBindValid(t *testing.T) {
	if fields := bindBody(t, `{"name":"ok","count":2}`); fields != nil {
		t.Errorf("unexpected errors %v", fields)
	}
}
