package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andybalholm/brotli"
	"github.com/classquiz/classquiz-backend/internal/cache"
	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth(t *testing.T) (*service.AuthService, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cfg := &config.Config{JWTSecret: "middleware-test", JWTExpiry: time.Hour, AttemptTokenExpiry: time.Hour}
	return service.NewAuthService(cfg, rdb, nil, zerolog.Nop()), rdb
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireTeacherJWT(t *testing.T) {
	auth, _ := newAuth(t)
	r := gin.New()
	r.GET("/me", RequireTeacherJWT(auth), RejectRevokedTokens(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})

	teacherToken, _ := auth.GenerateTeacherToken(9)
	attemptToken, _ := auth.GenerateAttemptToken(
		&model.QuizAttempt{ID: uuid.New(), QuizID: uuid.New(), StudentID: 1},
		time.Now().Add(time.Minute),
	)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"attempt token", "Bearer " + attemptToken, http.StatusForbidden},
		{"teacher token", "Bearer " + teacherToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+teacherToken)
	if body := serve(r, req).Body.String(); body != "9" {
		t.Errorf("claims not stored, body = %q", body)
	}
}

func TestRejectRevokedTokens(t *testing.T) {
	auth, _ := newAuth(t)
	r := gin.New()
	r.GET("/me", RequireTeacherJWT(auth), RejectRevokedTokens(auth), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	token, _ := auth.GenerateTeacherToken(1)
	claims, _ := auth.ValidateToken(token)
	if err := auth.RevokeToken(context.Background(), claims); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if w := serve(r, req); w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token got %d", w.Code)
	}
}

func TestRequireAttemptJWTFromQuery(t *testing.T) {
	auth, _ := newAuth(t)
	attempt := &model.QuizAttempt{ID: uuid.New(), QuizID: uuid.New(), StudentID: 5}
	token, _ := auth.GenerateAttemptToken(attempt, time.Now().Add(time.Minute))

	r := gin.New()
	r.GET("/ws", RequireAttemptJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).AttemptID)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	if w.Code != http.StatusOK || w.Body.String() != attempt.ID.String() {
		t.Fatalf("got %d %q", w.Code, w.Body)
	}
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := gin.New()
	r.POST("/join", RateLimit(cache.NewRateLimiter(rdb, 2, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = serve(r, httptest.NewRequest(http.MethodPost, "/join", nil)).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, int, error) {
	return false, 0, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.POST("/join", RateLimit(brokenLimiter{}), func(c *gin.Context) { c.Status(http.StatusOK) })
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/join", nil)); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("leaderboard ", 500)
	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 64, Skipper: SkipBinaryDownloads}))
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/board.png", func(c *gin.Context) { c.String(http.StatusOK, large) })

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip, br")
		return serve(r, req)
	}

	w := get("/small")
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Fatalf("small body compressed: %q %q", w.Header().Get("Content-Encoding"), w.Body)
	}

	w = get("/large")
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatal("large body not compressed")
	}
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != large {
		t.Errorf("decoded body differs, %d bytes", len(plain))
	}

	if w := get("/board.png"); w.Header().Get("Content-Encoding") != "" {
		t.Error("binary download compressed")
	}
}

func TestCacheHeaders(t *testing.T) {
	r := gin.New()
	r.GET("/img", CacheControl(60, true), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/state", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	if got := serve(r, httptest.NewRequest(http.MethodGet, "/img", nil)).Header().Get("Cache-Control"); got != "private, max-age=60" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := serve(r, httptest.NewRequest(http.MethodGet, "/state", nil)).Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
}
