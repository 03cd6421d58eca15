package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestAuth(t *testing.T) (*AuthService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cfg := &config.Config{
		JWTSecret:          "test-secret",
		JWTExpiry:          time.Hour,
		AttemptTokenExpiry: 2 * time.Hour,
		BcryptCost:         4,
	}
	return NewAuthService(cfg, rdb, nil, zerolog.Nop()), mr
}

func TestTeacherTokenRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)

	token, err := auth.GenerateTeacherToken(42)
	if err != nil {
		t.Fatalf("GenerateTeacherToken: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeTeacher || claims.UserID != 42 || claims.ID == "" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestAttemptTokenCarriesAttempt(t *testing.T) {
	auth, _ := newTestAuth(t)
	a := &model.QuizAttempt{ID: uuid.New(), QuizID: uuid.New(), StudentID: 7}
	endsAt := time.Now().Add(10 * time.Minute)

	token, err := auth.GenerateAttemptToken(a, endsAt)
	if err != nil {
		t.Fatalf("GenerateAttemptToken: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	id, err := claims.AttemptUUID()
	if err != nil || id != a.ID {
		t.Fatalf("AttemptUUID() = %s, %v; want %s", id, err, a.ID)
	}
	if claims.TokenType != TokenTypeAttempt || claims.QuizID != a.QuizID.String() {
		t.Errorf("unexpected claims %+v", claims)
	}
	if limit := endsAt.Add(2 * time.Hour); claims.ExpiresAt.Time.After(limit.Add(time.Second)) {
		t.Errorf("token expires %v, after %v", claims.ExpiresAt.Time, limit)
	}
}

func TestAttemptTokenOutlivesPastTimeLimit(t *testing.T) {
	auth, _ := newTestAuth(t)
	a := &model.QuizAttempt{ID: uuid.New(), QuizID: uuid.New(), StudentID: 7}

	tests := []struct {
		name   string
		endsAt time.Time
	}{
		{"limit far in the past", time.Now().Add(-72 * time.Hour)},
		{"limit just passed", time.Now().Add(-3 * time.Hour)},
		{"limit ahead", time.Now().Add(30 * time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := auth.GenerateAttemptToken(a, tt.endsAt)
			if err != nil {
				t.Fatalf("GenerateAttemptToken: %v", err)
			}
			claims, err := auth.ValidateToken(token)
			if err != nil {
				t.Fatalf("freshly issued token rejected: %v", err)
			}
			if min := time.Now().Add(2*time.Hour - time.Minute); claims.ExpiresAt.Time.Before(min) {
				t.Errorf("token expires %v, want at least %v", claims.ExpiresAt.Time, min)
			}
		})
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	auth, _ := newTestAuth(t)
	other, _ := newTestAuth(t)
	other.cfg = &config.Config{JWTSecret: "another", JWTExpiry: time.Hour}

	token, err := other.GenerateTeacherToken(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestRevokeToken(t *testing.T) {
	auth, mr := newTestAuth(t)
	ctx := context.Background()

	token, _ := auth.GenerateTeacherToken(3)
	claims, _ := auth.ValidateToken(token)

	if err := auth.CheckRevoked(ctx, claims.ID); err != nil {
		t.Fatalf("fresh token reported revoked: %v", err)
	}
	if err := auth.RevokeToken(ctx, claims); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := auth.CheckRevoked(ctx, claims.ID); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("CheckRevoked() = %v, want ErrTokenRevoked", err)
	}

	mr.FastForward(2 * time.Hour)
	if err := auth.CheckRevoked(ctx, claims.ID); err != nil {
		t.Errorf("revocation outlived the token: %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	auth, _ := newTestAuth(t)
	hash, err := auth.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}
	if err := auth.CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Errorf("matching password rejected: %v", err)
	}
	if err := auth.CheckPassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		page, perPage          int
		wantPage, wantPer, off int
	}{
		{0, 0, 1, defaultPerPage, 0},
		{3, 10, 3, 10, 20},
		{2, 1000, 2, maxPerPage, maxPerPage},
	}
	for _, tt := range tests {
		p, pp, off := pageBounds(tt.page, tt.perPage)
		if p != tt.wantPage || pp != tt.wantPer || off != tt.off {
			t.Errorf("pageBounds(%d, %d) = %d, %d, %d", tt.page, tt.perPage, p, pp, off)
		}
	}
}

func TestDedupeKeepsOrder(t *testing.T) {
	got := dedupe([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("dedupe() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupe() = %v, want %v", got, want)
		}
	}
}
