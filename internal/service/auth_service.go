package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// TokenType distinguishes teacher tokens from attempt tokens.
type TokenType string

const (
	TokenTypeTeacher TokenType = "teacher"
	TokenTypeAttempt TokenType = "attempt"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    int       `json:"user_id"`
	QuizID    string    `json:"quiz_id,omitempty"`
	AttemptID string    `json:"attempt_id,omitempty"`
}

// AttemptUUID parses the attempt id carried by an attempt token.
func (c *Claims) AttemptUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AttemptID)
}

// AuthService handles password hashing, teacher login and token management.
type AuthService struct {
	cfg         *config.Config
	rdb         *redis.Client
	teacherRepo *repository.TeacherRepository
	log         zerolog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, teacherRepo *repository.TeacherRepository, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:         cfg,
		rdb:         rdb,
		teacherRepo: teacherRepo,
		log:         log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// LoginTeacher verifies credentials and issues a teacher token.
func (s *AuthService) LoginTeacher(ctx context.Context, email, password string) (*model.TeacherLoginResponse, error) {
	t, err := s.teacherRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get teacher: %w", err)
	}
	if err := s.CheckPassword(t.PasswordHash, password); err != nil {
		return nil, err
	}

	token, err := s.GenerateTeacherToken(t.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("teacher_id", t.ID).Msg("Teacher logged in")
	return &model.TeacherLoginResponse{Token: token, Teacher: *t}, nil
}

// GetTeacher returns the profile of a teacher.
func (s *AuthService) GetTeacher(ctx context.Context, id int) (*model.Teacher, error) {
	t, err := s.teacherRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// CreateTeacher registers a teacher account. Used by the admin CLI.
func (s *AuthService) CreateTeacher(ctx context.Context, email, name, password string) (*model.Teacher, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	t := &model.Teacher{Email: email, Name: name, PasswordHash: hash}
	if err := s.teacherRepo.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return t, nil
}

// ResetPassword replaces the password of the teacher registered under email.
// Used by the admin CLI.
func (s *AuthService) ResetPassword(ctx context.Context, email, password string) (*model.Teacher, error) {
	t, err := s.teacherRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.teacherRepo.UpdatePassword(ctx, t.ID, hash); err != nil {
		return nil, err
	}
	t.PasswordHash = hash
	return t, nil
}

// GenerateTeacherToken creates a JWT for a teacher.
func (s *AuthService) GenerateTeacherToken(teacherID int) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(teacherID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeTeacher,
		UserID:    teacherID,
	}
	return s.sign(claims)
}

// GenerateAttemptToken creates a JWT bound to one quiz attempt. It stays
// valid for the configured window after the attempt's time limit, or after
// issue when the limit already passed so a finished student can read results.
func (s *AuthService) GenerateAttemptToken(a *model.QuizAttempt, endsAt time.Time) (string, error) {
	now := time.Now()
	base := endsAt
	if now.After(base) {
		base = now
	}
	expires := base.Add(s.cfg.AttemptTokenExpiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   strconv.Itoa(a.StudentID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TokenType: TokenTypeAttempt,
		UserID:    a.StudentID,
		QuizID:    a.QuizID.String(),
		AttemptID: a.ID.String(),
	}
	return s.sign(claims)
}

func (s *AuthService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// RevokeToken blacklists a token id until the token would have expired.
func (s *AuthService) RevokeToken(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if d := time.Until(claims.ExpiresAt.Time); d > 0 {
			ttl = d
		}
	}
	return s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(claims.ID), 1, ttl).Err()
}

// CheckRevoked returns ErrTokenRevoked when the token id was logged out.
func (s *AuthService) CheckRevoked(ctx context.Context, jti string) error {
	n, err := s.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(jti)).Result()
	if err != nil {
		return fmt.Errorf("check revoked: %w", err)
	}
	if n > 0 {
		return ErrTokenRevoked
	}
	return nil
}
