package repository

import (
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateEmail       = errors.New("teacher with this email already exists")
	ErrDuplicateGroupName   = errors.New("group with this name already exists")
	ErrDuplicateStudentCode = errors.New("student code already in use")
	ErrDuplicateAccessCode  = errors.New("access code already in use")
	ErrInUse                = errors.New("row is still referenced")
	ErrOrphanEvent          = errors.New("event refers to a deleted quiz")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool     { return pgCode(err) == pgUniqueViolation }
func isForeignKeyViolation(err error) bool { return pgCode(err) == pgForeignKeyViolation }

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// uuidStrings converts ids for binding to a uuid[] parameter.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
