package service

import "errors"

// Errors shared across services. Handlers map them to response codes.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrDependencyExists = errors.New("resource still has dependents")

	ErrQuizNotDraft       = errors.New("quiz is not a draft")
	ErrQuizHasAttempts    = errors.New("quiz already has attempts")
	ErrQuizNotPublishable = errors.New("quiz is not ready to be published")
	ErrInvalidQuestion    = errors.New("question violates answer rules")
	ErrDeadlineInPast     = errors.New("deadline must be in the future")
	ErrGroupNotOwned      = errors.New("group does not belong to teacher")
	ErrMalformedCode      = errors.New("code uses characters outside the code alphabet")

	ErrInvalidAccessCode  = errors.New("no published quiz for access code")
	ErrInvalidStudentCode = errors.New("no student for code")
	ErrStudentNotAssigned = errors.New("student is not assigned to quiz")
	ErrQuizClosed         = errors.New("quiz deadline has passed")
	ErrAttemptFinished    = errors.New("attempt already finished")
	ErrTimeUp             = errors.New("attempt time limit reached")
	ErrInvalidAnswer      = errors.New("answers do not match question")

	ErrDeadlineNotPassed = errors.New("deadline has not passed yet")
	ErrQuizNotPublished  = errors.New("quiz is not published")
)
