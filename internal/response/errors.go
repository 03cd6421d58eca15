package response

// ErrCode identifies an API error in the response envelope.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"
	ErrAttemptAccessOnly ErrCode = "ATTEMPT_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidFile    ErrCode = "INVALID_FILE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Quiz authoring ────────────────────────────────────────────────
	ErrQuizNotDraft       ErrCode = "QUIZ_NOT_DRAFT"
	ErrQuizHasAttempts    ErrCode = "QUIZ_HAS_ATTEMPTS"
	ErrQuizNotPublishable ErrCode = "QUIZ_NOT_PUBLISHABLE"
	ErrInvalidQuestion    ErrCode = "INVALID_QUESTION"
	ErrDeadlineInPast     ErrCode = "DEADLINE_IN_PAST"

	// ─── Quiz attempts ─────────────────────────────────────────────────
	ErrInvalidAccessCode  ErrCode = "INVALID_ACCESS_CODE"
	ErrInvalidStudentCode ErrCode = "INVALID_STUDENT_CODE"
	ErrStudentNotAssigned ErrCode = "STUDENT_NOT_ASSIGNED"
	ErrQuizClosed         ErrCode = "QUIZ_CLOSED"
	ErrAttemptFinished    ErrCode = "ATTEMPT_FINISHED"
	ErrTimeUp             ErrCode = "TIME_UP"
	ErrInvalidAnswer      ErrCode = "INVALID_ANSWER"

	// ─── Results ───────────────────────────────────────────────────────
	ErrDeadlineNotPassed ErrCode = "DEADLINE_NOT_PASSED"
	ErrQuizNotPublished  ErrCode = "QUIZ_NOT_PUBLISHED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrInvalidCredentials: "Email or password is incorrect.",
	ErrTokenRequired:      "Authentication token is required.",
	ErrTokenInvalid:       "Authentication token is invalid.",
	ErrTokenExpired:       "Authentication token has expired.",

	ErrForbidden:         "You do not have access to this resource.",
	ErrTeacherAccessOnly: "This resource is restricted to teachers.",
	ErrAttemptAccessOnly: "This resource requires a quiz attempt token.",

	ErrValidation:     "The request contains invalid fields.",
	ErrInvalidID:      "The identifier is not valid.",
	ErrInvalidPayload: "The request body could not be read.",
	ErrInvalidFile:    "The uploaded file could not be read.",

	ErrNotFound:         "The requested resource was not found.",
	ErrConflict:         "The resource already exists.",
	ErrDependencyExists: "The resource is still referenced by other data.",

	ErrQuizNotDraft:       "Only draft quizzes can be edited.",
	ErrQuizHasAttempts:    "The quiz already has attempts.",
	ErrQuizNotPublishable: "The quiz is not ready to be published.",
	ErrInvalidQuestion:    "The question does not satisfy the answer rules.",
	ErrDeadlineInPast:     "The deadline must be in the future.",

	ErrInvalidAccessCode:  "No published quiz matches this access code.",
	ErrInvalidStudentCode: "No student matches this student code.",
	ErrStudentNotAssigned: "This student is not assigned to the quiz.",
	ErrQuizClosed:         "The quiz deadline has passed.",
	ErrAttemptFinished:    "This attempt has already been finished.",
	ErrTimeUp:             "Time is up for this attempt.",
	ErrInvalidAnswer:      "The selected answers are not valid for this question.",

	ErrDeadlineNotPassed: "Rankings are available after the quiz deadline.",
	ErrQuizNotPublished:  "Only published quizzes are ranked.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",

	ErrInternal: "An internal server error occurred.",
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "An unexpected error occurred."
}
