package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
)

// RuleError lists every rule a question or quiz breaks. It unwraps to the
// sentinel the handler maps to a response code.
type RuleError struct {
	Err      error
	Problems map[string]string
}

func (e *RuleError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for k, v := range e.Problems {
		parts = append(parts, k+": "+v)
	}
	return fmt.Sprintf("%v (%s)", e.Err, strings.Join(parts, "; "))
}

func (e *RuleError) Unwrap() error { return e.Err }

// checkQuestion enforces the answer rules: at least two answers, exactly one
// correct answer for SINGLE and at least one for MULTIPLE.
func checkQuestion(q *model.Question) string {
	if strings.TrimSpace(q.QuestionText) == "" {
		return "question text is empty"
	}
	if len(q.Answers) < 2 {
		return "needs at least two answers"
	}
	correct := 0
	for _, a := range q.Answers {
		if strings.TrimSpace(a.AnswerText) == "" {
			return "answer text is empty"
		}
		if a.IsCorrect {
			correct++
		}
	}
	switch q.QuestionType {
	case model.QuestionTypeSingle:
		if correct != 1 {
			return "single choice needs exactly one correct answer"
		}
	case model.QuestionTypeMultiple:
		if correct < 1 {
			return "multiple choice needs at least one correct answer"
		}
	default:
		return "unknown question type"
	}
	return ""
}

// validateQuestions returns a RuleError wrapping ErrInvalidQuestion when any
// question breaks the answer rules.
func validateQuestions(questions []model.Question) error {
	problems := map[string]string{}
	for i := range questions {
		if msg := checkQuestion(&questions[i]); msg != "" {
			problems[fmt.Sprintf("questions[%d]", i)] = msg
		}
	}
	if len(problems) > 0 {
		return &RuleError{Err: ErrInvalidQuestion, Problems: problems}
	}
	return nil
}

// checkPublishable collects every reason quiz cannot be published at now.
func checkPublishable(quiz *model.Quiz, questions []model.Question, now time.Time) error {
	problems := map[string]string{}
	if len(questions) == 0 {
		problems["questions"] = "quiz has no questions"
	}
	for i := range questions {
		if msg := checkQuestion(&questions[i]); msg != "" {
			problems[fmt.Sprintf("questions[%d]", questions[i].OrderNum)] = msg
		}
	}
	if len(quiz.GroupIDs) == 0 {
		problems["group_ids"] = "quiz is not assigned to any group"
	}
	if !quiz.Deadline.After(now) {
		problems["deadline"] = "deadline must be in the future"
	}
	if len(problems) > 0 {
		return &RuleError{Err: ErrQuizNotPublishable, Problems: problems}
	}
	return nil
}

// questionFromRequest converts a request payload into a question of quizID.
func questionFromRequest(quizID uuid.UUID, req model.QuestionRequest) model.Question {
	q := model.Question{
		QuizID:       quizID,
		QuestionText: strings.TrimSpace(req.QuestionText),
		QuestionType: model.QuestionType(req.QuestionType),
		ImageURL:     req.ImageURL,
		Answers:      make([]model.Answer, len(req.Answers)),
	}
	if req.OrderNum != nil {
		q.OrderNum = *req.OrderNum
	}
	for i, a := range req.Answers {
		q.Answers[i] = model.Answer{AnswerText: strings.TrimSpace(a.AnswerText), IsCorrect: a.IsCorrect}
	}
	return q
}
