package model

import (
	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "SINGLE"
	QuestionTypeMultiple QuestionType = "MULTIPLE"
)

// Question represents a single quiz question with its ordered answers.
type Question struct {
	ID           uuid.UUID    `json:"id"`
	QuizID       uuid.UUID    `json:"quiz_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	ImageURL     *string      `json:"image_url,omitempty"`
	OrderNum     int          `json:"order_num"`
	Answers      []Answer     `json:"answers"`
}

// Answer is one selectable option of a question.
type Answer struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	AnswerText string    `json:"answer_text"`
	IsCorrect  bool      `json:"is_correct"`
	OrderNum   int       `json:"order_num"`
}

// AnswerRequest is one answer option inside a question payload.
type AnswerRequest struct {
	AnswerText string `json:"answer_text" binding:"required,min=1,max=1000"`
	IsCorrect  bool   `json:"is_correct"`
}

// QuestionRequest is the payload for adding or updating a question.
type QuestionRequest struct {
	QuestionText string          `json:"question_text" binding:"required,min=1,max=2000"`
	QuestionType string          `json:"question_type" binding:"required,oneof=SINGLE MULTIPLE"`
	ImageURL     *string         `json:"image_url" binding:"omitempty,url,max=1000"`
	OrderNum     *int            `json:"order_num" binding:"omitempty,min=0"`
	Answers      []AnswerRequest `json:"answers" binding:"required,min=2,max=10,dive"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions" binding:"dive"`
}

// ReorderQuestionsRequest lists every question of a quiz in its new order.
type ReorderQuestionsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" binding:"required,min=1"`
}
