package model

import "time"

// Student belongs to exactly one group and authenticates into quizzes with Code.
type Student struct {
	ID        int       `json:"id"`
	GroupID   int       `json:"group_id"`
	GroupName string    `json:"group_name,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateStudentRequest is the payload for adding a student to a group.
// Code is optional; one is generated when empty.
type CreateStudentRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
	Code string `json:"code" binding:"omitempty,alphanum,min=4,max=12"`
}

// UpdateStudentRequest is the payload for renaming a student or moving them to another group.
type UpdateStudentRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=100"`
	GroupID int    `json:"group_id" binding:"required,min=1"`
}

// ImportStudentsResult summarises a spreadsheet import.
type ImportStudentsResult struct {
	Created []Student         `json:"created"`
	Skipped map[string]string `json:"skipped,omitempty"`
}
