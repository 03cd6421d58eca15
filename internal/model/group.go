package model

import "time"

// Group is a teacher's class of students.
type Group struct {
	ID           int       `json:"id"`
	TeacherID    int       `json:"teacher_id"`
	Name         string    `json:"name"`
	StudentCount int       `json:"student_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GroupRequest is the payload for creating or renaming a group.
type GroupRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}
