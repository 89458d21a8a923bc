package models

import (
	"time"
)

type Assignment struct {
	ID               string     `json:"id" db:"id"`
	TemplateID       string     `json:"template_id" db:"template_id"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description" db:"description"`
	AssignedToUserID string     `json:"assigned_to_user_id" db:"assigned_to_user_id"`
	AssignedByUserID string     `json:"assigned_by_user_id" db:"assigned_by_user_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	StartDate        time.Time  `json:"start_date" db:"start_date"`
	DueDate          *time.Time `json:"due_date,omitempty" db:"due_date"`
	Stages           []Stage    `json:"stages,omitempty"`
}

// AssignmentWithNames carries the display names joined in by list queries.
type AssignmentWithNames struct {
	Assignment
	TemplateName       string `json:"template_name" db:"template_name"`
	AssignedToUserName string `json:"assigned_to_user_name" db:"assigned_to_user_name"`
	AssignedByUserName string `json:"assigned_by_user_name" db:"assigned_by_user_name"`
}

// DateOnly truncates t to its calendar date, expressed at midnight UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays advances a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return DateOnly(date).AddDate(0, 0, n)
}
