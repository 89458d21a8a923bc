package models

import "time"

// Data Transfer Objects

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type CreateAssignmentRequest struct {
	TemplateID       string `json:"template_id" validate:"required,uuid"`
	Title            string `json:"title" validate:"required,min=1,max=255"`
	Description      string `json:"description" validate:"max=2000"`
	AssignedToUserID string `json:"assigned_to_user_id" validate:"required,uuid"`
	StartDate        string `json:"start_date" validate:"required,datetime=2006-01-02"`
	DueDate          string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type UpdateProgressRequest struct {
	ProgressPercent *int `json:"progress_percent" validate:"required"`
}

type TemplateRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Active      bool   `json:"active"`
}

type StageTemplateRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Description  string `json:"description" validate:"max=2000"`
	DurationDays int    `json:"duration_days"`
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive bool   `json:"is_active"`
}

type UpdateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Password string `json:"password" validate:"omitempty,min=8"`
	IsAdmin  bool   `json:"is_admin"`
	IsActive bool   `json:"is_active"`
}

type AttachEvidenceRequest struct {
	StageID          string
	RequestingUserID string
	FileBytes        []byte
	OriginalFileName string
	Notes            string
}
