package models

import (
	"time"
)

type TaskTemplate struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Active      bool            `json:"active" db:"active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	Stages      []StageTemplate `json:"stages,omitempty"`
}

type StageTemplate struct {
	ID           string `json:"id" db:"id"`
	TemplateID   string `json:"template_id" db:"template_id"`
	Ordinal      int    `json:"ordinal" db:"ordinal"`
	Name         string `json:"name" db:"name"`
	Description  string `json:"description" db:"description"`
	DurationDays int    `json:"duration_days" db:"duration_days"`
}
