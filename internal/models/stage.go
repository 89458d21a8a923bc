package models

import (
	"time"
)

const CompleteThreshold = 100

type Stage struct {
	ID              string     `json:"id" db:"id"`
	AssignmentID    string     `json:"assignment_id" db:"assignment_id"`
	Ordinal         int        `json:"ordinal" db:"ordinal"`
	Name            string     `json:"name" db:"name"`
	Description     string     `json:"description" db:"description"`
	DurationDays    int        `json:"duration_days" db:"duration_days"`
	StartDate       time.Time  `json:"start_date" db:"start_date"`
	TargetDate      time.Time  `json:"target_date" db:"target_date"`
	ProgressPercent int        `json:"progress_percent" db:"progress_percent"`
	IsComplete      bool       `json:"is_complete" db:"is_complete"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ApplyProgress records a new progress value and derives the completion
// pair from it. CompletedAt is stamped on the transition into complete,
// kept while the stage stays complete and cleared when it drops below.
// It reports whether the stage transitioned into complete.
func (s *Stage) ApplyProgress(progress int, now time.Time) bool {
	wasComplete := s.IsComplete && s.CompletedAt != nil

	s.ProgressPercent = progress
	s.IsComplete = progress >= CompleteThreshold

	switch {
	case !s.IsComplete:
		s.CompletedAt = nil
	case !wasComplete:
		at := now
		s.CompletedAt = &at
		return true
	}
	return false
}

// IsOverdue reports whether an incomplete stage is past its target date.
func (s *Stage) IsOverdue(today time.Time) bool {
	return !s.IsComplete && DateOnly(s.TargetDate).Before(DateOnly(today))
}

type StageView struct {
	Stage
	IsOverdue bool `json:"is_overdue"`
}
