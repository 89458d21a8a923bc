package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

// PlanStages copies the ordered stage templates into stages of a new
// assignment. Each stage starts on the previous stage's target date; the
// first starts on start. Progress begins at zero.
func PlanStages(assignmentID string, start time.Time, templates []models.StageTemplate) []models.Stage {
	stages := make([]models.Stage, 0, len(templates))
	cursor := models.DateOnly(start)

	for _, tmpl := range templates {
		target := models.AddDays(cursor, tmpl.DurationDays)
		stages = append(stages, models.Stage{
			ID:           uuid.New().String(),
			AssignmentID: assignmentID,
			Ordinal:      tmpl.Ordinal,
			Name:         tmpl.Name,
			Description:  tmpl.Description,
			DurationDays: tmpl.DurationDays,
			StartDate:    cursor,
			TargetDate:   target,
		})
		cursor = target
	}

	return stages
}
