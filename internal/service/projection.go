package service

import (
	"math"
	"time"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// OverallProgress is the mean stage progress rounded to one decimal, or 0
// when there are no stages.
func OverallProgress(stages []models.Stage) float64 {
	if len(stages) == 0 {
		return 0
	}
	sum := 0
	for _, s := range stages {
		sum += s.ProgressPercent
	}
	return roundTenth(float64(sum) / float64(len(stages)))
}

// Project derives the read-time view of one assignment.
func Project(a models.AssignmentWithNames, today time.Time) *models.AssignmentDetails {
	details := &models.AssignmentDetails{
		Assignment:      a,
		Stages:          make([]models.StageView, 0, len(a.Stages)),
		OverallProgress: OverallProgress(a.Stages),
	}
	details.Assignment.Stages = nil

	for _, stage := range a.Stages {
		overdue := stage.IsOverdue(today)
		if overdue {
			details.IsOverdue = true
		}
		details.Stages = append(details.Stages, models.StageView{Stage: stage, IsOverdue: overdue})
	}

	return details
}

func Summarize(a models.AssignmentWithNames, today time.Time) models.AssignmentSummary {
	summary := models.AssignmentSummary{
		AssignmentWithNames: a,
		OverallProgress:     OverallProgress(a.Stages),
		TotalStages:         len(a.Stages),
	}
	summary.Stages = nil

	for _, stage := range a.Stages {
		if stage.IsComplete {
			summary.CompletedStages++
		}
		if stage.IsOverdue(today) {
			summary.IsOverdue = true
		}
	}

	return summary
}

// Tally adds one assignment to the counters. An assignment with no
// incomplete stages counts as completed, otherwise as in progress; overdue
// is counted independently.
func Tally(counts *models.TaskCounts, summary models.AssignmentSummary) {
	counts.TotalTasks++
	if summary.CompletedStages == summary.TotalStages {
		counts.CompletedTasks++
	} else {
		counts.InProgressTasks++
	}
	if summary.IsOverdue {
		counts.OverdueTasks++
	}
}
