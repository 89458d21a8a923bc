package models

type AssignmentDetails struct {
	Assignment      AssignmentWithNames `json:"assignment"`
	Stages          []StageView         `json:"stages"`
	OverallProgress float64             `json:"overall_progress"`
	IsOverdue       bool                `json:"is_overdue"`
}

type AssignmentSummary struct {
	AssignmentWithNames
	OverallProgress float64 `json:"overall_progress"`
	IsOverdue       bool    `json:"is_overdue"`
	TotalStages     int     `json:"total_stages"`
	CompletedStages int     `json:"completed_stages"`
}

type TaskCounts struct {
	TotalTasks      int `json:"total_tasks"`
	InProgressTasks int `json:"in_progress_tasks"`
	CompletedTasks  int `json:"completed_tasks"`
	OverdueTasks    int `json:"overdue_tasks"`
}

type UserTaskSummary struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	TaskCounts
	AverageProgress float64 `json:"average_progress"`
}

type DashboardStats struct {
	TaskCounts
	UserSummaries []UserTaskSummary `json:"user_summaries"`
}
