package models

type AssignmentCreatedEvent struct {
	AssignmentID     string `json:"assignment_id"`
	TemplateID       string `json:"template_id"`
	AssignedToUserID string `json:"assigned_to_user_id"`
	StageCount       int    `json:"stage_count"`
	Timestamp        int64  `json:"timestamp"`
}

type StageProgressedEvent struct {
	AssignmentID    string `json:"assignment_id"`
	StageID         string `json:"stage_id"`
	ProgressPercent int    `json:"progress_percent"`
	IsComplete      bool   `json:"is_complete"`
	Completed       bool   `json:"completed"`
	Timestamp       int64  `json:"timestamp"`
}

type EvidenceAttachedEvent struct {
	EvidenceID   string `json:"evidence_id"`
	AssignmentID string `json:"assignment_id"`
	StageID      string `json:"stage_id"`
	StoredPath   string `json:"stored_path"`
	Timestamp    int64  `json:"timestamp"`
}
