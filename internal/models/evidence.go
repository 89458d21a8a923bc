package models

import (
	"time"
)

type Evidence struct {
	ID               string    `json:"id" db:"id"`
	StageID          string    `json:"stage_id" db:"stage_id"`
	OriginalFileName string    `json:"original_file_name" db:"original_file_name"`
	StoredPath       string    `json:"stored_path" db:"stored_path"`
	ContentType      string    `json:"content_type" db:"content_type"`
	SizeBytes        int64     `json:"size_bytes" db:"size_bytes"`
	Notes            string    `json:"notes" db:"notes"`
	UploadedByUserID string    `json:"uploaded_by_user_id" db:"uploaded_by_user_id"`
	UploadedAt       time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// OwnedStage is a stage together with the assignment fields needed for
// ownership checks and storage key scoping.
type OwnedStage struct {
	Stage
	AssignedToUserID string `db:"assigned_to_user_id"`
}
