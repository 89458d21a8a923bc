package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

type EvidenceRepository interface {
	Create(ctx context.Context, evidence *models.Evidence) error
	GetByStage(ctx context.Context, stageID string) ([]models.Evidence, error)
	// GetWithOwner returns the evidence and the user its assignment belongs to.
	GetWithOwner(ctx context.Context, id string) (*models.Evidence, string, error)
}

type evidenceRepository struct {
	*PostgresRepository
}

func NewEvidenceRepository(db *sql.DB, logger zerolog.Logger) EvidenceRepository {
	return &evidenceRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *evidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	query := `
		INSERT INTO stage_evidences (id, stage_id, original_file_name, stored_path, content_type, size_bytes, notes, uploaded_by_user_id, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		evidence.ID,
		evidence.StageID,
		evidence.OriginalFileName,
		evidence.StoredPath,
		evidence.ContentType,
		evidence.SizeBytes,
		evidence.Notes,
		evidence.UploadedByUserID,
		evidence.UploadedAt,
	)

	return classify(err, "failed to save evidence metadata")
}

func (r *evidenceRepository) GetByStage(ctx context.Context, stageID string) ([]models.Evidence, error) {
	query := `SELECT ` + evidenceColumns + ` FROM stage_evidences e WHERE e.stage_id = $1 ORDER BY e.uploaded_at`

	rows, err := r.db.QueryContext(ctx, query, stageID)
	if err != nil {
		return nil, classify(err, "failed to list evidence")
	}
	defer rows.Close()

	var evidences []models.Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, classify(err, "failed to scan evidence")
		}
		evidences = append(evidences, *e)
	}

	return evidences, classify(rows.Err(), "failed to list evidence")
}

func (r *evidenceRepository) GetWithOwner(ctx context.Context, id string) (*models.Evidence, string, error) {
	query := `
		SELECT ` + evidenceColumns + `, a.assigned_to_user_id
		FROM stage_evidences e
		JOIN assignment_stages s ON s.id = e.stage_id
		JOIN assignments a ON a.id = s.assignment_id
		WHERE e.id = $1
	`

	var owner string
	e, err := scanEvidence(r.db.QueryRowContext(ctx, query, id), &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", classify(err, "failed to get evidence")
	}

	return e, owner, nil
}

const evidenceColumns = `e.id, e.stage_id, e.original_file_name, e.stored_path, e.content_type, e.size_bytes, e.notes, e.uploaded_by_user_id, e.uploaded_at`

func scanEvidence(row interface{ Scan(...any) error }, extra ...any) (*models.Evidence, error) {
	e := &models.Evidence{}
	dest := []any{
		&e.ID,
		&e.StageID,
		&e.OriginalFileName,
		&e.StoredPath,
		&e.ContentType,
		&e.SizeBytes,
		&e.Notes,
		&e.UploadedByUserID,
		&e.UploadedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return e, nil
}
