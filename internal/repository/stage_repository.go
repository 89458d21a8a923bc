package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

type StageRepository interface {
	// GetWithOwner returns the stage together with its assignee.
	GetWithOwner(ctx context.Context, stageID string) (*models.OwnedStage, error)
	// UpdateProgress locks the owned stage, lets fn mutate it and persists
	// the result. A missing or foreign stage yields apperr.ErrNotFound.
	UpdateProgress(ctx context.Context, stageID, userID string, fn func(stage *models.Stage) error) (*models.Stage, error)
}

type stageRepository struct {
	*PostgresRepository
}

func NewStageRepository(db *sql.DB, logger zerolog.Logger) StageRepository {
	return &stageRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const stageWithOwnerQuery = `
	SELECT ` + stageColumns + `, a.assigned_to_user_id
	FROM assignment_stages s
	JOIN assignments a ON a.id = s.assignment_id
	WHERE s.id = $1
`

func (r *stageRepository) GetWithOwner(ctx context.Context, stageID string) (*models.OwnedStage, error) {
	owned := &models.OwnedStage{}
	stage, err := scanStage(r.db.QueryRowContext(ctx, stageWithOwnerQuery, stageID), &owned.AssignedToUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get stage")
	}

	owned.Stage = *stage
	return owned, nil
}

func (r *stageRepository) UpdateProgress(ctx context.Context, stageID, userID string, fn func(stage *models.Stage) error) (*models.Stage, error) {
	var updated *models.Stage

	err := r.InTx(ctx, func(tx *sql.Tx) error {
		var owner string
		query := stageWithOwnerQuery + ` AND a.assigned_to_user_id = $2 FOR UPDATE OF s`
		stage, err := scanStage(tx.QueryRowContext(ctx, query, stageID, userID), &owner)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFoundf("stage not found")
		}
		if err != nil {
			return classify(err, "failed to lock stage")
		}

		if err := fn(stage); err != nil {
			return err
		}

		query = `
			UPDATE assignment_stages
			SET progress_percent = $1, is_complete = $2, completed_at = $3
			WHERE id = $4
		`
		_, err = tx.ExecContext(ctx, query,
			stage.ProgressPercent,
			stage.IsComplete,
			nullTime(stage.CompletedAt),
			stage.ID,
		)
		if err != nil {
			return classify(err, "failed to update stage progress")
		}

		updated = stage
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
