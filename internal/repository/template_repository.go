package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

type TemplateRepository interface {
	Create(ctx context.Context, template *models.TaskTemplate) error
	GetByID(ctx context.Context, id string) (*models.TaskTemplate, error)
	GetAll(ctx context.Context) ([]models.TaskTemplate, error)
	Update(ctx context.Context, template *models.TaskTemplate) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)

	GetStages(ctx context.Context, templateID string) ([]models.StageTemplate, error)
	GetStage(ctx context.Context, id string) (*models.StageTemplate, error)
	AppendStage(ctx context.Context, stage *models.StageTemplate) error
	UpdateStage(ctx context.Context, stage *models.StageTemplate) error
	DeleteStage(ctx context.Context, stage *models.StageTemplate) error
}

type templateRepository struct {
	*PostgresRepository
}

func NewTemplateRepository(db *sql.DB, logger zerolog.Logger) TemplateRepository {
	return &templateRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *templateRepository) Create(ctx context.Context, template *models.TaskTemplate) error {
	query := `
		INSERT INTO task_templates (id, name, description, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		template.ID,
		template.Name,
		template.Description,
		template.Active,
		template.CreatedAt,
	)

	return classify(err, "failed to create template")
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*models.TaskTemplate, error) {
	query := `SELECT id, name, description, active, created_at FROM task_templates WHERE id = $1`

	template := &models.TaskTemplate{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&template.ID,
		&template.Name,
		&template.Description,
		&template.Active,
		&template.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get template")
	}

	return template, nil
}

func (r *templateRepository) GetAll(ctx context.Context) ([]models.TaskTemplate, error) {
	query := `SELECT id, name, description, active, created_at FROM task_templates ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "failed to list templates")
	}
	defer rows.Close()

	var templates []models.TaskTemplate
	for rows.Next() {
		var template models.TaskTemplate
		if err := rows.Scan(
			&template.ID,
			&template.Name,
			&template.Description,
			&template.Active,
			&template.CreatedAt,
		); err != nil {
			return nil, classify(err, "failed to scan template")
		}
		templates = append(templates, template)
	}

	return templates, classify(rows.Err(), "failed to list templates")
}

func (r *templateRepository) Update(ctx context.Context, template *models.TaskTemplate) (bool, error) {
	query := `UPDATE task_templates SET name = $1, description = $2, active = $3 WHERE id = $4`

	res, err := r.db.ExecContext(ctx, query, template.Name, template.Description, template.Active, template.ID)
	if err != nil {
		return false, classify(err, "failed to update template")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "failed to update template")
	}
	return n > 0, nil
}

// Delete removes the template and its stage templates. Assignments hold a
// RESTRICT reference, so deleting a template in use fails with a conflict.
func (r *templateRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_templates WHERE id = $1`, id)
	if err != nil {
		return false, classify(err, "failed to delete template")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "failed to delete template")
	}
	return n > 0, nil
}

// lockMutableTemplate takes the template row FOR UPDATE and fails with a
// conflict once any assignment references it. Instantiation holds a key-share
// lock on the same row through the foreign key, so the two cannot interleave.
func lockMutableTemplate(ctx context.Context, tx *sql.Tx, templateID string) error {
	var inUse bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM assignments WHERE template_id = $1) FROM task_templates WHERE id = $1 FOR UPDATE`,
		templateID,
	).Scan(&inUse)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundf("template not found")
	}
	if err != nil {
		return classify(err, "failed to lock template")
	}
	if inUse {
		return apperr.Conflictf("template is in use by existing assignments; its stages cannot be changed")
	}
	return nil
}

const stageTemplateColumns = `id, template_id, ordinal, name, description, duration_days`

func scanStageTemplate(row interface{ Scan(...any) error }) (*models.StageTemplate, error) {
	stage := &models.StageTemplate{}
	err := row.Scan(
		&stage.ID,
		&stage.TemplateID,
		&stage.Ordinal,
		&stage.Name,
		&stage.Description,
		&stage.DurationDays,
	)
	return stage, err
}

func (r *templateRepository) GetStages(ctx context.Context, templateID string) ([]models.StageTemplate, error) {
	return loadStageTemplates(ctx, r.db, templateID, false)
}

// loadStageTemplates reads a template's stages in ordinal order. With lock
// set the rows are share-locked until the surrounding transaction ends.
func loadStageTemplates(ctx context.Context, q queryer, templateID string, lock bool) ([]models.StageTemplate, error) {
	query := `SELECT ` + stageTemplateColumns + ` FROM stage_templates WHERE template_id = $1 ORDER BY ordinal`
	if lock {
		query += ` FOR SHARE`
	}

	rows, err := q.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, classify(err, "failed to get stage templates")
	}
	defer rows.Close()

	var stages []models.StageTemplate
	for rows.Next() {
		stage, err := scanStageTemplate(rows)
		if err != nil {
			return nil, classify(err, "failed to scan stage template")
		}
		stages = append(stages, *stage)
	}

	return stages, classify(rows.Err(), "failed to get stage templates")
}

func (r *templateRepository) GetStage(ctx context.Context, id string) (*models.StageTemplate, error) {
	query := `SELECT ` + stageTemplateColumns + ` FROM stage_templates WHERE id = $1`

	stage, err := scanStageTemplate(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get stage template")
	}

	return stage, nil
}

// AppendStage inserts the stage after the template's current last ordinal
// and writes the assigned ordinal back into stage.
func (r *templateRepository) AppendStage(ctx context.Context, stage *models.StageTemplate) error {
	return r.InTx(ctx, func(tx *sql.Tx) error {
		if err := lockMutableTemplate(ctx, tx, stage.TemplateID); err != nil {
			return err
		}

		var next int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ordinal), 0) + 1 FROM stage_templates WHERE template_id = $1`,
			stage.TemplateID,
		).Scan(&next)
		if err != nil {
			return classify(err, "failed to compute next ordinal")
		}
		stage.Ordinal = next

		query := `
			INSERT INTO stage_templates (id, template_id, ordinal, name, description, duration_days)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		_, err = tx.ExecContext(ctx, query,
			stage.ID,
			stage.TemplateID,
			stage.Ordinal,
			stage.Name,
			stage.Description,
			stage.DurationDays,
		)
		return classify(err, "failed to insert stage template")
	})
}

func (r *templateRepository) UpdateStage(ctx context.Context, stage *models.StageTemplate) error {
	return r.InTx(ctx, func(tx *sql.Tx) error {
		if err := lockMutableTemplate(ctx, tx, stage.TemplateID); err != nil {
			return err
		}

		query := `UPDATE stage_templates SET name = $1, description = $2, duration_days = $3 WHERE id = $4`
		_, err := tx.ExecContext(ctx, query, stage.Name, stage.Description, stage.DurationDays, stage.ID)
		return classify(err, "failed to update stage template")
	})
}

// DeleteStage removes the stage and closes the gap it leaves in the
// ordinal sequence.
func (r *templateRepository) DeleteStage(ctx context.Context, stage *models.StageTemplate) error {
	return r.InTx(ctx, func(tx *sql.Tx) error {
		if err := lockMutableTemplate(ctx, tx, stage.TemplateID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM stage_templates WHERE id = $1`, stage.ID); err != nil {
			return classify(err, "failed to delete stage template")
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE stage_templates SET ordinal = ordinal - 1 WHERE template_id = $1 AND ordinal > $2`,
			stage.TemplateID, stage.Ordinal,
		)
		return classify(err, "failed to renumber stage templates")
	})
}
