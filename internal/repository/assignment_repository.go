package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
)

// StagePlanner turns a template's ordered stage templates into the concrete
// stages of the assignment being created.
type StagePlanner func(assignmentID string, templates []models.StageTemplate) ([]models.Stage, error)

// AssignmentFilter narrows ListWithStages. An empty AssignedToUserID
// matches every assignment.
type AssignmentFilter struct {
	AssignedToUserID string
}

type AssignmentRepository interface {
	Instantiate(ctx context.Context, assignment *models.Assignment, plan StagePlanner) error
	GetByID(ctx context.Context, id string) (*models.AssignmentWithNames, error)
	ListWithStages(ctx context.Context, filter AssignmentFilter) ([]models.AssignmentWithNames, error)
	Delete(ctx context.Context, id string) ([]string, bool, error)
}

type assignmentRepository struct {
	*PostgresRepository
}

func NewAssignmentRepository(db *sql.DB, logger zerolog.Logger) AssignmentRepository {
	return &assignmentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

// Instantiate writes the assignment and every planned stage atomically.
// The stage templates are read inside the same transaction under a share
// lock, so a concurrent template edit cannot interleave with the copy.
func (r *assignmentRepository) Instantiate(ctx context.Context, assignment *models.Assignment, plan StagePlanner) error {
	return r.InTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO assignments (id, template_id, title, description, assigned_to_user_id, assigned_by_user_id, created_at, start_date, due_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := tx.ExecContext(ctx, query,
			assignment.ID,
			assignment.TemplateID,
			assignment.Title,
			assignment.Description,
			assignment.AssignedToUserID,
			assignment.AssignedByUserID,
			assignment.CreatedAt,
			assignment.StartDate,
			nullTime(assignment.DueDate),
		)
		if err != nil {
			return classify(err, "failed to insert assignment")
		}

		templates, err := loadStageTemplates(ctx, tx, assignment.TemplateID, true)
		if err != nil {
			return err
		}

		stages, err := plan(assignment.ID, templates)
		if err != nil {
			return err
		}

		stageQuery := `
			INSERT INTO assignment_stages (id, assignment_id, ordinal, name, description, duration_days, start_date, target_date, progress_percent, is_complete, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		for _, stage := range stages {
			_, err := tx.ExecContext(ctx, stageQuery,
				stage.ID,
				stage.AssignmentID,
				stage.Ordinal,
				stage.Name,
				stage.Description,
				stage.DurationDays,
				stage.StartDate,
				stage.TargetDate,
				stage.ProgressPercent,
				stage.IsComplete,
				nullTime(stage.CompletedAt),
			)
			if err != nil {
				return classify(err, "failed to insert assignment stage")
			}
		}

		assignment.Stages = stages
		return nil
	})
}

const assignmentColumns = `
	a.id, a.template_id, a.title, a.description, a.assigned_to_user_id, a.assigned_by_user_id,
	a.created_at, a.start_date, a.due_date,
	t.name, u.full_name, b.full_name
`

const assignmentJoins = `
	FROM assignments a
	JOIN task_templates t ON t.id = a.template_id
	JOIN users u ON u.id = a.assigned_to_user_id
	JOIN users b ON b.id = a.assigned_by_user_id
`

func scanAssignment(row interface{ Scan(...any) error }) (*models.AssignmentWithNames, error) {
	a := &models.AssignmentWithNames{}
	var dueDate sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.TemplateID,
		&a.Title,
		&a.Description,
		&a.AssignedToUserID,
		&a.AssignedByUserID,
		&a.CreatedAt,
		&a.StartDate,
		&dueDate,
		&a.TemplateName,
		&a.AssignedToUserName,
		&a.AssignedByUserName,
	)
	if err != nil {
		return nil, err
	}
	a.DueDate = timePtr(dueDate)
	return a, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (*models.AssignmentWithNames, error) {
	query := `SELECT ` + assignmentColumns + assignmentJoins + ` WHERE a.id = $1`

	assignment, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "failed to get assignment")
	}

	stages, err := loadStages(ctx, r.db, []string{assignment.ID})
	if err != nil {
		return nil, err
	}
	assignment.Stages = stages[assignment.ID]

	return assignment, nil
}

// ListWithStages returns matching assignments, newest first, with their
// stages loaded in ordinal order.
func (r *assignmentRepository) ListWithStages(ctx context.Context, filter AssignmentFilter) ([]models.AssignmentWithNames, error) {
	query := `SELECT ` + assignmentColumns + assignmentJoins
	var args []any
	if filter.AssignedToUserID != "" {
		query += ` WHERE a.assigned_to_user_id = $1`
		args = append(args, filter.AssignedToUserID)
	}
	query += ` ORDER BY a.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "failed to list assignments")
	}
	defer rows.Close()

	var assignments []models.AssignmentWithNames
	var ids []string
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, classify(err, "failed to scan assignment")
		}
		assignments = append(assignments, *assignment)
		ids = append(ids, assignment.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "failed to list assignments")
	}
	if len(ids) == 0 {
		return assignments, nil
	}

	stages, err := loadStages(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range assignments {
		assignments[i].Stages = stages[assignments[i].ID]
	}

	return assignments, nil
}

// Delete removes the assignment with its stages and evidence rows and
// returns the stored paths of the evidence that was attached.
func (r *assignmentRepository) Delete(ctx context.Context, id string) ([]string, bool, error) {
	var paths []string
	var deleted bool

	err := r.InTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT e.stored_path
			FROM stage_evidences e
			JOIN assignment_stages s ON s.id = e.stage_id
			WHERE s.assignment_id = $1
		`, id)
		if err != nil {
			return classify(err, "failed to collect evidence paths")
		}
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				rows.Close()
				return classify(err, "failed to scan evidence path")
			}
			paths = append(paths, path)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return classify(err, "failed to collect evidence paths")
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
		if err != nil {
			return classify(err, "failed to delete assignment")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err, "failed to delete assignment")
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return paths, deleted, nil
}

const stageColumns = `
	s.id, s.assignment_id, s.ordinal, s.name, s.description, s.duration_days,
	s.start_date, s.target_date, s.progress_percent, s.is_complete, s.completed_at
`

func scanStage(row interface{ Scan(...any) error }, extra ...any) (*models.Stage, error) {
	stage := &models.Stage{}
	var completedAt sql.NullTime
	dest := []any{
		&stage.ID,
		&stage.AssignmentID,
		&stage.Ordinal,
		&stage.Name,
		&stage.Description,
		&stage.DurationDays,
		&stage.StartDate,
		&stage.TargetDate,
		&stage.ProgressPercent,
		&stage.IsComplete,
		&completedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	stage.CompletedAt = timePtr(completedAt)
	return stage, nil
}

// loadStages fetches the stages of the given assignments grouped by
// assignment id, each group in ordinal order.
func loadStages(ctx context.Context, q queryer, assignmentIDs []string) (map[string][]models.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM assignment_stages s WHERE s.assignment_id = ANY($1::uuid[]) ORDER BY s.assignment_id, s.ordinal`

	rows, err := q.QueryContext(ctx, query, pq.Array(assignmentIDs))
	if err != nil {
		return nil, classify(err, "failed to load stages")
	}
	defer rows.Close()

	stages := make(map[string][]models.Stage, len(assignmentIDs))
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, classify(err, "failed to scan stage")
		}
		stages[stage.AssignmentID] = append(stages[stage.AssignmentID], *stage)
	}

	return stages, classify(rows.Err(), "failed to load stages")
}
