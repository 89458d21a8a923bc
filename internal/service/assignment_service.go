package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
	"github.com/RubachokBoss/assignment-tracker/internal/service/integration"
)

type AssignmentService interface {
	// Instantiate creates an assignment and its date-chained stages from a
	// template in one transaction.
	Instantiate(ctx context.Context, req *models.CreateAssignmentRequest, assignedByUserID string) (*models.Assignment, error)
	ListAll(ctx context.Context) ([]models.AssignmentSummary, error)
	ListForUser(ctx context.Context, userID string) ([]models.AssignmentSummary, error)
	Delete(ctx context.Context, id string) error
}

type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	templateRepo   repository.TemplateRepository
	userRepo       repository.UserRepository
	blobs          repository.BlobStore
	events         integration.EventPublisher
	clock          Clock
	logger         zerolog.Logger
}

func NewAssignmentService(
	assignmentRepo repository.AssignmentRepository,
	templateRepo repository.TemplateRepository,
	userRepo repository.UserRepository,
	blobs repository.BlobStore,
	events integration.EventPublisher,
	clock Clock,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		templateRepo:   templateRepo,
		userRepo:       userRepo,
		blobs:          blobs,
		events:         events,
		clock:          clock,
		logger:         logger,
	}
}

func (s *assignmentService) Instantiate(ctx context.Context, req *models.CreateAssignmentRequest, assignedByUserID string) (*models.Assignment, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validationf("title is required")
	}

	// Проверяем, что шаблон существует и активен
	if _, err := uuid.Parse(req.TemplateID); err != nil {
		return nil, apperr.Validationf("template not found or inactive")
	}
	template, err := s.templateRepo.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if template == nil || !template.Active {
		return nil, apperr.Validationf("template not found or inactive")
	}

	// Проверяем исполнителя
	if _, err := uuid.Parse(req.AssignedToUserID); err != nil {
		return nil, apperr.Validationf("assignee not found or not assignable")
	}
	assignee, err := s.userRepo.GetByID(ctx, req.AssignedToUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignee: %w", err)
	}
	if !assignee.Assignable() {
		return nil, apperr.Validationf("assignee not found or not assignable")
	}

	startDate, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return nil, apperr.Validationf("start_date must be a date in YYYY-MM-DD format")
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		due, err := time.Parse(models.DateLayout, req.DueDate)
		if err != nil {
			return nil, apperr.Validationf("due_date must be a date in YYYY-MM-DD format")
		}
		dueDate = &due
	}

	assignment := &models.Assignment{
		ID:               uuid.New().String(),
		TemplateID:       template.ID,
		Title:            title,
		Description:      strings.TrimSpace(req.Description),
		AssignedToUserID: assignee.ID,
		AssignedByUserID: assignedByUserID,
		CreatedAt:        s.clock.Now(),
		StartDate:        startDate,
		DueDate:          dueDate,
	}

	plan := func(assignmentID string, templates []models.StageTemplate) ([]models.Stage, error) {
		return PlanStages(assignmentID, assignment.StartDate, templates), nil
	}
	if err := s.assignmentRepo.Instantiate(ctx, assignment, plan); err != nil {
		// Шаблон или пользователь удалены после проверок выше
		if errors.Is(err, apperr.ErrConflict) {
			s.logger.Warn().Err(err).Str("template_id", template.ID).Msg("Assignment references vanished during instantiation")
			return nil, apperr.Validationf("template or user no longer exists")
		}
		return nil, fmt.Errorf("failed to instantiate assignment: %w", err)
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID).
		Str("template_id", assignment.TemplateID).
		Str("user_id", assignment.AssignedToUserID).
		Int("stages", len(assignment.Stages)).
		Msg("Assignment instantiated")

	event := &models.AssignmentCreatedEvent{
		AssignmentID:     assignment.ID,
		TemplateID:       assignment.TemplateID,
		AssignedToUserID: assignment.AssignedToUserID,
		StageCount:       len(assignment.Stages),
		Timestamp:        s.clock.Now().Unix(),
	}
	if err := s.events.PublishAssignmentCreated(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("assignment_id", assignment.ID).Msg("Failed to publish assignment created event")
	}

	return assignment, nil
}

func (s *assignmentService) ListAll(ctx context.Context) ([]models.AssignmentSummary, error) {
	return s.list(ctx, repository.AssignmentFilter{})
}

func (s *assignmentService) ListForUser(ctx context.Context, userID string) ([]models.AssignmentSummary, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []models.AssignmentSummary{}, nil
	}
	return s.list(ctx, repository.AssignmentFilter{AssignedToUserID: userID})
}

func (s *assignmentService) list(ctx context.Context, filter repository.AssignmentFilter) ([]models.AssignmentSummary, error) {
	assignments, err := s.assignmentRepo.ListWithStages(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	today := s.clock.Today()
	summaries := make([]models.AssignmentSummary, 0, len(assignments))
	for _, a := range assignments {
		summaries = append(summaries, Summarize(a, today))
	}
	return summaries, nil
}

// Delete removes the assignment with its stages and evidence rows, then
// the evidence files. A file that cannot be removed is logged and left.
func (s *assignmentService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFoundf("assignment not found")
	}

	paths, deleted, err := s.assignmentRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if !deleted {
		return apperr.NotFoundf("assignment not found")
	}

	for _, path := range paths {
		if err := s.blobs.Delete(ctx, path); err != nil {
			s.logger.Warn().Err(err).Str("key", path).Msg("Failed to delete evidence blob")
		}
	}

	s.logger.Info().
		Str("assignment_id", id).
		Int("evidence_files", len(paths)).
		Msg("Assignment deleted")

	return nil
}
