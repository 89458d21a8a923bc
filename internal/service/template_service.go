package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
)

type TemplateService interface {
	Create(ctx context.Context, req *models.TemplateRequest) (*models.TaskTemplate, error)
	Get(ctx context.Context, id string) (*models.TaskTemplate, error)
	List(ctx context.Context) ([]models.TaskTemplate, error)
	Update(ctx context.Context, id string, req *models.TemplateRequest) (*models.TaskTemplate, error)
	Delete(ctx context.Context, id string) error

	AddStage(ctx context.Context, templateID string, req *models.StageTemplateRequest) (*models.StageTemplate, error)
	UpdateStage(ctx context.Context, id string, req *models.StageTemplateRequest) (*models.StageTemplate, error)
	DeleteStage(ctx context.Context, id string) error
}

type templateService struct {
	templateRepo repository.TemplateRepository
	clock        Clock
	logger       zerolog.Logger
}

func NewTemplateService(templateRepo repository.TemplateRepository, clock Clock, logger zerolog.Logger) TemplateService {
	return &templateService{
		templateRepo: templateRepo,
		clock:        clock,
		logger:       logger,
	}
}

func (s *templateService) Create(ctx context.Context, req *models.TemplateRequest) (*models.TaskTemplate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validationf("name is required")
	}

	template := &models.TaskTemplate{
		ID:          uuid.New().String(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Active:      req.Active,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.templateRepo.Create(ctx, template); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	s.logger.Info().
		Str("template_id", template.ID).
		Str("name", template.Name).
		Msg("Template created")

	return template, nil
}

func (s *templateService) get(ctx context.Context, id string) (*models.TaskTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFoundf("template not found")
	}
	template, err := s.templateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if template == nil {
		return nil, apperr.NotFoundf("template not found")
	}
	return template, nil
}

// Get returns the template with its stages in ordinal order.
func (s *templateService) Get(ctx context.Context, id string) (*models.TaskTemplate, error) {
	template, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	stages, err := s.templateRepo.GetStages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template stages: %w", err)
	}
	if stages == nil {
		stages = []models.StageTemplate{}
	}
	template.Stages = stages

	return template, nil
}

func (s *templateService) List(ctx context.Context) ([]models.TaskTemplate, error) {
	templates, err := s.templateRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	if templates == nil {
		templates = []models.TaskTemplate{}
	}
	return templates, nil
}

func (s *templateService) Update(ctx context.Context, id string, req *models.TemplateRequest) (*models.TaskTemplate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validationf("name is required")
	}

	template, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	template.Name = name
	template.Description = strings.TrimSpace(req.Description)
	template.Active = req.Active

	updated, err := s.templateRepo.Update(ctx, template)
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	if !updated {
		return nil, apperr.NotFoundf("template not found")
	}

	s.logger.Info().Str("template_id", id).Msg("Template updated")
	return template, nil
}

// Delete fails with a conflict while any assignment was created from the
// template.
func (s *templateService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFoundf("template not found")
	}

	deleted, err := s.templateRepo.Delete(ctx, id)
	if errors.Is(err, apperr.ErrConflict) {
		return &apperr.Error{Kind: apperr.ErrConflict, Msg: "template is in use by existing assignments", Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if !deleted {
		return apperr.NotFoundf("template not found")
	}

	s.logger.Info().Str("template_id", id).Msg("Template deleted")
	return nil
}

func validateStageRequest(req *models.StageTemplateRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", apperr.Validationf("name is required")
	}
	if req.DurationDays <= 0 {
		return "", apperr.Validationf("duration_days must be greater than 0")
	}
	return name, nil
}

func (s *templateService) AddStage(ctx context.Context, templateID string, req *models.StageTemplateRequest) (*models.StageTemplate, error) {
	name, err := validateStageRequest(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.get(ctx, templateID); err != nil {
		return nil, err
	}

	stage := &models.StageTemplate{
		ID:           uuid.New().String(),
		TemplateID:   templateID,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		DurationDays: req.DurationDays,
	}
	if err := s.templateRepo.AppendStage(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to add stage template: %w", err)
	}

	s.logger.Info().
		Str("template_id", templateID).
		Str("stage_template_id", stage.ID).
		Int("ordinal", stage.Ordinal).
		Msg("Stage template added")

	return stage, nil
}

func (s *templateService) getStage(ctx context.Context, id string) (*models.StageTemplate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFoundf("stage template not found")
	}
	stage, err := s.templateRepo.GetStage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage template: %w", err)
	}
	if stage == nil {
		return nil, apperr.NotFoundf("stage template not found")
	}
	return stage, nil
}

func (s *templateService) UpdateStage(ctx context.Context, id string, req *models.StageTemplateRequest) (*models.StageTemplate, error) {
	name, err := validateStageRequest(req)
	if err != nil {
		return nil, err
	}
	stage, err := s.getStage(ctx, id)
	if err != nil {
		return nil, err
	}

	stage.Name = name
	stage.Description = strings.TrimSpace(req.Description)
	stage.DurationDays = req.DurationDays
	if err := s.templateRepo.UpdateStage(ctx, stage); err != nil {
		return nil, fmt.Errorf("failed to update stage template: %w", err)
	}

	s.logger.Info().Str("stage_template_id", id).Msg("Stage template updated")
	return stage, nil
}

func (s *templateService) DeleteStage(ctx context.Context, id string) error {
	stage, err := s.getStage(ctx, id)
	if err != nil {
		return err
	}
	if err := s.templateRepo.DeleteStage(ctx, stage); err != nil {
		return fmt.Errorf("failed to delete stage template: %w", err)
	}

	s.logger.Info().
		Str("template_id", stage.TemplateID).
		Str("stage_template_id", id).
		Msg("Stage template deleted")
	return nil
}
