package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
	"github.com/RubachokBoss/assignment-tracker/internal/service/integration"
)

type ProgressService interface {
	// UpdateProgress sets a stage's progress on behalf of its assignee and
	// derives completion from it. Stages the caller does not own are
	// reported as not found.
	UpdateProgress(ctx context.Context, stageID, requestingUserID string, progress int) (*models.Stage, error)
}

type progressService struct {
	stageRepo repository.StageRepository
	events    integration.EventPublisher
	clock     Clock
	logger    zerolog.Logger
}

func NewProgressService(stageRepo repository.StageRepository, events integration.EventPublisher, clock Clock, logger zerolog.Logger) ProgressService {
	return &progressService{
		stageRepo: stageRepo,
		events:    events,
		clock:     clock,
		logger:    logger,
	}
}

func (s *progressService) UpdateProgress(ctx context.Context, stageID, requestingUserID string, progress int) (*models.Stage, error) {
	if progress < 0 || progress > models.CompleteThreshold {
		return nil, apperr.Validationf("progress must be between 0 and 100")
	}
	if _, err := uuid.Parse(stageID); err != nil {
		return nil, apperr.NotFoundf("stage not found")
	}
	if _, err := uuid.Parse(requestingUserID); err != nil {
		return nil, apperr.NotFoundf("stage not found")
	}

	var completed bool
	stage, err := s.stageRepo.UpdateProgress(ctx, stageID, requestingUserID, func(stage *models.Stage) error {
		completed = stage.ApplyProgress(progress, s.clock.Now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	s.logger.Info().
		Str("stage_id", stage.ID).
		Str("assignment_id", stage.AssignmentID).
		Str("user_id", requestingUserID).
		Int("progress_percent", stage.ProgressPercent).
		Bool("is_complete", stage.IsComplete).
		Msg("Stage progress updated")

	event := &models.StageProgressedEvent{
		AssignmentID:    stage.AssignmentID,
		StageID:         stage.ID,
		ProgressPercent: stage.ProgressPercent,
		IsComplete:      stage.IsComplete,
		Completed:       completed,
		Timestamp:       s.clock.Now().Unix(),
	}
	if err := s.events.PublishStageProgressed(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("stage_id", stage.ID).Msg("Failed to publish stage progressed event")
	}

	return stage, nil
}
