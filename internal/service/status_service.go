package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
)

// StatusService projects assignments and dashboards from the current stage
// rows at read time. Nothing is cached.
type StatusService interface {
	Project(ctx context.Context, assignmentID string, requester models.Principal) (*models.AssignmentDetails, error)
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

type statusService struct {
	assignmentRepo repository.AssignmentRepository
	userRepo       repository.UserRepository
	clock          Clock
	logger         zerolog.Logger
}

func NewStatusService(assignmentRepo repository.AssignmentRepository, userRepo repository.UserRepository, clock Clock, logger zerolog.Logger) StatusService {
	return &statusService{
		assignmentRepo: assignmentRepo,
		userRepo:       userRepo,
		clock:          clock,
		logger:         logger,
	}
}

func (s *statusService) Project(ctx context.Context, assignmentID string, requester models.Principal) (*models.AssignmentDetails, error) {
	if _, err := uuid.Parse(assignmentID); err != nil {
		return nil, apperr.NotFoundf("assignment not found")
	}

	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if assignment == nil || (!requester.IsAdmin && assignment.AssignedToUserID != requester.UserID) {
		return nil, apperr.NotFoundf("assignment not found")
	}

	return Project(*assignment, s.clock.Today()), nil
}

// Dashboard counts every assignment system-wide and per assignable user.
// The two reads run concurrently and are not taken from one snapshot.
func (s *statusService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var (
		assignments []models.AssignmentWithNames
		users       []models.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignments, err = s.assignmentRepo.ListWithStages(gctx, repository.AssignmentFilter{})
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		users, err = s.userRepo.GetAssignable(gctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := BuildDashboard(assignments, users, s.clock.Today())

	s.logger.Debug().
		Int("total_tasks", stats.TotalTasks).
		Int("overdue_tasks", stats.OverdueTasks).
		Msg("Dashboard computed")

	return stats, nil
}

// BuildDashboard aggregates assignments into system-wide counters and one
// summary per user, in the order users are given.
func BuildDashboard(assignments []models.AssignmentWithNames, users []models.User, today time.Time) *models.DashboardStats {
	type rollup struct {
		counts   models.TaskCounts
		progress float64
	}

	stats := &models.DashboardStats{UserSummaries: make([]models.UserTaskSummary, 0, len(users))}
	perUser := make(map[string]*rollup, len(users))

	for _, a := range assignments {
		summary := Summarize(a, today)
		Tally(&stats.TaskCounts, summary)

		r, ok := perUser[a.AssignedToUserID]
		if !ok {
			r = &rollup{}
			perUser[a.AssignedToUserID] = r
		}
		Tally(&r.counts, summary)
		r.progress += summary.OverallProgress
	}

	for _, u := range users {
		summary := models.UserTaskSummary{UserID: u.ID, UserName: u.FullName}
		if r, ok := perUser[u.ID]; ok {
			summary.TaskCounts = r.counts
			summary.AverageProgress = roundTenth(r.progress / float64(r.counts.TotalTasks))
		}
		stats.UserSummaries = append(stats.UserSummaries, summary)
	}

	return stats
}
