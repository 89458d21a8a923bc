package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
)

const minPasswordLength = 8

// PasswordHasher derives and checks salted password hashes.
type PasswordHasher interface {
	Hash(password string) (hash, salt string, err error)
	Verify(password, hash, salt string) bool
	NeedsRehash(hash string) bool
}

type UserService interface {
	// Authenticate returns the active user matching the credentials. Every
	// failure is reported as apperr.ErrUnauthorized.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	ListAssignable(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, id string, req *models.UpdateUserRequest) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	clock    Clock
	logger   zerolog.Logger

	// Verified when no usable account matches the email.
	decoyOnce sync.Once
	decoyHash string
	decoySalt string
}

func NewUserService(userRepo repository.UserRepository, hasher PasswordHasher, clock Clock, logger zerolog.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		hasher:   hasher,
		clock:    clock,
		logger:   logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		s.verifyDecoy(password)
		return nil, apperr.Unauthorized()
	}
	if !s.hasher.Verify(password, user.PasswordHash, user.PasswordSalt) {
		s.logger.Warn().Str("user_id", user.ID).Msg("Failed login attempt")
		return nil, apperr.Unauthorized()
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	return user, nil
}

func (s *userService) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		hash, salt, err := s.hasher.Hash("decoy-credential")
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to prepare decoy credential")
			return
		}
		s.decoyHash, s.decoySalt = hash, salt
	})
	s.hasher.Verify(password, s.decoyHash, s.decoySalt)
}

// rehash upgrades a credential stored at an outdated cost. Failure leaves
// the old credential in place.
func (s *userService) rehash(ctx context.Context, user *models.User, password string) {
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to rehash password")
		return
	}

	upgraded := *user
	upgraded.PasswordHash = hash
	upgraded.PasswordSalt = salt
	if err := s.userRepo.Update(ctx, &upgraded); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to store rehashed password")
		return
	}

	user.PasswordHash = hash
	user.PasswordSalt = salt
	s.logger.Info().Str("user_id", user.ID).Msg("Password rehashed at current cost")
}

func (s *userService) Create(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || fullName == "" {
		return nil, apperr.Validationf("email and full name are required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperr.Validationf("password must be at least %d characters", minPasswordLength)
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflictf("email is already registered")
	}

	hash, salt, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		PasswordSalt: salt,
		IsAdmin:      req.IsAdmin,
		IsActive:     req.IsActive,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflictf("email is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Bool("is_admin", user.IsAdmin).
		Msg("User created")

	return user, nil
}

func (s *userService) Get(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFoundf("user not found")
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFoundf("user not found")
	}
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *userService) ListAssignable(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.GetAssignable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignable users: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Update changes profile and flags. The password is reset only when a new
// one is supplied.
func (s *userService) Update(ctx context.Context, id string, req *models.UpdateUserRequest) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || fullName == "" {
		return nil, apperr.Validationf("email and full name are required")
	}

	if email != user.Email {
		existing, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil && existing.ID != user.ID {
			return nil, apperr.Conflictf("email is already registered")
		}
	}

	user.Email = email
	user.FullName = fullName
	user.IsAdmin = req.IsAdmin
	user.IsActive = req.IsActive
	if req.Password != "" {
		if len(req.Password) < minPasswordLength {
			return nil, apperr.Validationf("password must be at least %d characters", minPasswordLength)
		}
		hash, salt, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = hash
		user.PasswordSalt = salt
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.Conflictf("email is already registered")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Bool("password_reset", req.Password != "").
		Msg("User updated")

	return user, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFoundf("user not found")
	}

	deleted, err := s.userRepo.Delete(ctx, id)
	if errors.Is(err, apperr.ErrConflict) {
		return &apperr.Error{Kind: apperr.ErrConflict, Msg: "user is referenced by existing assignments", Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return apperr.NotFoundf("user not found")
	}

	s.logger.Info().Str("user_id", id).Msg("User deleted")
	return nil
}
