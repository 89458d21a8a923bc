package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/apperr"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
	"github.com/RubachokBoss/assignment-tracker/internal/service/integration"
)

const (
	DefaultMaxEvidenceSize = 20 << 20
	maxFileNameLength      = 255
)

var DefaultAllowedExtensions = []string{"pdf", "jpg", "jpeg", "png", "docx", "xlsx"}

// EvidencePolicy bounds what may be attached to a stage.
type EvidencePolicy struct {
	MaxSize           int64
	AllowedExtensions []string
}

func (p EvidencePolicy) allows(ext string) bool {
	for _, allowed := range p.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

type EvidenceService interface {
	Attach(ctx context.Context, req *models.AttachEvidenceRequest) (*models.Evidence, error)
	ListForStage(ctx context.Context, stageID string, requester models.Principal) ([]models.Evidence, error)
	Download(ctx context.Context, evidenceID string, requester models.Principal) (*models.Evidence, []byte, error)
}

type evidenceService struct {
	stageRepo    repository.StageRepository
	evidenceRepo repository.EvidenceRepository
	blobs        repository.BlobStore
	events       integration.EventPublisher
	policy       EvidencePolicy
	clock        Clock
	logger       zerolog.Logger
}

func NewEvidenceService(
	stageRepo repository.StageRepository,
	evidenceRepo repository.EvidenceRepository,
	blobs repository.BlobStore,
	events integration.EventPublisher,
	policy EvidencePolicy,
	clock Clock,
	logger zerolog.Logger,
) EvidenceService {
	if policy.MaxSize <= 0 {
		policy.MaxSize = DefaultMaxEvidenceSize
	}
	if len(policy.AllowedExtensions) == 0 {
		policy.AllowedExtensions = DefaultAllowedExtensions
	}
	return &evidenceService{
		stageRepo:    stageRepo,
		evidenceRepo: evidenceRepo,
		blobs:        blobs,
		events:       events,
		policy:       policy,
		clock:        clock,
		logger:       logger,
	}
}

func (s *evidenceService) ownedStage(ctx context.Context, stageID string, requester models.Principal) (*models.OwnedStage, error) {
	if _, err := uuid.Parse(stageID); err != nil {
		return nil, apperr.NotFoundf("stage not found")
	}
	stage, err := s.stageRepo.GetWithOwner(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	if stage == nil || (!requester.IsAdmin && stage.AssignedToUserID != requester.UserID) {
		return nil, apperr.NotFoundf("stage not found")
	}
	return stage, nil
}

// Attach stores the file under {assignmentId}/{stageId}/{uuid}.{ext} and
// records its metadata. Nothing is written when validation fails.
func (s *evidenceService) Attach(ctx context.Context, req *models.AttachEvidenceRequest) (*models.Evidence, error) {
	stage, err := s.ownedStage(ctx, req.StageID, models.Principal{UserID: req.RequestingUserID})
	if err != nil {
		return nil, err
	}

	size := int64(len(req.FileBytes))
	if size == 0 {
		return nil, apperr.Validationf("file is empty")
	}
	if size > s.policy.MaxSize {
		return nil, apperr.Validationf("file exceeds the maximum size of %d MiB", s.policy.MaxSize>>20)
	}

	name := originalName(req.OriginalFileName)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" || !s.policy.allows(ext) {
		return nil, apperr.Validationf("file type is not allowed; allowed types: %s", strings.Join(s.policy.AllowedExtensions, ", "))
	}

	key := fmt.Sprintf("%s/%s/%s.%s", stage.AssignmentID, stage.ID, uuid.New().String(), ext)
	contentType := mimetype.Detect(req.FileBytes).String()

	if err := s.blobs.Put(ctx, key, req.FileBytes, contentType); err != nil {
		return nil, apperr.Storage(err, "failed to store evidence file")
	}

	evidence := &models.Evidence{
		ID:               uuid.New().String(),
		StageID:          stage.ID,
		OriginalFileName: name,
		StoredPath:       key,
		ContentType:      contentType,
		SizeBytes:        size,
		Notes:            strings.TrimSpace(req.Notes),
		UploadedByUserID: req.RequestingUserID,
		UploadedAt:       s.clock.Now(),
	}

	if err := s.evidenceRepo.Create(ctx, evidence); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned evidence blob")
		}
		return nil, fmt.Errorf("failed to save evidence: %w", err)
	}

	s.logger.Info().
		Str("evidence_id", evidence.ID).
		Str("stage_id", stage.ID).
		Str("assignment_id", stage.AssignmentID).
		Str("user_id", req.RequestingUserID).
		Int64("size", size).
		Msg("Evidence attached")

	event := &models.EvidenceAttachedEvent{
		EvidenceID:   evidence.ID,
		AssignmentID: stage.AssignmentID,
		StageID:      stage.ID,
		StoredPath:   key,
		Timestamp:    s.clock.Now().Unix(),
	}
	if err := s.events.PublishEvidenceAttached(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("evidence_id", evidence.ID).Msg("Failed to publish evidence attached event")
	}

	return evidence, nil
}

// originalName strips any client-side directory from the uploaded name and
// caps it at maxFileNameLength characters, keeping the extension.
func originalName(name string) string {
	name = strings.ToValidUTF8(name, "")
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	if utf8.RuneCountInString(name) <= maxFileNameLength {
		return name
	}

	ext := path.Ext(name)
	if utf8.RuneCountInString(ext) >= maxFileNameLength {
		ext = ""
	}
	stem := []rune(strings.TrimSuffix(name, ext))
	return string(stem[:maxFileNameLength-utf8.RuneCountInString(ext)]) + ext
}

func (s *evidenceService) ListForStage(ctx context.Context, stageID string, requester models.Principal) ([]models.Evidence, error) {
	if _, err := s.ownedStage(ctx, stageID, requester); err != nil {
		return nil, err
	}

	evidences, err := s.evidenceRepo.GetByStage(ctx, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	if evidences == nil {
		evidences = []models.Evidence{}
	}
	return evidences, nil
}

func (s *evidenceService) Download(ctx context.Context, evidenceID string, requester models.Principal) (*models.Evidence, []byte, error) {
	if _, err := uuid.Parse(evidenceID); err != nil {
		return nil, nil, apperr.NotFoundf("evidence not found")
	}

	evidence, owner, err := s.evidenceRepo.GetWithOwner(ctx, evidenceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get evidence: %w", err)
	}
	if evidence == nil || (!requester.IsAdmin && owner != requester.UserID) {
		return nil, nil, apperr.NotFoundf("evidence not found")
	}

	data, err := s.blobs.Get(ctx, evidence.StoredPath)
	if errors.Is(err, repository.ErrBlobNotFound) {
		return nil, nil, apperr.NotFoundf("evidence file not found")
	}
	if err != nil {
		return nil, nil, apperr.Storage(err, "failed to read evidence file")
	}

	return evidence, data, nil
}
