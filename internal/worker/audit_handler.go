package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
	"github.com/RubachokBoss/assignment-tracker/internal/service/integration"
)

// ErrMalformedEvent marks a delivery that can never be processed.
var ErrMalformedEvent = errors.New("malformed event")

type EventHandler interface {
	Handle(ctx context.Context, routingKey string, body []byte) error
}

// auditHandler writes the event feed to the audit log and checks that every
// attached evidence file is readable from the blob store.
type auditHandler struct {
	blobs  repository.BlobStore
	logger zerolog.Logger
}

func NewAuditHandler(blobs repository.BlobStore, logger zerolog.Logger) EventHandler {
	return &auditHandler{blobs: blobs, logger: logger}
}

func decodeEvent(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func (h *auditHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case integration.RoutingAssignmentCreated:
		var event models.AssignmentCreatedEvent
		if err := decodeEvent(body, &event); err != nil {
			return err
		}
		h.logger.Info().
			Str("assignment_id", event.AssignmentID).
			Str("template_id", event.TemplateID).
			Str("user_id", event.AssignedToUserID).
			Int("stage_count", event.StageCount).
			Msg("Audit: assignment created")

	case integration.RoutingStageProgressed:
		var event models.StageProgressedEvent
		if err := decodeEvent(body, &event); err != nil {
			return err
		}
		msg := "Audit: stage progressed"
		if event.Completed {
			msg = "Audit: stage completed"
		}
		h.logger.Info().
			Str("assignment_id", event.AssignmentID).
			Str("stage_id", event.StageID).
			Int("progress_percent", event.ProgressPercent).
			Msg(msg)

	case integration.RoutingEvidenceAttached:
		var event models.EvidenceAttachedEvent
		if err := decodeEvent(body, &event); err != nil {
			return err
		}
		return h.verifyEvidence(ctx, event)

	default:
		h.logger.Warn().Str("routing_key", routingKey).Msg("Audit: unknown event")
	}

	return nil
}

func (h *auditHandler) verifyEvidence(ctx context.Context, event models.EvidenceAttachedEvent) error {
	_, err := h.blobs.Get(ctx, event.StoredPath)
	if errors.Is(err, repository.ErrBlobNotFound) {
		// Deleted since, along with its assignment.
		h.logger.Warn().
			Str("evidence_id", event.EvidenceID).
			Str("key", event.StoredPath).
			Msg("Audit: evidence blob missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read evidence blob: %w", err)
	}

	h.logger.Info().
		Str("evidence_id", event.EvidenceID).
		Str("stage_id", event.StageID).
		Str("assignment_id", event.AssignmentID).
		Msg("Audit: evidence attached")
	return nil
}
