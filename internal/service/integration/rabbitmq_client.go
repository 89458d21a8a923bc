package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/pkg/rabbitmq"
)

const (
	RoutingAssignmentCreated = "assignment.created"
	RoutingStageProgressed   = "stage.progressed"
	RoutingEvidenceAttached  = "evidence.attached"
)

// EventPublisher emits integration events after a write has committed.
type EventPublisher interface {
	PublishAssignmentCreated(ctx context.Context, event *models.AssignmentCreatedEvent) error
	PublishStageProgressed(ctx context.Context, event *models.StageProgressedEvent) error
	PublishEvidenceAttached(ctx context.Context, event *models.EvidenceAttachedEvent) error
	Close() error
}

type rabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

func NewRabbitMQPublisher(url, exchange, queue string, logger zerolog.Logger) (EventPublisher, error) {
	conn, err := rabbitmq.NewConnection(url)
	if err != nil {
		return nil, err
	}

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := rabbitmq.DeclareTopic(channel, exchange, queue); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", exchange).
		Str("queue", queue).
		Msg("Connected to RabbitMQ")

	return &rabbitMQPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (p *rabbitMQPublisher) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

func (p *rabbitMQPublisher) PublishAssignmentCreated(ctx context.Context, event *models.AssignmentCreatedEvent) error {
	if err := p.publish(ctx, RoutingAssignmentCreated, event); err != nil {
		return err
	}

	p.logger.Info().
		Str("assignment_id", event.AssignmentID).
		Int("stage_count", event.StageCount).
		Msg("Assignment created event published")
	return nil
}

func (p *rabbitMQPublisher) PublishStageProgressed(ctx context.Context, event *models.StageProgressedEvent) error {
	if err := p.publish(ctx, RoutingStageProgressed, event); err != nil {
		return err
	}

	p.logger.Info().
		Str("stage_id", event.StageID).
		Int("progress_percent", event.ProgressPercent).
		Msg("Stage progressed event published")
	return nil
}

func (p *rabbitMQPublisher) PublishEvidenceAttached(ctx context.Context, event *models.EvidenceAttachedEvent) error {
	if err := p.publish(ctx, RoutingEvidenceAttached, event); err != nil {
		return err
	}

	p.logger.Info().
		Str("evidence_id", event.EvidenceID).
		Str("stage_id", event.StageID).
		Msg("Evidence attached event published")
	return nil
}

func (p *rabbitMQPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. It is used
// when the broker is disabled or unreachable.
func NewNoopPublisher() EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishAssignmentCreated(context.Context, *models.AssignmentCreatedEvent) error {
	return nil
}

func (noopPublisher) PublishStageProgressed(context.Context, *models.StageProgressedEvent) error {
	return nil
}

func (noopPublisher) PublishEvidenceAttached(context.Context, *models.EvidenceAttachedEvent) error {
	return nil
}

func (noopPublisher) Close() error { return nil }
