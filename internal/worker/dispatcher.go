package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Dispatcher feeds consumed messages through the pool into the handler.
// Malformed events are dropped; any other failure is requeued.
type Dispatcher struct {
	consumer Consumer
	pool     *Pool
	handler  EventHandler
	logger   zerolog.Logger
}

func NewDispatcher(consumer Consumer, pool *Pool, handler EventHandler, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		consumer: consumer,
		pool:     pool,
		handler:  handler,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled or the consumer stops delivering.
func (d *Dispatcher) Run(ctx context.Context) error {
	messages, err := d.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	d.pool.Start(ctx)
	defer d.pool.Stop()

	for msg := range messages {
		msg := msg
		if err := d.pool.Submit(func(ctx context.Context) { d.process(ctx, msg) }); err != nil {
			d.logger.Error().Err(err).Str("routing_key", msg.RoutingKey).Msg("Failed to schedule event")
			msg.Nack(false, true)
		}
	}

	return ctx.Err()
}

func (d *Dispatcher) process(ctx context.Context, msg Message) {
	err := d.handler.Handle(ctx, msg.RoutingKey, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			d.logger.Error().Err(ackErr).Msg("Failed to ack event")
		}
	case errors.Is(err, ErrMalformedEvent):
		d.logger.Error().Err(err).Str("routing_key", msg.RoutingKey).Msg("Dropping malformed event")
		msg.Nack(false, false)
	default:
		d.logger.Error().Err(err).Str("routing_key", msg.RoutingKey).Msg("Failed to handle event")
		msg.Nack(false, true)
	}
}
