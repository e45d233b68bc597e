// Package messaging consumes marketplace events from Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"driverbook/internal/service"
)

// OfferBooker creates bookings from accepted offers.
type OfferBooker interface {
	CreateFromOffer(ctx context.Context, offer service.OfferAccepted) (*service.BookingResult, error)
}

// OfferConsumer turns "offer accepted" events into bookings.
type OfferConsumer struct {
	group  sarama.ConsumerGroup
	topic  string
	booker OfferBooker
	logger *zap.Logger
}

// NewOfferConsumer joins groupID on the given brokers.
func NewOfferConsumer(brokers []string, groupID, topic string, booker OfferBooker, logger *zap.Logger) (*OfferConsumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &OfferConsumer{
		group:  group,
		topic:  topic,
		booker: booker,
		logger: logger.Named("offer-consumer"),
	}, nil
}

// Run consumes until ctx is cancelled.
func (c *OfferConsumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.Error("consume failed", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (c *OfferConsumer) Close() error {
	return c.group.Close()
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *OfferConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *OfferConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *OfferConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(session.Context(), msg.Value); err != nil {
				c.logger.Error("offer event dropped",
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// HandleMessage decodes one event and creates its booking. Replays of an already
// booked offer are absorbed by the booking service.
func (c *OfferConsumer) HandleMessage(ctx context.Context, value []byte) error {
	var offer service.OfferAccepted
	if err := json.Unmarshal(value, &offer); err != nil {
		return fmt.Errorf("decode offer event: %w", err)
	}

	result, err := c.booker.CreateFromOffer(ctx, offer)
	if err != nil {
		return fmt.Errorf("create booking for offer %s: %w", offer.OfferID, err)
	}

	c.logger.Info("offer booked",
		zap.String("offer_id", offer.OfferID),
		zap.String("booking_id", result.Booking.ID),
		zap.Strings("warnings", result.Warnings),
	)
	return nil
}
