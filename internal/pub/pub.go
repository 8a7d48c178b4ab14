package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher writes ledger events to kafka. Publishing is best effort:
// a broker outage must never fail a committed transaction, so errors are
// logged and dropped.
type EventPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func New(brokers []string, topic string, logger *zap.Logger) *EventPublisher {
	if len(brokers) == 0 {
		return &EventPublisher{logger: logger}
	}
	return &EventPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

func (p *EventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

type TradeProcessedEvent struct {
	EventType   string    `json:"event_type"` // trade.processed
	TradeID     string    `json:"trade_id"`
	UserID      string    `json:"user_id"`
	TokenType   string    `json:"token_type"`
	FeeAmount   string    `json:"fee_amount"`
	Commissions int       `json:"commissions"`
	Timestamp   time.Time `json:"timestamp"`
}

type CommissionsClaimedEvent struct {
	EventType string    `json:"event_type"` // commissions.claimed
	UserID    string    `json:"user_id"`
	TokenType string    `json:"token_type"`
	Total     string    `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *EventPublisher) PublishTradeProcessed(ctx context.Context, ev TradeProcessedEvent) {
	ev.EventType = "trade.processed"
	ev.Timestamp = time.Now()
	p.publish(ctx, ev.TradeID, ev)
}

func (p *EventPublisher) PublishCommissionsClaimed(ctx context.Context, ev CommissionsClaimedEvent) {
	ev.EventType = "commissions.claimed"
	ev.Timestamp = time.Now()
	p.publish(ctx, ev.UserID, ev)
}

func (p *EventPublisher) publish(ctx context.Context, key string, event interface{}) {
	if p == nil || p.writer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Warn("failed to publish event", zap.String("key", key), zap.Error(err))
	}
}
