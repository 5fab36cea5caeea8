// Package notify publishes realtime replay events and chat messages onto a
// RabbitMQ topic exchange. Delivery to clients is someone else's problem;
// callers treat publish failures as best-effort.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"replay-service/dto"
)

type Notifier interface {
	PublishReplayEvent(ctx context.Context, event dto.ReplayEvent) error
}

// MessageSender posts a chat message referencing a clip file into a channel.
// It returns the created message id.
type MessageSender interface {
	SendClipMessage(ctx context.Context, msg dto.ClipMessage) (string, error)
}

const (
	replayEventsRoutingKey = "replay.events"
	chatMessagesRoutingKey = "chat.clip_messages"
)

type Publisher struct {
	conn     *amqp.Connection
	exchange string
	kind     string
}

func NewPublisher(conn *amqp.Connection, exchange, kind string) *Publisher {
	if exchange == "" {
		exchange = "replay_exchange"
	}
	if kind == "" {
		kind = "topic"
	}
	return &Publisher{conn: conn, exchange: exchange, kind: kind}
}

func (p *Publisher) PublishReplayEvent(ctx context.Context, event dto.ReplayEvent) error {
	return p.publish(ctx, replayEventsRoutingKey, event)
}

func (p *Publisher) SendClipMessage(ctx context.Context, msg dto.ClipMessage) (string, error) {
	messageId := uuid.New().String()
	envelope := struct {
		MessageId string `json:"messageId"`
		dto.ClipMessage
	}{MessageId: messageId, ClipMessage: msg}

	if err := p.publish(ctx, chatMessagesRoutingKey, envelope); err != nil {
		return "", err
	}
	return messageId, nil
}

func (p *Publisher) publish(ctx context.Context, routingKey string, payload interface{}) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(p.exchange, p.kind, true, false, false, false, nil); err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", p.exchange).Err(err).Msg("failed to declare exchange")
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
