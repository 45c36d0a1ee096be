package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Botflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeInboundEvent MessageType = "event.inbound"
	MessageTypeOutboundSend MessageType = "send.outbound"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// InboundEventPayload — payload входящего события канала.
type InboundEventPayload struct {
	Event domain.InboundEvent `json:"event"`
}

// OutboundSendPayload — payload исходящего сообщения для адаптера.
type OutboundSendPayload struct {
	Send domain.OutboundSend `json:"send"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishInboundEvent публикует входящее событие канала.
// Потребитель: Engine.
func (p *Publisher) PublishInboundEvent(ctx context.Context, event *domain.InboundEvent) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeInboundEvent,
		Payload:   InboundEventPayload{Event: *event},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyInbound, msg)
}

// PublishOutboundSend публикует исходящее сообщение для адаптера канала.
// Потребитель: адаптеры каналов.
func (p *Publisher) PublishOutboundSend(ctx context.Context, send *domain.OutboundSend) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeOutboundSend,
		Payload:   OutboundSendPayload{Send: *send},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeSends, RoutingKeyOutbound, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
