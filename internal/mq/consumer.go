package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Botflow/internal/domain"
)

// EventHandler обрабатывает одно входящее событие канала.
// Ошибка возвращает событие в очередь на повторную доставку.
type EventHandler func(ctx context.Context, event *domain.InboundEvent) error

// EventConsumer читает входящие события каналов из events.inbound
// и передаёт их обработчику по одному.
//
// Сообщение, которое не удаётся разобрать, уходит в DLQ на ручной
// разбор. Ошибка обработчика возвращает событие в очередь — повторную
// доставку поглощает идемпотентность журнала.
type EventConsumer struct {
	conn     *Connection
	logger   *slog.Logger
	handle   EventHandler
	prefetch int

	cancelFunc context.CancelFunc
}

// EventConsumerConfig — конфигурация EventConsumer.
type EventConsumerConfig struct {
	// Handle — обработчик событий (обычно dispatcher.HandleInbound).
	Handle EventHandler

	// Prefetch — количество событий в обработке одновременно.
	Prefetch int
}

// NewEventConsumer создаёт новый EventConsumer.
func NewEventConsumer(conn *Connection, logger *slog.Logger, cfg EventConsumerConfig) *EventConsumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &EventConsumer{
		conn:     conn,
		logger:   logger,
		handle:   cfg.Handle,
		prefetch: prefetch,
	}
}

// Start запускает потребление событий. Блокирует до отмены контекста.
func (c *EventConsumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx)
}

// consume — основной цикл: подписка, обработка, переподписка
// после разрыва соединения.
func (c *EventConsumer) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe to inbound events", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, resubscribing to inbound events")
				continue
			}
		}

		c.logger.Info("inbound event consumer started", "queue", QueueEventsInbound)

		if err := c.processDeliveries(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// subscribe настраивает prefetch и подписывается на events.inbound.
func (c *EventConsumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(QueueEventsInbound), // queue
		"",                         // consumer tag (auto-generated)
		false,                      // auto-ack (мы ack вручную)
		false,                      // exclusive
		false,                      // no-local
		false,                      // no-wait
		nil,                        // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// processDeliveries обрабатывает события из канала доставки.
func (c *EventConsumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery разбирает одно сообщение очереди и передаёт событие
// обработчику.
func (c *EventConsumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	event, err := decodeInboundEvent(raw.Body)
	if err != nil {
		c.logger.Error("malformed inbound event",
			"error", err,
			"body", string(raw.Body),
		)
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("inbound event received",
		"bot_id", event.BotID,
		"user_id", event.UserID,
	)

	if err := c.handle(ctx, event); err != nil {
		c.logger.Error("inbound event handling failed",
			"bot_id", event.BotID,
			"user_id", event.UserID,
			"error", err,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// Stop останавливает consumer.
func (c *EventConsumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// decodeInboundEvent разбирает тело сообщения очереди в событие канала.
func decodeInboundEvent(body []byte) (*domain.InboundEvent, error) {
	var msg struct {
		ID      string          `json:"id"`
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != MessageTypeInboundEvent {
		return nil, fmt.Errorf("unexpected message type %q", msg.Type)
	}

	var payload InboundEventPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal event payload: %w", err)
	}
	return &payload.Event, nil
}
