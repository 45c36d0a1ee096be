package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeEvents Exchange = "botflow.events"
	ExchangeSends  Exchange = "botflow.sends"
	ExchangeDLQ    Exchange = "botflow.dlq"
)

// Queues — имена очередей.
const (
	QueueEventsInbound Queue = "events.inbound"
	QueueSendsOutbound Queue = "sends.outbound"
	QueueDLQEvents     Queue = "dlq.events"
)

// Routing keys.
const (
	RoutingKeyInbound   RoutingKey = "inbound"
	RoutingKeyOutbound  RoutingKey = "outbound"
	RoutingKeyDLQEvents RoutingKey = "events"
)

// SetupTopology объявляет обменники, очереди и привязки платформы.
// Идемпотентна: повторное объявление существующей топологии — no-op.
func SetupTopology(conn *Connection) error {
	return conn.WithChannel(func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeEvents, "direct"},
		{ExchangeSends, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// events.inbound — с DLQ (событие, раз за разом роняющее
		// обработчик, уходит на ручной разбор)
		{QueueEventsInbound, dlqArgs},

		// sends.outbound — без DLQ (доставка fire-and-forget)
		{QueueSendsOutbound, nil},

		// dlq.events — сама DLQ очередь
		{QueueDLQEvents, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueEventsInbound, RoutingKeyInbound, ExchangeEvents},
		{QueueSendsOutbound, RoutingKeyOutbound, ExchangeSends},
		{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
