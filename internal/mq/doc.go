// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация исходящих сообщений
//   - consumer.go   — потребление входящих событий каналов
//
// Типы сообщений:
//   - event.inbound  — входящее событие от адаптера канала
//   - send.outbound  — исходящее сообщение для адаптера канала
//
// Exchanges:
//   - botflow.events — входящие события
//   - botflow.sends  — исходящие сообщения
//   - botflow.dlq    — dead letter queue
package mq
