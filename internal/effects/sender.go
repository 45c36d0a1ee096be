package effects

import (
	"context"

	"github.com/shaiso/Botflow/internal/domain"
)

// Sender — доставка отрендеренного сообщения в канал.
//
// Движок шлёт fire-and-forget: статус доставки отслеживает адаптер
// канала. В production реализация публикует сообщение в RabbitMQ
// (очередь sends.outbound), в тестах — функция-перехватчик.
type Sender interface {
	Send(ctx context.Context, send *domain.OutboundSend) error
}

// SenderFunc — адаптер функции к интерфейсу Sender.
type SenderFunc func(ctx context.Context, send *domain.OutboundSend) error

// Send реализует Sender.
func (f SenderFunc) Send(ctx context.Context, send *domain.OutboundSend) error {
	return f(ctx, send)
}
