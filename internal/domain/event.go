package domain

import (
	"time"

	"github.com/google/uuid"
)

// InboundEvent — входящее событие от адаптера канала.
//
// Движок либо создаёт новую сессию (совпадение по trigger keyword),
// либо возобновляет существующую активную — событие трактуется как
// ожидаемый ввод приостановленного узла.
type InboundEvent struct {
	// BotID — кандидат-бот, если адаптер его знает. Иначе zero.
	BotID uuid.UUID `json:"bot_id,omitempty"`

	// ConversationID — идентификатор диалога в канале.
	ConversationID string `json:"conversation_id,omitempty"`

	// UserID — отправитель.
	UserID string `json:"user_id"`

	// Text — текст сообщения.
	Text string `json:"text,omitempty"`

	// ButtonPayload — id нажатой кнопки, если это callback кнопки.
	ButtonPayload string `json:"button_payload,omitempty"`

	// CorrelationID — идентификатор ответа на webhookTrigger
	// с waitForResponse.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Timestamp — время события на стороне канала.
	Timestamp time.Time `json:"timestamp"`
}

// Reply возвращает полезный ввод события: payload кнопки,
// если он есть, иначе текст.
func (e *InboundEvent) Reply() string {
	if e.ButtonPayload != "" {
		return e.ButtonPayload
	}
	return e.Text
}

// OutboundSend — отрендеренное сообщение для адаптера канала.
// Fire-and-forget: статус доставки отслеживает адаптер, не движок.
type OutboundSend struct {
	// SessionID — сессия-источник.
	SessionID uuid.UUID `json:"session_id"`

	// UserID — получатель.
	UserID string `json:"user_id"`

	// Channel — канал доставки.
	Channel string `json:"channel"`

	// Text — отрендеренный текст.
	Text string `json:"text"`

	// Buttons — кнопки быстрого ответа, если узел их объявил.
	Buttons []Button `json:"buttons,omitempty"`
}
