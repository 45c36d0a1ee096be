package domain

import (
	"time"

	"github.com/google/uuid"
)

// Interaction — запись о посещении одного узла одной сессией.
//
// Журнал interactions append-only: записи никогда не изменяются после
// создания (единственное исключение — ретроактивная пометка IsDropOff
// при закрытии сессии по таймауту). Этот журнал — единственный
// источник данных для аналитики.
type Interaction struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// SessionID — сессия, посетившая узел.
	SessionID uuid.UUID `json:"session_id"`

	// NodeID — посещённый узел.
	NodeID string `json:"node_id"`

	// NodeType — тип узла на момент посещения.
	NodeType NodeType `json:"node_type"`

	// NodeLabel — имя узла на момент посещения.
	NodeLabel string `json:"node_label,omitempty"`

	// UserResponse — ответ пользователя, если узел его ждал.
	// Пустая строка — ответа не было. Для упавших внешних вызовов
	// сюда пишется маркер ошибки ("error: ...").
	UserResponse string `json:"user_response,omitempty"`

	// IsDropOff — true ровно для последней записи сессии,
	// завершившейся в статусе dropped.
	IsDropOff bool `json:"is_drop_off"`

	// InteractedAt — время посещения узла.
	InteractedAt time.Time `json:"interacted_at"`
}
