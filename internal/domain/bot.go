package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Bot — бот, привязанный к каналу обмена сообщениями.
//
// Граф бота редактируется визуальным редактором (внешний коллаборатор),
// движок читает его только в момент создания сессии — снимок графа
// кладётся в Session.Graph.
type Bot struct {
	// ID — уникальный идентификатор бота.
	ID uuid.UUID `json:"id"`

	// Name — имя бота.
	Name string `json:"name"`

	// Channel — канал доставки ("whatsapp", "instagram", "facebook",
	// "telegram", "twitter").
	Channel string `json:"channel"`

	// TriggerKeywords — ключевые слова, запускающие сессию.
	// Сравнение регистронезависимое.
	TriggerKeywords []string `json:"trigger_keywords,omitempty"`

	// IsActive — неактивные боты не реагируют на входящие сообщения.
	IsActive bool `json:"is_active"`

	// Graph — актуальный граф диалога ({nodes, edges} в JSON).
	Graph json.RawMessage `json:"graph,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}
