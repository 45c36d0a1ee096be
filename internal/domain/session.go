package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Session — один живой проход пользователя по графу диалога.
//
// Создаётся когда входящее сообщение совпало с trigger keyword бота
// (или по явному запросу старта) и для пары (бот, пользователь) нет
// другой активной сессии. Мутируется исключительно движком выполнения.
type Session struct {
	// ID — уникальный идентификатор сессии.
	ID uuid.UUID `json:"id"`

	// BotID — бот, граф которого выполняется.
	BotID uuid.UUID `json:"bot_id"`

	// UserID — конечный получатель (идентификатор в канале).
	UserID string `json:"user_id"`

	// ConversationID — идентификатор диалога в канале.
	ConversationID string `json:"conversation_id,omitempty"`

	// Channel — канал доставки (whatsapp, telegram, webchat),
	// копируется из бота при создании сессии.
	Channel string `json:"channel,omitempty"`

	// Status — текущий статус сессии.
	Status SessionStatus `json:"status"`

	// CurrentNodeID — узел, с которого продолжится выполнение.
	CurrentNodeID string `json:"current_node_id"`

	// Variables — строковое хранилище переменных сессии.
	// Служебные ключи движка начинаются с подчёркивания.
	Variables map[string]string `json:"variables,omitempty"`

	// TriggerKeyword — ключевое слово, запустившее сессию.
	TriggerKeyword string `json:"trigger_keyword,omitempty"`

	// Graph — снимок графа, сделанный при создании сессии.
	// Правки живого графа не влияют на уже идущие сессии.
	Graph json.RawMessage `json:"graph,omitempty"`

	// AwaitingInput — сессия ждёт ответа на quickReply.
	AwaitingInput bool `json:"awaiting_input,omitempty"`

	// WakeAt — время пробуждения после delay; при ожидании ответа
	// webhook — дедлайн ожидания. Nil, если сессия не спит.
	WakeAt *time.Time `json:"wake_at,omitempty"`

	// CorrelationID — ожидаемый идентификатор ответа webhookTrigger.
	CorrelationID string `json:"correlation_id,omitempty"`

	// StartedAt — время создания сессии.
	StartedAt time.Time `json:"started_at"`

	// EndedAt — время перехода в финальный статус.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// LastActivityAt — время последнего interaction.
	// По нему sweep находит заснувшие сессии.
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Var возвращает значение переменной сессии.
// Отсутствующая переменная — пустая строка.
func (s *Session) Var(name string) string {
	if s.Variables == nil {
		return ""
	}
	return s.Variables[name]
}

// SetVar записывает переменную сессии.
func (s *Session) SetVar(name, value string) {
	if s.Variables == nil {
		s.Variables = make(map[string]string)
	}
	s.Variables[name] = value
}

// IsSuspended возвращает true, если сессия ждёт внешнего события
// (ответа пользователя, пробуждения по таймеру или ответа webhook).
func (s *Session) IsSuspended() bool {
	return s.AwaitingInput || s.WakeAt != nil || s.CorrelationID != ""
}

// ClearSuspension снимает все маркеры приостановки.
// Вызывается при закрытии сессии, чтобы устаревший resume не ожил.
func (s *Session) ClearSuspension() {
	s.AwaitingInput = false
	s.WakeAt = nil
	s.CorrelationID = ""
}

// MarkClosed переводит сессию в финальный статус.
func (s *Session) MarkClosed(status SessionStatus, at time.Time) {
	s.Status = status
	s.EndedAt = &at
	s.ClearSuspension()
}
