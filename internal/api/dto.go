package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

// Bot DTOs

// CreateBotRequest — запрос на создание бота.
type CreateBotRequest struct {
	Name            string          `json:"name"`
	Channel         string          `json:"channel"`
	TriggerKeywords []string        `json:"trigger_keywords,omitempty"`
	Graph           json.RawMessage `json:"graph,omitempty"`
}

// UpdateBotRequest — запрос на обновление бота.
type UpdateBotRequest struct {
	Name            *string         `json:"name,omitempty"`
	Channel         *string         `json:"channel,omitempty"`
	TriggerKeywords *[]string       `json:"trigger_keywords,omitempty"`
	Graph           json.RawMessage `json:"graph,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение бота.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// BotResponse — ответ с ботом.
type BotResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Channel         string          `json:"channel"`
	TriggerKeywords []string        `json:"trigger_keywords,omitempty"`
	IsActive        bool            `json:"is_active"`
	Graph           json.RawMessage `json:"graph,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BotFromDomain конвертирует domain.Bot в BotResponse.
func BotFromDomain(b domain.Bot) BotResponse {
	return BotResponse{
		ID:              b.ID,
		Name:            b.Name,
		Channel:         b.Channel,
		TriggerKeywords: b.TriggerKeywords,
		IsActive:        b.IsActive,
		Graph:           b.Graph,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// Session DTOs

// StartSessionRequest — запрос на явный старт сессии.
type StartSessionRequest struct {
	UserID    string            `json:"user_id"`
	Variables map[string]string `json:"variables,omitempty"`
}

// SessionResponse — ответ с сессией. Снимок графа не включается —
// он большой и нужен только движку.
type SessionResponse struct {
	ID             uuid.UUID         `json:"id"`
	BotID          uuid.UUID         `json:"bot_id"`
	UserID         string            `json:"user_id"`
	ConversationID string            `json:"conversation_id,omitempty"`
	Channel        string            `json:"channel,omitempty"`
	Status         string            `json:"status"`
	CurrentNodeID  string            `json:"current_node_id"`
	Variables      map[string]string `json:"variables,omitempty"`
	TriggerKeyword string            `json:"trigger_keyword,omitempty"`
	AwaitingInput  bool              `json:"awaiting_input,omitempty"`
	WakeAt         *time.Time        `json:"wake_at,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	EndedAt        *time.Time        `json:"ended_at,omitempty"`
	LastActivityAt time.Time         `json:"last_activity_at"`
}

// SessionFromDomain конвертирует domain.Session в SessionResponse.
func SessionFromDomain(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		BotID:          s.BotID,
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
		Channel:        s.Channel,
		Status:         string(s.Status),
		CurrentNodeID:  s.CurrentNodeID,
		Variables:      s.Variables,
		TriggerKeyword: s.TriggerKeyword,
		AwaitingInput:  s.AwaitingInput,
		WakeAt:         s.WakeAt,
		StartedAt:      s.StartedAt,
		EndedAt:        s.EndedAt,
		LastActivityAt: s.LastActivityAt,
	}
}

// Interaction DTOs

// InteractionResponse — ответ с записью журнала.
type InteractionResponse struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	NodeID       string    `json:"node_id"`
	NodeType     string    `json:"node_type"`
	NodeLabel    string    `json:"node_label,omitempty"`
	UserResponse string    `json:"user_response,omitempty"`
	IsDropOff    bool      `json:"is_drop_off"`
	InteractedAt time.Time `json:"interacted_at"`
}

// InteractionFromDomain конвертирует domain.Interaction в InteractionResponse.
func InteractionFromDomain(in domain.Interaction) InteractionResponse {
	return InteractionResponse{
		ID:           in.ID,
		SessionID:    in.SessionID,
		NodeID:       in.NodeID,
		NodeType:     string(in.NodeType),
		NodeLabel:    in.NodeLabel,
		UserResponse: in.UserResponse,
		IsDropOff:    in.IsDropOff,
		InteractedAt: in.InteractedAt,
	}
}

// Event DTOs

// EventResponse — итог обработки входящего события.
type EventResponse struct {
	Matched   bool       `json:"matched"`
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Suspended bool       `json:"suspended,omitempty"`
	Steps     int        `json:"steps,omitempty"`
}

// Graph validation DTOs

// ValidateGraphRequest — запрос на валидацию графа.
type ValidateGraphRequest struct {
	Graph json.RawMessage `json:"graph"`
}

// ValidateGraphResponse — итог валидации графа.
type ValidateGraphResponse struct {
	Valid bool   `json:"valid"`
	Nodes int    `json:"nodes,omitempty"`
	Error string `json:"error,omitempty"`
}

// Analytics DTOs

// CompletionResponse — completion rate бота в окне.
type CompletionResponse struct {
	BotID          uuid.UUID `json:"bot_id"`
	CompletionRate float64   `json:"completion_rate"`
}
