package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/flow"
)

// ListBots возвращает список всех ботов.
// GET /api/v1/bots
func (h *Handler) ListBots(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	bots, err := h.store.ListBots(r.Context(), activeOnly)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]BotResponse, len(bots))
	for i, b := range bots {
		result[i] = BotFromDomain(b)
	}

	List(w, result, len(result))
}

// CreateBot создаёт нового бота.
// POST /api/v1/bots
func (h *Handler) CreateBot(w http.ResponseWriter, r *http.Request) {
	var req CreateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if req.Channel == "" {
		BadRequest(w, "channel is required")
		return
	}
	if len(req.Graph) > 0 {
		if _, err := flow.Parse(req.Graph); err != nil {
			InvalidState(w, "invalid graph: "+err.Error())
			return
		}
	}

	now := time.Now()
	bot := &domain.Bot{
		ID:              uuid.New(),
		Name:            req.Name,
		Channel:         req.Channel,
		TriggerKeywords: req.TriggerKeywords,
		IsActive:        false,
		Graph:           req.Graph,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.CreateBot(r.Context(), bot); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, BotFromDomain(*bot))
}

// GetBot возвращает бота по ID.
// GET /api/v1/bots/{id}
func (h *Handler) GetBot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid bot id")
		return
	}

	bot, err := h.store.GetBot(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "bot not found") {
		return
	}

	Success(w, BotFromDomain(*bot))
}

// UpdateBot обновляет бота. Новый граф проходит валидацию перед
// сохранением; идущие сессии продолжают работать на своих снимках.
// PUT /api/v1/bots/{id}
func (h *Handler) UpdateBot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid bot id")
		return
	}

	var req UpdateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	bot, err := h.store.GetBot(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "bot not found") {
		return
	}

	if req.Name != nil {
		bot.Name = *req.Name
	}
	if req.Channel != nil {
		bot.Channel = *req.Channel
	}
	if req.TriggerKeywords != nil {
		bot.TriggerKeywords = *req.TriggerKeywords
	}
	if len(req.Graph) > 0 {
		if _, err := flow.Parse(req.Graph); err != nil {
			InvalidState(w, "invalid graph: "+err.Error())
			return
		}
		bot.Graph = req.Graph
	}
	bot.UpdatedAt = time.Now()

	if err := h.store.UpdateBot(r.Context(), bot); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if err := h.dispatcher.RefreshKeywords(r.Context()); err != nil {
		h.logger.Warn("keyword index refresh failed", "error", err)
	}

	Success(w, BotFromDomain(*bot))
}

// SetBotEnabled включает или выключает бота.
// PUT /api/v1/bots/{id}/enabled
func (h *Handler) SetBotEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid bot id")
		return
	}

	var req SetEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	bot, err := h.store.GetBot(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "bot not found") {
		return
	}

	// Включение бота без графа бессмысленно: сессию не из чего создать.
	if req.Enabled && len(bot.Graph) == 0 {
		InvalidState(w, "bot has no graph")
		return
	}
	if req.Enabled {
		if _, err := flow.Parse(bot.Graph); err != nil {
			InvalidState(w, "invalid graph: "+err.Error())
			return
		}
	}

	bot.IsActive = req.Enabled
	bot.UpdatedAt = time.Now()

	if err := h.store.UpdateBot(r.Context(), bot); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if err := h.dispatcher.RefreshKeywords(r.Context()); err != nil {
		h.logger.Warn("keyword index refresh failed", "error", err)
	}

	Success(w, BotFromDomain(*bot))
}
