package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shaiso/Botflow/internal/dispatcher"
	"github.com/shaiso/Botflow/internal/domain"
)

// HandleEvent принимает входящее событие от адаптера канала.
// POST /api/v1/events
//
// Событие, не совпавшее ни с сессией, ни с ключевым словом, — не
// ошибка: адаптер шлёт весь трафик, платформе интересна только его
// часть. Ответ в этом случае matched=false.
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if event.UserID == "" && event.CorrelationID == "" {
		BadRequest(w, "user_id is required")
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	result, err := h.dispatcher.HandleInbound(r.Context(), &event)
	if err != nil {
		switch {
		case errors.Is(err, dispatcher.ErrNoMatch):
			Success(w, EventResponse{Matched: false})
		case errors.Is(err, dispatcher.ErrBotInactive):
			Success(w, EventResponse{Matched: false})
		case errors.Is(err, dispatcher.ErrInvalidGraph):
			InvalidState(w, err.Error())
		default:
			InternalError(w, h.logger, err)
		}
		return
	}

	resp := EventResponse{
		Matched:   true,
		Suspended: result.Suspended,
		Steps:     result.Steps,
	}
	if result.Session != nil {
		resp.SessionID = &result.Session.ID
		resp.Status = string(result.Session.Status)
	}
	Success(w, resp)
}
