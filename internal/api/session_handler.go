package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/ledger"
)

// StartSession явно запускает сессию бота для пользователя.
// POST /api/v1/bots/{id}/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	botID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid bot id")
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		BadRequest(w, "user_id is required")
		return
	}

	result, err := h.dispatcher.StartSession(r.Context(), botID, req.UserID, req.Variables)
	if HandleStoreError(w, h.logger, err, "bot not found") {
		return
	}

	Created(w, SessionFromDomain(*result.Session))
}

// ListSessions возвращает сессии по фильтру.
// GET /api/v1/sessions?bot_id=&status=&from=&to=&limit=&offset=
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseSessionFilter(w, r)
	if !ok {
		return
	}

	sessions, err := h.store.ListSessions(r.Context(), filter)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		result[i] = SessionFromDomain(s)
	}

	List(w, result, len(result))
}

// GetSession возвращает сессию по ID.
// GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	sess, err := h.store.GetSession(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "session not found") {
		return
	}

	Success(w, SessionFromDomain(*sess))
}

// ListSessionInteractions возвращает журнал сессии.
// GET /api/v1/sessions/{id}/interactions
func (h *Handler) ListSessionInteractions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	// Проверяем, что сессия существует
	if _, err := h.store.GetSession(r.Context(), id); HandleStoreError(w, h.logger, err, "session not found") {
		return
	}

	ins, err := h.store.SessionInteractions(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]InteractionResponse, len(ins))
	for i, in := range ins {
		result[i] = InteractionFromDomain(in)
	}

	List(w, result, len(result))
}

// StopSession принудительно закрывает сессию.
// POST /api/v1/sessions/{id}/stop
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	sess, err := h.dispatcher.StopSession(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "session not found") {
		return
	}

	Success(w, SessionFromDomain(*sess))
}

// parseSessionFilter разбирает query-параметры фильтра сессий.
func parseSessionFilter(w http.ResponseWriter, r *http.Request) (ledger.SessionFilter, bool) {
	var filter ledger.SessionFilter
	q := r.URL.Query()

	if raw := q.Get("bot_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			BadRequest(w, "invalid bot_id")
			return filter, false
		}
		filter.BotID = id
	}
	if raw := q.Get("status"); raw != "" {
		filter.Status = domain.SessionStatus(raw)
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "invalid from (want RFC3339)")
			return filter, false
		}
		filter.StartedFrom = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "invalid to (want RFC3339)")
			return filter, false
		}
		filter.StartedTo = t
	}
	filter.Limit = intQuery(q.Get("limit"))
	filter.Offset = intQuery(q.Get("offset"))
	return filter, true
}

func intQuery(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
