package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/analytics"
)

const defaultTopN = 10

// GetCompletionRate возвращает completion rate бота.
// GET /api/v1/bots/{id}/analytics/completion?from=&to=
func (h *Handler) GetCompletionRate(w http.ResponseWriter, r *http.Request) {
	botID, window, ok := h.parseAnalyticsQuery(w, r)
	if !ok {
		return
	}

	rate, err := h.analytics.CompletionRate(r.Context(), botID, window)
	if err != nil {
		h.handleAnalyticsError(w, err)
		return
	}

	Success(w, CompletionResponse{BotID: botID, CompletionRate: rate})
}

// GetDropOffPoints возвращает точки обрыва бота.
// GET /api/v1/bots/{id}/analytics/dropoffs?from=&to=&top=
func (h *Handler) GetDropOffPoints(w http.ResponseWriter, r *http.Request) {
	botID, window, ok := h.parseAnalyticsQuery(w, r)
	if !ok {
		return
	}

	topN := intQuery(r.URL.Query().Get("top"))
	if topN <= 0 {
		topN = defaultTopN
	}

	points, err := h.analytics.DropOffPoints(r.Context(), botID, window, topN)
	if err != nil {
		h.handleAnalyticsError(w, err)
		return
	}

	List(w, points, len(points))
}

// GetNodeEngagement возвращает трафик через узлы бота.
// GET /api/v1/bots/{id}/analytics/engagement?from=&to=
func (h *Handler) GetNodeEngagement(w http.ResponseWriter, r *http.Request) {
	botID, window, ok := h.parseAnalyticsQuery(w, r)
	if !ok {
		return
	}

	stats, err := h.analytics.NodeEngagement(r.Context(), botID, window)
	if err != nil {
		h.handleAnalyticsError(w, err)
		return
	}

	List(w, stats, len(stats))
}

// GetSessionsByDay возвращает сессии бота по дням.
// GET /api/v1/bots/{id}/analytics/daily?from=&to=
func (h *Handler) GetSessionsByDay(w http.ResponseWriter, r *http.Request) {
	botID, window, ok := h.parseAnalyticsQuery(w, r)
	if !ok {
		return
	}

	days, err := h.analytics.SessionsByDay(r.Context(), botID, window)
	if err != nil {
		h.handleAnalyticsError(w, err)
		return
	}

	List(w, days, len(days))
}

// parseAnalyticsQuery разбирает {id} и окно из запроса.
func (h *Handler) parseAnalyticsQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, analytics.Window, bool) {
	var window analytics.Window

	botID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid bot id")
		return uuid.Nil, window, false
	}

	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "invalid from (want RFC3339)")
			return uuid.Nil, window, false
		}
		window.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "invalid to (want RFC3339)")
			return uuid.Nil, window, false
		}
		window.To = t
	}

	return botID, window, true
}

func (h *Handler) handleAnalyticsError(w http.ResponseWriter, err error) {
	if errors.Is(err, analytics.ErrEmptyWindow) {
		BadRequest(w, err.Error())
		return
	}
	InternalError(w, h.logger, err)
}
