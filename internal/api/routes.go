package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Events
	mux.Handle("POST /api/v1/events", chain(http.HandlerFunc(h.HandleEvent)))

	// Bots
	mux.Handle("GET /api/v1/bots", chain(http.HandlerFunc(h.ListBots)))
	mux.Handle("POST /api/v1/bots", chain(http.HandlerFunc(h.CreateBot)))
	mux.Handle("GET /api/v1/bots/{id}", chain(http.HandlerFunc(h.GetBot)))
	mux.Handle("PUT /api/v1/bots/{id}", chain(http.HandlerFunc(h.UpdateBot)))
	mux.Handle("PUT /api/v1/bots/{id}/enabled", chain(http.HandlerFunc(h.SetBotEnabled)))

	// Sessions
	mux.Handle("POST /api/v1/bots/{id}/sessions", chain(http.HandlerFunc(h.StartSession)))
	mux.Handle("GET /api/v1/sessions", chain(http.HandlerFunc(h.ListSessions)))
	mux.Handle("GET /api/v1/sessions/{id}", chain(http.HandlerFunc(h.GetSession)))
	mux.Handle("GET /api/v1/sessions/{id}/interactions", chain(http.HandlerFunc(h.ListSessionInteractions)))
	mux.Handle("POST /api/v1/sessions/{id}/stop", chain(http.HandlerFunc(h.StopSession)))

	// Analytics
	mux.Handle("GET /api/v1/bots/{id}/analytics/completion", chain(http.HandlerFunc(h.GetCompletionRate)))
	mux.Handle("GET /api/v1/bots/{id}/analytics/dropoffs", chain(http.HandlerFunc(h.GetDropOffPoints)))
	mux.Handle("GET /api/v1/bots/{id}/analytics/engagement", chain(http.HandlerFunc(h.GetNodeEngagement)))
	mux.Handle("GET /api/v1/bots/{id}/analytics/daily", chain(http.HandlerFunc(h.GetSessionsByDay)))

	// Graphs
	mux.Handle("POST /api/v1/graphs/validate", chain(http.HandlerFunc(h.ValidateGraph)))
}
