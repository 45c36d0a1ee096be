// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (хранилище, dispatcher, analytics, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects (request/response)
//   - event_handler.go     — приём входящих событий каналов
//   - bot_handler.go       — обработчики для /bots
//   - session_handler.go   — обработчики для /sessions
//   - analytics_handler.go — метрики ботов
//   - graph_handler.go     — валидация графов для редактора
//
// API предоставляет REST endpoints для ботов, сессий, аналитики
// и приёма событий от адаптеров каналов.
package api
