// Package effects содержит исполнителей побочных эффектов узлов.
//
// Включает:
//   - http.go        — apiCall (HTTP вызов внешнего API)
//   - webhook.go     — webhookTrigger (исходящий webhook)
//   - email.go       — email (через HTTP шлюз почты)
//   - appointment.go — appointment (бронирование через календарный сервис)
//   - sender.go      — доставка сообщений в канал
//
// Эффекты изолированы от графа и переменных сессии: движок рендерит
// шаблоны сам и передаёт готовые параметры. Инфраструктурные ошибки
// возвращаются через error — политику retry/backoff ведёт движок.
package effects
