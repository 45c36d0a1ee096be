// Package analytics считает метрики диалогов по журналу.
//
// Структура пакета:
//   - aggregator.go — Aggregator и агрегаты (completion rate,
//     точки обрыва, трафик узлов, сессии по дням)
//   - errors.go — ошибки
//
// Пакет только читает хранилище и не пишет ничего: все метрики
// выводимы из журнала заново в любой момент.
package analytics
