// Package dispatcher маршрутизирует входящие события в сессии.
//
// Структура пакета:
//   - dispatcher.go — Dispatcher: resume-or-create, явный старт,
//     остановка, пробуждение по таймеру
//   - keywords.go — индекс trigger keyword-ов
//   - locks.go — сериализация advance по паре (бот, пользователь)
//   - errors.go — ошибки
package dispatcher
