// Package ledger содержит хранилище сессий и журнала interactions.
//
// Включает:
//   - ledger.go — интерфейсы хранилищ и ключ идемпотентности журнала
//   - memory.go — реализация в памяти (тесты, локальный режим)
//   - session_repo.go, interaction_repo.go, bot_repo.go — Postgres (pgx)
//
// Журнал interactions append-only и толерантен к at-least-once доставке
// входящих событий: дубликаты поглощаются по ключу идемпотентности.
// Все агрегаты аналитики выводимы из журнала и таблицы сессий заново
// в любой момент.
package ledger
