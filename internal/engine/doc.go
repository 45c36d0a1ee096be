// Package engine реализует выполнение графа диалога.
//
// Структура пакета:
//   - engine.go — Engine и цикл Advance
//   - quickreply.go — обработка ответов на quickReply
//   - condition.go — вычисление условий ветвления
//   - abtest.go — розыгрыш и выбор варианта A/B теста
//   - template.go — подстановка переменных {{var}}
//   - errors.go — ошибки выполнения
//
// Движок синхронный и безголовый: он не держит состояния между
// вызовами и продвигает сессию ровно до следующей точки приостановки
// или финального статуса. Очереди, будильники и блокировки сессий —
// забота dispatcher и sweeper.
package engine
