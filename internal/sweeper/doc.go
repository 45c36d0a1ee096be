// Package sweeper реализует фоновый обход сессий.
//
// Структура:
//   - sweeper.go — Tick: пробуждение due сессий, закрытие заснувших
//   - cron.go    — валидация каденса и вычисление следующего тика
//
// Использование:
//
//	sw := sweeper.New(sweeper.Config{
//	    Store:      store,
//	    Dispatcher: disp,
//	    Logger:     logger,
//	})
//
//	// Вызывается по каденсу (обычно раз в минуту)
//	if err := sw.Tick(ctx); err != nil {
//	    logger.Error("sweeper tick failed", "error", err)
//	}
//
// Sweeper не реализует leader election самостоятельно — при
// нескольких экземплярах Tick() вызывает только лидер.
package sweeper
