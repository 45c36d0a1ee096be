package engine

import "errors"

// Ошибки выполнения.
var (
	// ErrUnknownNode — currentNodeId сессии отсутствует в снимке графа
	// (устаревший снимок). Фатально: сессия закрывается как dropped.
	ErrUnknownNode = errors.New("unknown node in graph snapshot")

	// ErrExecutionBudget — превышен лимит синхронных шагов за один
	// advance. Цикл в графе без приостанавливающего узла — баг автора
	// графа; сессия закрывается как dropped.
	ErrExecutionBudget = errors.New("execution budget exceeded")

	// ErrEffectExhausted — внешний вызов упал после всех попыток
	// и у узла нет fallback ветки.
	ErrEffectExhausted = errors.New("effect retries exhausted")
)
