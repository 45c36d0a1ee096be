package domain

// SessionStatus — статус сессии диалога.
//
// Жизненный цикл:
//
//	active → completed  (дошли до узла без исходящего ребра)
//	       → dropped    (таймаут, ошибка графа или внешнего вызова)
//	       → handed_off (выполнен узел handoff)
type SessionStatus string

const (
	// StatusActive — сессия выполняется или приостановлена.
	StatusActive SessionStatus = "active"

	// StatusCompleted — диалог дошёл до конца ветки.
	StatusCompleted SessionStatus = "completed"

	// StatusDropped — пользователь замолчал либо выполнение сорвалось.
	StatusDropped SessionStatus = "dropped"

	// StatusHandedOff — диалог передан живому оператору.
	StatusHandedOff SessionStatus = "handed_off"
)

// IsTerminal возвращает true, если статус финальный.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusDropped, StatusHandedOff:
		return true
	default:
		return false
	}
}
