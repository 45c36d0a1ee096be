package dispatcher

import "errors"

// Ошибки диспетчера.
var (
	// ErrNoMatch — событие не совпало ни с одной активной сессией
	// и ни с одним trigger keyword.
	ErrNoMatch = errors.New("no session or keyword match for event")

	// ErrBotInactive — явный старт сессии выключенного бота.
	ErrBotInactive = errors.New("bot is inactive")

	// ErrInvalidGraph — граф бота не прошёл разбор или валидацию.
	ErrInvalidGraph = errors.New("invalid bot graph")
)
