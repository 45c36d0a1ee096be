package analytics

import "errors"

// Ошибки аналитики.
var (
	// ErrEmptyWindow — окно запроса пустое или вывернутое (From после To).
	ErrEmptyWindow = errors.New("empty analytics window")
)
