package ledger

import "errors"

// Ошибки хранилища.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateActiveSession — для пары (бот, пользователь)
	// уже есть активная сессия. Вызывающий должен возобновлять её,
	// а не создавать новую.
	ErrDuplicateActiveSession = errors.New("active session already exists")

	// ErrInvalidState — операция недопустима в текущем статусе.
	ErrInvalidState = errors.New("invalid state")
)
