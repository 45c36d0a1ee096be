package flow

import "errors"

// Ошибки структуры графа.
var (
	// ErrEmptyGraph — граф не содержит узлов.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrMissingStart — в графе нет узла start.
	ErrMissingStart = errors.New("graph has no start node")

	// ErrMultipleStart — в графе больше одного узла start.
	ErrMultipleStart = errors.New("graph has multiple start nodes")

	// ErrDuplicateNodeID — несколько узлов с одинаковым ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrDanglingEdge — ребро ссылается на несуществующий узел.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrOrphanNode — не-start узел без входящих рёбер.
	ErrOrphanNode = errors.New("node is unreachable")

	// ErrDuplicateHandle — у узла больше одного исходящего ребра
	// с одним и тем же handle.
	ErrDuplicateHandle = errors.New("duplicate source handle")

	// ErrUnknownNodeType — неизвестный тип узла.
	ErrUnknownNodeType = errors.New("unknown node type")
)

// Ошибки атрибутов узлов.
var (
	// ErrInvalidOperator — неизвестный оператор condition.
	ErrInvalidOperator = errors.New("invalid condition operator")

	// ErrInvalidDelay — некорректная длительность или единица delay.
	ErrInvalidDelay = errors.New("invalid delay")

	// ErrTooManyButtons — у quickReply больше трёх кнопок.
	ErrTooManyButtons = errors.New("quick reply has too many buttons")

	// ErrNoButtons — у quickReply нет кнопок.
	ErrNoButtons = errors.New("quick reply has no buttons")

	// ErrNoVariants — у abTest нет вариантов.
	ErrNoVariants = errors.New("ab test has no variants")

	// ErrInvalidWeights — веса abTest отрицательны или в сумме нулевые.
	ErrInvalidWeights = errors.New("ab test weights are invalid")
)

// ValidationError — ошибка валидации с привязкой к узлу.
type ValidationError struct {
	NodeID  string // узел, где произошла ошибка (пусто для ошибок уровня графа)
	Message string // описание
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(nodeID, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Message: message,
		Err:     err,
	}
}
