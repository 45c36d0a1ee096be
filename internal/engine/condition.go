package engine

import (
	"strconv"
	"strings"

	"github.com/shaiso/Botflow/internal/domain"
)

// EvalCondition вычисляет условие узла condition против переменных сессии.
//
// Семантика операторов:
//   - equals / not_equals — регистрозависимое сравнение строк
//   - contains            — вхождение подстроки
//   - greater_than / less_than — оба операнда парсятся как числа;
//     если хотя бы один не парсится, результат false (строки и числа
//     между собой не упорядочиваются)
//
// Отсутствующая переменная — пустая строка. Некорректный операнд —
// не ошибка, а false: лучше предсказуемо пройти по ветке false,
// чем уронить диалог на глазах у пользователя.
func EvalCondition(data *domain.ConditionData, vars map[string]string) bool {
	left := ""
	if vars != nil {
		left = vars[data.Variable]
	}
	right := data.Value

	switch data.Operator {
	case domain.OpEquals:
		return left == right
	case domain.OpNotEquals:
		return left != right
	case domain.OpContains:
		return strings.Contains(left, right)
	case domain.OpGreaterThan:
		l, r, ok := parseOperands(left, right)
		return ok && l > r
	case domain.OpLessThan:
		l, r, ok := parseOperands(left, right)
		return ok && l < r
	default:
		return false
	}
}

// parseOperands парсит оба операнда как числа.
func parseOperands(left, right string) (l, r float64, ok bool) {
	l, errL := strconv.ParseFloat(strings.TrimSpace(left), 64)
	r, errR := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if errL != nil || errR != nil {
		return 0, 0, false
	}
	return l, r, true
}
