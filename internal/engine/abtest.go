package engine

import (
	"strconv"

	"github.com/shaiso/Botflow/internal/domain"
)

// abDrawPrefix — служебный ключ переменной с розыгрышем A/B теста.
//
// Розыгрыш делается один раз на (сессию, узел) и сохраняется в
// переменных сессии: пользователь, вернувшийся на узел по циклу,
// остаётся в своём варианте, пока розыгрыш явно не сброшен.
const abDrawPrefix = "_ab:"

// pickVariant выбирает вариант A/B теста по значению розыгрыша в [0,1).
//
// Веса нормализуются по их сумме — объявленные проценты не обязаны
// давать в сумме 100. Выбор — первый вариант, чья накопленная доля
// превышает розыгрыш.
func pickVariant(data *domain.ABTestData, draw float64) string {
	var total float64
	for _, v := range data.Variants {
		total += v.Percentage
	}
	if total <= 0 {
		// Валидатор графа такое не пропускает; на всякий случай —
		// первый вариант.
		return data.Variants[0].Name
	}

	var cum float64
	for _, v := range data.Variants {
		cum += v.Percentage / total
		if draw < cum {
			return v.Name
		}
	}
	// draw == 0.999..., хвост округления — последний вариант.
	return data.Variants[len(data.Variants)-1].Name
}

// sessionDraw возвращает розыгрыш сессии для узла, создавая и
// сохраняя его при первом посещении.
func (e *Engine) sessionDraw(sess *domain.Session, nodeID string) float64 {
	key := abDrawPrefix + nodeID
	if saved := sess.Var(key); saved != "" {
		if draw, err := strconv.ParseFloat(saved, 64); err == nil {
			return draw
		}
	}

	draw := e.rand()
	sess.SetVar(key, strconv.FormatFloat(draw, 'f', -1, 64))
	return draw
}
