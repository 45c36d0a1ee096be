package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/flow"
)

// retryPrefix — служебный ключ переменной со счётчиком повторного
// показа quickReply. Наличие ключа означает, что повтор уже был.
const retryPrefix = "_retry:"

// consumeReply обрабатывает ответ пользователя на quickReply.
//
// Совпадение ищется сначала по id кнопки (точно), затем по заголовку
// (без учёта регистра). Несовпавший ответ даёт один повторный показ
// вопроса; второй несовпавший подряд — drop-off.
//
// done=true — advance завершён (нет события, повтор, drop или
// авторский тупик); done=false — ответ принят, основной цикл
// продолжает с нового currentNodeId.
func (e *Engine) consumeReply(ctx context.Context, sess *domain.Session, g *flow.Graph, event *domain.InboundEvent, res *Result, now time.Time) (done bool, err error) {
	if event == nil {
		// Пробуждение таймером или чужое событие — ждём дальше.
		res.Suspended = true
		return true, nil
	}

	node := g.Node(sess.CurrentNodeID)
	if node == nil {
		if err := e.drop(ctx, sess, now, true); err != nil {
			return true, err
		}
		return true, fmt.Errorf("%w: %q", ErrUnknownNode, sess.CurrentNodeID)
	}
	data, ok := node.Data.(*domain.QuickReplyData)
	if !ok {
		// Маркер ожидания без quickReply узла — повреждённое
		// состояние сессии.
		if err := e.drop(ctx, sess, now, true); err != nil {
			return true, err
		}
		return true, fmt.Errorf("%w: node %q is not awaiting input", ErrUnknownNode, node.ID)
	}

	reply := event.Reply()
	handle, matched := matchButton(data.Buttons, reply)
	retryKey := retryPrefix + node.ID

	if !matched {
		if sess.Var(retryKey) == "" {
			sess.SetVar(retryKey, "1")
			if err := e.visit(ctx, sess, node, reply, false, now); err != nil {
				return true, err
			}
			e.send(ctx, sess, Render(data.Body, sess.Variables), data.Buttons, res)
			res.Suspended = true
			return true, e.sessions.UpdateSession(ctx, sess)
		}
		// Повторный тот же ответ схлопывается идемпотентностью журнала
		// с записью первого промаха — точку обрыва ставим ретроактивно.
		if err := e.visit(ctx, sess, node, reply, false, now); err != nil {
			return true, err
		}
		return true, e.drop(ctx, sess, now, true)
	}

	if sess.Variables != nil {
		delete(sess.Variables, retryKey)
	}
	if err := e.visit(ctx, sess, node, reply, false, now); err != nil {
		return true, err
	}
	sess.AwaitingInput = false

	next, ok := g.ResolveNext(node.ID, handle)
	if !ok {
		return true, e.close(ctx, sess, domain.StatusCompleted, now)
	}
	sess.CurrentNodeID = next
	return false, nil
}

// matchButton сопоставляет ответ пользователя с кнопкой quickReply.
// Handle исходящего ребра кнопки — её id.
func matchButton(buttons []domain.Button, reply string) (handle string, ok bool) {
	for _, b := range buttons {
		if b.ID == reply {
			return b.ID, true
		}
	}
	trimmed := strings.TrimSpace(reply)
	for _, b := range buttons {
		if strings.EqualFold(b.Title, trimmed) {
			return b.ID, true
		}
	}
	return "", false
}
