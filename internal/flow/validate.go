package flow

import (
	"fmt"

	"github.com/shaiso/Botflow/internal/domain"
)

// maxQuickReplyButtons — лимит кнопок quickReply (ограничение каналов).
const maxQuickReplyButtons = 3

// validate выполняет полную валидацию построенного графа.
//
// Проверяет:
//   - ровно один узел start
//   - рёбра ссылаются на существующие узлы
//   - каждый не-start узел достижим (есть входящее ребро)
//   - не больше одного исходящего ребра на (узел, handle)
//   - корректность типизированных атрибутов узлов
func validate(g *Graph, edges []domain.Edge) error {
	if len(g.nodes) == 0 {
		return ErrEmptyGraph
	}

	if g.startID == "" {
		return ErrMissingStart
	}

	incoming := make(map[string]int, len(g.nodes))
	for _, e := range edges {
		if g.nodes[e.Source] == nil {
			return NewValidationError(e.Source,
				fmt.Sprintf("edge source %q does not exist", e.Source), ErrDanglingEdge)
		}
		if g.nodes[e.Target] == nil {
			return NewValidationError(e.Target,
				fmt.Sprintf("edge target %q does not exist", e.Target), ErrDanglingEdge)
		}
		incoming[e.Target]++
	}

	for id, n := range g.nodes {
		if n.Type != domain.NodeStart && incoming[id] == 0 {
			return NewValidationError(id, "node has no incoming edge", ErrOrphanNode)
		}

		if err := validateHandles(g, id); err != nil {
			return err
		}

		if err := validateData(n); err != nil {
			return err
		}
	}

	return nil
}

// validateHandles проверяет уникальность handle среди исходящих рёбер узла.
// Непокрытые handle легальны: такая ветка просто завершает сессию.
func validateHandles(g *Graph, nodeID string) error {
	seen := make(map[string]bool)
	for _, e := range g.outgoing[nodeID] {
		if seen[e.SourceHandle] {
			return NewValidationError(nodeID,
				fmt.Sprintf("more than one edge with handle %q", e.SourceHandle), ErrDuplicateHandle)
		}
		seen[e.SourceHandle] = true
	}
	return nil
}

// validateData проверяет типизированные атрибуты узла.
func validateData(n *domain.Node) error {
	switch data := n.Data.(type) {
	case *domain.ConditionData:
		if !data.Operator.Valid() {
			return NewValidationError(n.ID,
				fmt.Sprintf("unknown operator %q", data.Operator), ErrInvalidOperator)
		}

	case *domain.DelayData:
		if data.Duration <= 0 {
			return NewValidationError(n.ID, "delay duration must be positive", ErrInvalidDelay)
		}
		if !data.Unit.Valid() {
			return NewValidationError(n.ID,
				fmt.Sprintf("unknown delay unit %q", data.Unit), ErrInvalidDelay)
		}

	case *domain.QuickReplyData:
		if len(data.Buttons) == 0 {
			return NewValidationError(n.ID, "quick reply needs at least one button", ErrNoButtons)
		}
		if len(data.Buttons) > maxQuickReplyButtons {
			return NewValidationError(n.ID,
				fmt.Sprintf("quick reply has %d buttons, max %d", len(data.Buttons), maxQuickReplyButtons),
				ErrTooManyButtons)
		}

	case *domain.ABTestData:
		if len(data.Variants) == 0 {
			return NewValidationError(n.ID, "ab test needs at least one variant", ErrNoVariants)
		}
		var total float64
		for _, v := range data.Variants {
			if v.Percentage < 0 {
				return NewValidationError(n.ID,
					fmt.Sprintf("variant %q has negative weight", v.Name), ErrInvalidWeights)
			}
			total += v.Percentage
		}
		if total <= 0 {
			return NewValidationError(n.ID, "ab test weights sum to zero", ErrInvalidWeights)
		}
	}

	return nil
}
