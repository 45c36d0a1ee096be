package flow

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Botflow/internal/domain"
)

// rawNode — узел до типизации атрибутов.
type rawNode struct {
	ID    string          `json:"id"`
	Type  domain.NodeType `json:"type"`
	Label string          `json:"label,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// rawGraph — структура {nodes, edges}, которую отдаёт редактор.
type rawGraph struct {
	Nodes []rawNode     `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// Parse декодирует граф из JSON редактора, типизирует атрибуты узлов
// по полю type и валидирует результат.
func Parse(raw []byte) (*Graph, error) {
	var rg rawGraph
	if err := json.Unmarshal(raw, &rg); err != nil {
		return nil, fmt.Errorf("decode graph: %w", err)
	}

	nodes := make([]domain.Node, 0, len(rg.Nodes))
	for _, rn := range rg.Nodes {
		data, err := decodeNodeData(rn.Type, rn.Data)
		if err != nil {
			return nil, NewValidationError(rn.ID, err.Error(), err)
		}
		nodes = append(nodes, domain.Node{
			ID:    rn.ID,
			Type:  rn.Type,
			Label: rn.Label,
			Data:  data,
		})
	}

	return Build(nodes, rg.Edges)
}

// decodeNodeData декодирует атрибуты узла в конкретный тип.
// Отсутствующие атрибуты трактуются как пустые — дефолты узлов
// применяет движок в момент выполнения.
func decodeNodeData(t domain.NodeType, raw json.RawMessage) (domain.NodeData, error) {
	var data domain.NodeData

	switch t {
	case domain.NodeStart:
		data = &domain.StartData{}
	case domain.NodeMessage:
		data = &domain.MessageData{}
	case domain.NodeQuickReply:
		data = &domain.QuickReplyData{}
	case domain.NodeCondition:
		data = &domain.ConditionData{}
	case domain.NodeAPICall:
		data = &domain.APICallData{}
	case domain.NodeDelay:
		data = &domain.DelayData{}
	case domain.NodeABTest:
		data = &domain.ABTestData{}
	case domain.NodeHandoff:
		data = &domain.HandoffData{}
	case domain.NodeAppointment:
		data = &domain.AppointmentData{}
	case domain.NodeWebhook:
		data = &domain.WebhookData{}
	case domain.NodeEmail:
		data = &domain.EmailData{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", t, err)
		}
	}

	return data, nil
}
