package flow

import "github.com/shaiso/Botflow/internal/domain"

// Graph — иммутабельный снимок графа диалога.
//
// Строится один раз при создании сессии (или при валидации в редакторе)
// и дальше только читается: O(1) поиск узла, O(deg) поиск исходящего
// ребра по (nodeID, handle). Граф направленный, но не обязан быть
// ацикличным — циклы легальны, бесконечное синхронное выполнение
// отсекает бюджет шагов движка.
type Graph struct {
	nodes    map[string]*domain.Node
	outgoing map[string][]domain.Edge
	startID  string
}

// Start возвращает узел start.
func (g *Graph) Start() *domain.Node {
	return g.nodes[g.startID]
}

// Node возвращает узел по ID или nil.
func (g *Graph) Node(id string) *domain.Node {
	return g.nodes[id]
}

// Outgoing возвращает исходящие рёбра узла.
func (g *Graph) Outgoing(nodeID string) []domain.Edge {
	return g.outgoing[nodeID]
}

// ResolveNext возвращает узел-приёмник единственного ребра узла
// с данным handle. ok=false — ребра для этой ветки нет
// (ветка завершается).
func (g *Graph) ResolveNext(nodeID, handle string) (target string, ok bool) {
	for _, e := range g.outgoing[nodeID] {
		if e.SourceHandle == handle {
			return e.Target, true
		}
	}
	return "", false
}

// Size возвращает количество узлов.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Build строит и валидирует граф из узлов и рёбер.
func Build(nodes []domain.Node, edges []domain.Edge) (*Graph, error) {
	g := &Graph{
		nodes:    make(map[string]*domain.Node, len(nodes)),
		outgoing: make(map[string][]domain.Edge),
	}

	for i := range nodes {
		n := &nodes[i]
		if _, exists := g.nodes[n.ID]; exists {
			return nil, NewValidationError(n.ID, "duplicate node ID", ErrDuplicateNodeID)
		}
		g.nodes[n.ID] = n
		if n.Type == domain.NodeStart {
			if g.startID != "" {
				return nil, NewValidationError(n.ID, "graph has multiple start nodes", ErrMultipleStart)
			}
			g.startID = n.ID
		}
	}

	for _, e := range edges {
		g.outgoing[e.Source] = append(g.outgoing[e.Source], e)
	}

	if err := validate(g, edges); err != nil {
		return nil, err
	}

	return g, nil
}
