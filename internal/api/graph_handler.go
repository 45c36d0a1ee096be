package api

import (
	"encoding/json"
	"net/http"

	"github.com/shaiso/Botflow/internal/flow"
)

// ValidateGraph проверяет граф без сохранения. Коллаборатор
// визуального редактора: тот же разбор и валидация, через которые
// граф пройдёт при создании сессии.
// POST /api/v1/graphs/validate
func (h *Handler) ValidateGraph(w http.ResponseWriter, r *http.Request) {
	var req ValidateGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.Graph) == 0 {
		BadRequest(w, "graph is required")
		return
	}

	g, err := flow.Parse(req.Graph)
	if err != nil {
		Success(w, ValidateGraphResponse{Valid: false, Error: err.Error()})
		return
	}

	Success(w, ValidateGraphResponse{Valid: true, Nodes: g.Size()})
}
