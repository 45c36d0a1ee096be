package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/ledger"
)

// Window — временное окно запроса. Нулевые границы означают
// отсутствие ограничения с соответствующей стороны.
type Window struct {
	From time.Time
	To   time.Time
}

// Validate проверяет окно.
func (w Window) Validate() error {
	if !w.From.IsZero() && !w.To.IsZero() && !w.From.Before(w.To) {
		return ErrEmptyWindow
	}
	return nil
}

// NodeStat — количество записей журнала, сгруппированных по узлу.
type NodeStat struct {
	NodeID    string          `json:"node_id"`
	NodeLabel string          `json:"node_label"`
	NodeType  domain.NodeType `json:"node_type"`
	Count     int             `json:"count"`
}

// DayStat — сессии одного календарного дня (UTC).
type DayStat struct {
	Day       string `json:"day"` // YYYY-MM-DD
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Dropped   int    `json:"dropped"`
}

// Aggregator считает метрики бота по журналу сессий и interactions.
//
// Все агрегаты — чистые функции над хранилищем: ни один не является
// единственным источником истины и любой можно пересчитать заново.
type Aggregator struct {
	sessions     ledger.SessionStore
	interactions ledger.InteractionStore
}

// New создаёт новый Aggregator.
func New(sessions ledger.SessionStore, interactions ledger.InteractionStore) *Aggregator {
	return &Aggregator{sessions: sessions, interactions: interactions}
}

// CompletionRate возвращает долю завершённых сессий бота в окне,
// в процентах. Нет сессий — 0, а не деление на ноль.
func (a *Aggregator) CompletionRate(ctx context.Context, botID uuid.UUID, w Window) (float64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}

	sessions, err := a.windowSessions(ctx, botID, w)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	completed := 0
	for _, s := range sessions {
		if s.Status == domain.StatusCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(sessions)) * 100, nil
}

// DropOffPoints возвращает узлы, на которых диалоги обрываются,
// отсортированные по количеству обрывов. topN <= 0 — без ограничения.
func (a *Aggregator) DropOffPoints(ctx context.Context, botID uuid.UUID, w Window, topN int) ([]NodeStat, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	ins, err := a.interactions.BotInteractions(ctx, botID, w.From, w.To)
	if err != nil {
		return nil, err
	}

	stats := groupByNode(ins, true)
	if topN > 0 && len(stats) > topN {
		stats = stats[:topN]
	}
	return stats, nil
}

// NodeEngagement возвращает трафик через каждый узел: все записи
// журнала, сгруппированные по узлу, независимо от исхода.
func (a *Aggregator) NodeEngagement(ctx context.Context, botID uuid.UUID, w Window) ([]NodeStat, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	ins, err := a.interactions.BotInteractions(ctx, botID, w.From, w.To)
	if err != nil {
		return nil, err
	}
	return groupByNode(ins, false), nil
}

// SessionsByDay раскладывает сессии окна по календарным дням (UTC)
// с количеством всего / завершённых / оборванных за день.
func (a *Aggregator) SessionsByDay(ctx context.Context, botID uuid.UUID, w Window) ([]DayStat, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	sessions, err := a.windowSessions(ctx, botID, w)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*DayStat)
	for _, s := range sessions {
		day := s.StartedAt.UTC().Format("2006-01-02")
		st, ok := buckets[day]
		if !ok {
			st = &DayStat{Day: day}
			buckets[day] = st
		}
		st.Total++
		switch s.Status {
		case domain.StatusCompleted:
			st.Completed++
		case domain.StatusDropped:
			st.Dropped++
		}
	}

	days := make([]DayStat, 0, len(buckets))
	for _, st := range buckets {
		days = append(days, *st)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })
	return days, nil
}

// windowSessions возвращает сессии бота, начатые в окне.
func (a *Aggregator) windowSessions(ctx context.Context, botID uuid.UUID, w Window) ([]domain.Session, error) {
	return a.sessions.ListSessions(ctx, ledger.SessionFilter{
		BotID:       botID,
		StartedFrom: w.From,
		StartedTo:   w.To,
	})
}

// groupByNode группирует записи журнала по узлу.
// dropOffOnly — учитывать только точки обрыва.
func groupByNode(ins []domain.Interaction, dropOffOnly bool) []NodeStat {
	byNode := make(map[string]*NodeStat)
	for _, in := range ins {
		if dropOffOnly && !in.IsDropOff {
			continue
		}
		st, ok := byNode[in.NodeID]
		if !ok {
			st = &NodeStat{
				NodeID:    in.NodeID,
				NodeLabel: in.NodeLabel,
				NodeType:  in.NodeType,
			}
			byNode[in.NodeID] = st
		}
		st.Count++
	}

	stats := make([]NodeStat, 0, len(byNode))
	for _, st := range byNode {
		stats = append(stats, *st)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].NodeID < stats[j].NodeID
	})
	return stats
}
