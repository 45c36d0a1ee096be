package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

// Memory — хранилище в памяти.
//
// Используется в тестах движка и в локальном режиме без Postgres.
// Потокобезопасно; сессии копируются на входе и выходе, чтобы
// вызывающие не делили мутабельное состояние.
type Memory struct {
	mu           sync.RWMutex
	sessions     map[uuid.UUID]*domain.Session
	interactions []domain.Interaction
	seen         map[string]bool // ключи идемпотентности журнала
	bots         map[uuid.UUID]*domain.Bot
}

// NewMemory создаёт пустое хранилище в памяти.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]*domain.Session),
		seen:     make(map[string]bool),
		bots:     make(map[uuid.UUID]*domain.Bot),
	}
}

// --- SessionStore ---

// CreateSession создаёт сессию.
func (m *Memory) CreateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.BotID == s.BotID && existing.UserID == s.UserID &&
			existing.Status == domain.StatusActive {
			return ErrDuplicateActiveSession
		}
	}

	m.sessions[s.ID] = copySession(s)
	return nil
}

// GetSession возвращает сессию по ID.
func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(s), nil
}

// ActiveSession возвращает активную сессию пары (бот, пользователь).
func (m *Memory) ActiveSession(_ context.Context, botID uuid.UUID, userID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.BotID == botID && s.UserID == userID && s.Status == domain.StatusActive {
			return copySession(s), nil
		}
	}
	return nil, ErrNotFound
}

// UpdateSession сохраняет состояние сессии.
func (m *Memory) UpdateSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	m.sessions[s.ID] = copySession(s)
	return nil
}

// CloseSession переводит сессию в финальный статус.
// Уже закрытая сессия не меняется: closed=false, ошибки нет.
func (m *Memory) CloseSession(_ context.Context, id uuid.UUID, status domain.SessionStatus, endedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.Status.IsTerminal() {
		return false, nil
	}

	s.MarkClosed(status, endedAt)
	return true, nil
}

// ListSessions возвращает сессии по фильтру, отсортированные по StartedAt.
func (m *Memory) ListSessions(_ context.Context, f SessionFilter) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Session
	for _, s := range m.sessions {
		if !matchSession(s, f) {
			continue
		}
		result = append(result, *copySession(s))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(result) {
			return nil, nil
		}
		result = result[f.Offset:]
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func matchSession(s *domain.Session, f SessionFilter) bool {
	if f.BotID != uuid.Nil && s.BotID != f.BotID {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if !f.StartedFrom.IsZero() && s.StartedAt.Before(f.StartedFrom) {
		return false
	}
	if !f.StartedTo.IsZero() && !s.StartedAt.Before(f.StartedTo) {
		return false
	}
	if !f.IdleBefore.IsZero() && !s.LastActivityAt.Before(f.IdleBefore) {
		return false
	}
	if !f.WakeDueBefore.IsZero() && (s.WakeAt == nil || s.WakeAt.After(f.WakeDueBefore)) {
		return false
	}
	if f.CorrelationID != "" && s.CorrelationID != f.CorrelationID {
		return false
	}
	if f.ConversationID != "" && s.ConversationID != f.ConversationID {
		return false
	}
	return true
}

// --- InteractionStore ---

// AppendInteraction добавляет запись в журнал (идемпотентно).
func (m *Memory) AppendInteraction(_ context.Context, in *domain.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := IdempotencyKey(in)
	if m.seen[key] {
		return nil
	}
	m.seen[key] = true

	rec := *in
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	m.interactions = append(m.interactions, rec)
	return nil
}

// SessionInteractions возвращает записи сессии в порядке добавления.
func (m *Memory) SessionInteractions(_ context.Context, sessionID uuid.UUID) ([]domain.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Interaction
	for _, in := range m.interactions {
		if in.SessionID == sessionID {
			result = append(result, in)
		}
	}
	return result, nil
}

// BotInteractions возвращает записи всех сессий бота в окне времени.
func (m *Memory) BotInteractions(_ context.Context, botID uuid.UUID, from, to time.Time) ([]domain.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Interaction
	for _, in := range m.interactions {
		s, ok := m.sessions[in.SessionID]
		if !ok || s.BotID != botID {
			continue
		}
		if !from.IsZero() && in.InteractedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !in.InteractedAt.Before(to) {
			continue
		}
		result = append(result, in)
	}
	return result, nil
}

// MarkLastDropOff помечает последнюю запись сессии как drop-off.
func (m *Memory) MarkLastDropOff(_ context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.interactions) - 1; i >= 0; i-- {
		if m.interactions[i].SessionID == sessionID {
			m.interactions[i].IsDropOff = true
			return nil
		}
	}
	return nil
}

// --- BotStore ---

// CreateBot создаёт бота.
func (m *Memory) CreateBot(_ context.Context, b *domain.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bots[b.ID] = copyBot(b)
	return nil
}

// GetBot возвращает бота по ID.
func (m *Memory) GetBot(_ context.Context, id uuid.UUID) (*domain.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bots[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBot(b), nil
}

// UpdateBot сохраняет бота.
func (m *Memory) UpdateBot(_ context.Context, b *domain.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bots[b.ID]; !ok {
		return ErrNotFound
	}
	m.bots[b.ID] = copyBot(b)
	return nil
}

// ListBots возвращает ботов, отсортированных по имени.
func (m *Memory) ListBots(_ context.Context, activeOnly bool) ([]domain.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.Bot
	for _, b := range m.bots {
		if activeOnly && !b.IsActive {
			continue
		}
		result = append(result, *copyBot(b))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// --- копирование ---

func copySession(s *domain.Session) *domain.Session {
	c := *s
	if s.Variables != nil {
		c.Variables = make(map[string]string, len(s.Variables))
		for k, v := range s.Variables {
			c.Variables[k] = v
		}
	}
	if s.WakeAt != nil {
		wake := *s.WakeAt
		c.WakeAt = &wake
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		c.EndedAt = &ended
	}
	if s.Graph != nil {
		c.Graph = append([]byte(nil), s.Graph...)
	}
	return &c
}

func copyBot(b *domain.Bot) *domain.Bot {
	c := *b
	if b.TriggerKeywords != nil {
		c.TriggerKeywords = append([]string(nil), b.TriggerKeywords...)
	}
	if b.Graph != nil {
		c.Graph = append([]byte(nil), b.Graph...)
	}
	return &c
}
