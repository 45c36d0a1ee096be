package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

func activeSession(botID uuid.UUID, userID string, startedAt time.Time) *domain.Session {
	return &domain.Session{
		ID:             uuid.New(),
		BotID:          botID,
		UserID:         userID,
		Status:         domain.StatusActive,
		CurrentNodeID:  "start",
		StartedAt:      startedAt,
		LastActivityAt: startedAt,
	}
}

func TestMemory_DuplicateActiveSession(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	botID := uuid.New()
	now := time.Now()

	if err := mem.CreateSession(ctx, activeSession(botID, "u1", now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Вторая активная сессия той же пары — конфликт
	err := mem.CreateSession(ctx, activeSession(botID, "u1", now))
	if !errors.Is(err, ErrDuplicateActiveSession) {
		t.Errorf("expected ErrDuplicateActiveSession, got %v", err)
	}

	// Другой пользователь — не конфликт
	if err := mem.CreateSession(ctx, activeSession(botID, "u2", now)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMemory_CloseSessionOneWay(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	sess := activeSession(uuid.New(), "u1", time.Now())
	if err := mem.CreateSession(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	endedAt := time.Now()
	closed, err := mem.CloseSession(ctx, sess.ID, domain.StatusCompleted, endedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !closed {
		t.Fatal("first close should report closed=true")
	}

	// Повторное закрытие — no-op, статус не меняется
	closed, err = mem.CloseSession(ctx, sess.ID, domain.StatusDropped, endedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed {
		t.Error("second close should be a no-op")
	}

	got, _ := mem.GetSession(ctx, sess.ID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("status should stay completed, got %s", got.Status)
	}
	if got.EndedAt == nil {
		t.Error("ended_at should be set")
	}

	// После закрытия пара может начать новую сессию
	if err := mem.CreateSession(ctx, activeSession(sess.BotID, sess.UserID, time.Now())); err != nil {
		t.Errorf("closed session should not block a new one: %v", err)
	}
}

func TestMemory_CloseSessionNotFound(t *testing.T) {
	mem := NewMemory()
	_, err := mem.CloseSession(context.Background(), uuid.New(), domain.StatusDropped, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_AppendInteraction_Idempotent(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	sessionID := uuid.New()
	at := time.Date(2026, 8, 1, 12, 0, 10, 0, time.UTC)

	in := &domain.Interaction{
		SessionID:    sessionID,
		NodeID:       "ask",
		NodeType:     domain.NodeQuickReply,
		UserResponse: "yes",
		InteractedAt: at,
	}
	if err := mem.AppendInteraction(ctx, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Дубликат в том же минутном бакете поглощается
	dup := *in
	dup.InteractedAt = at.Add(20 * time.Second)
	if err := mem.AppendInteraction(ctx, &dup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ins, _ := mem.SessionInteractions(ctx, sessionID)
	if len(ins) != 1 {
		t.Fatalf("duplicate should be absorbed, got %d records", len(ins))
	}

	// Другой ответ того же узла — отдельная запись
	// (показ вопроса и ответ на него сосуществуют)
	other := *in
	other.UserResponse = ""
	if err := mem.AppendInteraction(ctx, &other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Следующий минутный бакет — отдельная запись
	later := *in
	later.InteractedAt = at.Add(time.Minute)
	if err := mem.AppendInteraction(ctx, &later); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ins, _ = mem.SessionInteractions(ctx, sessionID)
	if len(ins) != 3 {
		t.Errorf("expected 3 records, got %d", len(ins))
	}

	// Каждой записи назначен ID
	for _, rec := range ins {
		if rec.ID == uuid.Nil {
			t.Error("interaction should get an ID on append")
		}
	}
}

func TestMemory_MarkLastDropOff(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	sessionID := uuid.New()
	base := time.Now()

	for i, nodeID := range []string{"start", "greet", "ask"} {
		err := mem.AppendInteraction(ctx, &domain.Interaction{
			SessionID:    sessionID,
			NodeID:       nodeID,
			NodeType:     domain.NodeMessage,
			InteractedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := mem.MarkLastDropOff(ctx, sessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ins, _ := mem.SessionInteractions(ctx, sessionID)
	if !ins[2].IsDropOff {
		t.Error("last record should be marked as drop-off")
	}
	if ins[0].IsDropOff || ins[1].IsDropOff {
		t.Error("earlier records must not be marked")
	}

	// Сессия без записей — no-op
	if err := mem.MarkLastDropOff(ctx, uuid.New()); err != nil {
		t.Errorf("mark on empty session should be a no-op: %v", err)
	}
}

func TestMemory_ListSessions_Filters(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	botID := uuid.New()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Три сессии бота в разные дни, одна чужая
	s1 := activeSession(botID, "u1", base)
	s2 := activeSession(botID, "u2", base.Add(24*time.Hour))
	s3 := activeSession(botID, "u3", base.Add(48*time.Hour))
	other := activeSession(uuid.New(), "u1", base)

	for _, s := range []*domain.Session{s1, s2, s3, other} {
		if err := mem.CreateSession(ctx, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := mem.CloseSession(ctx, s2.ID, domain.StatusCompleted, base.Add(25*time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// По боту
	got, err := mem.ListSessions(ctx, SessionFilter{BotID: botID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 sessions for bot, got %d", len(got))
	}

	// Сортировка по StartedAt
	if got[0].ID != s1.ID || got[2].ID != s3.ID {
		t.Error("sessions should be sorted by started_at")
	}

	// По статусу
	got, _ = mem.ListSessions(ctx, SessionFilter{BotID: botID, Status: domain.StatusActive})
	if len(got) != 2 {
		t.Errorf("expected 2 active sessions, got %d", len(got))
	}

	// Окно по StartedAt: [from, to)
	got, _ = mem.ListSessions(ctx, SessionFilter{
		BotID:       botID,
		StartedFrom: base.Add(12 * time.Hour),
		StartedTo:   base.Add(48 * time.Hour),
	})
	if len(got) != 1 || got[0].ID != s2.ID {
		t.Errorf("expected only s2 in window, got %d", len(got))
	}

	// Пагинация
	got, _ = mem.ListSessions(ctx, SessionFilter{BotID: botID, Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].ID != s2.ID {
		t.Errorf("expected s2 with limit/offset, got %d", len(got))
	}
}

func TestMemory_ListSessions_WakeAndIdle(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	botID := uuid.New()
	now := time.Now()

	sleeping := activeSession(botID, "u1", now.Add(-time.Hour))
	wake := now.Add(-time.Minute)
	sleeping.WakeAt = &wake

	future := activeSession(botID, "u2", now.Add(-time.Hour))
	futureWake := now.Add(time.Hour)
	future.WakeAt = &futureWake

	idle := activeSession(botID, "u3", now.Add(-48*time.Hour))

	for _, s := range []*domain.Session{sleeping, future, idle} {
		if err := mem.CreateSession(ctx, s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Сессии с наступившим пробуждением
	got, _ := mem.ListSessions(ctx, SessionFilter{WakeDueBefore: now})
	if len(got) != 1 || got[0].ID != sleeping.ID {
		t.Errorf("expected only due session, got %d", len(got))
	}

	// Молчащие дольше суток
	got, _ = mem.ListSessions(ctx, SessionFilter{IdleBefore: now.Add(-24 * time.Hour)})
	if len(got) != 1 || got[0].ID != idle.ID {
		t.Errorf("expected only idle session, got %d", len(got))
	}
}

func TestMemory_ListSessions_CorrelationID(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	waiting := activeSession(uuid.New(), "u1", time.Now())
	waiting.CorrelationID = "corr-1"
	if err := mem.CreateSession(ctx, waiting); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mem.CreateSession(ctx, activeSession(uuid.New(), "u2", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := mem.ListSessions(ctx, SessionFilter{CorrelationID: "corr-1"})
	if len(got) != 1 || got[0].ID != waiting.ID {
		t.Errorf("expected waiting session, got %d", len(got))
	}
}

func TestMemory_ListSessions_ConversationID(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	bound := activeSession(uuid.New(), "u1", time.Now())
	bound.ConversationID = "conv-1"
	if err := mem.CreateSession(ctx, bound); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mem.CreateSession(ctx, activeSession(uuid.New(), "u2", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := mem.ListSessions(ctx, SessionFilter{ConversationID: "conv-1"})
	if len(got) != 1 || got[0].ID != bound.ID {
		t.Errorf("expected conversation-bound session, got %d", len(got))
	}

	got, _ = mem.ListSessions(ctx, SessionFilter{ConversationID: "ghost"})
	if len(got) != 0 {
		t.Errorf("unknown conversation should match nothing, got %d", len(got))
	}
}

func TestMemory_SessionsAreCopied(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	sess := activeSession(uuid.New(), "u1", time.Now())
	sess.Variables = map[string]string{"k": "v"}
	if err := mem.CreateSession(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Мутация возвращённой копии не протекает в хранилище
	got, _ := mem.GetSession(ctx, sess.ID)
	got.Variables["k"] = "mutated"
	got.CurrentNodeID = "elsewhere"

	fresh, _ := mem.GetSession(ctx, sess.ID)
	if fresh.Variables["k"] != "v" || fresh.CurrentNodeID != "start" {
		t.Error("store must not share mutable state with callers")
	}
}

func TestMemory_Bots(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	active := &domain.Bot{ID: uuid.New(), Name: "alpha", IsActive: true}
	inactive := &domain.Bot{ID: uuid.New(), Name: "beta"}
	for _, b := range []*domain.Bot{active, inactive} {
		if err := mem.CreateBot(ctx, b); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	bots, _ := mem.ListBots(ctx, true)
	if len(bots) != 1 || bots[0].ID != active.ID {
		t.Errorf("expected only active bot, got %d", len(bots))
	}

	bots, _ = mem.ListBots(ctx, false)
	if len(bots) != 2 {
		t.Errorf("expected 2 bots, got %d", len(bots))
	}
	if bots[0].Name != "alpha" || bots[1].Name != "beta" {
		t.Error("bots should be sorted by name")
	}

	_, err := mem.GetBot(ctx, uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
