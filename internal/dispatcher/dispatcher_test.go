package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/ledger"
)

// greetGraph — линейный граф: start → message → конец
const greetGraph = `{
	"nodes": [
		{"id": "start", "type": "start"},
		{"id": "hello", "type": "message", "data": {"message": "Hello!"}}
	],
	"edges": [{"source": "start", "target": "hello"}]
}`

// askGraph — граф с quickReply: сессия остаётся активной до ответа
const askGraph = `{
	"nodes": [
		{"id": "start", "type": "start"},
		{"id": "ask", "type": "quickReply", "data": {"body": "Proceed?", "buttons": [{"id": "ok", "title": "OK"}]}},
		{"id": "done", "type": "message", "data": {"message": "Done"}}
	],
	"edges": [
		{"source": "start", "target": "ask"},
		{"source": "ask", "target": "done", "sourceHandle": "ok"}
	]
}`

func newTestDispatcher(t *testing.T, mem *ledger.Memory) *Dispatcher {
	t.Helper()
	eng := engine.New(engine.Config{Sessions: mem, Interactions: mem})
	return New(Config{Store: mem, Engine: eng})
}

func seedBot(t *testing.T, mem *ledger.Memory, graph string, keywords ...string) *domain.Bot {
	t.Helper()
	bot := &domain.Bot{
		ID:              uuid.New(),
		Name:            "test-bot",
		Channel:         "telegram",
		TriggerKeywords: keywords,
		IsActive:        true,
		Graph:           json.RawMessage(graph),
	}
	if err := mem.CreateBot(context.Background(), bot); err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	return bot
}

func TestHandleInbound_KeywordCreatesSession(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, greetGraph, "Start")
	if err := d.RefreshKeywords(context.Background()); err != nil {
		t.Fatalf("refresh keywords: %v", err)
	}

	// Регистр и пробелы ключевого слова не имеют значения
	res, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", Text: "  START ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Session.BotID != bot.ID {
		t.Errorf("session bound to wrong bot")
	}
	if res.Session.TriggerKeyword != "start" {
		t.Errorf("expected normalized keyword, got %q", res.Session.TriggerKeyword)
	}
	if res.Session.Status != domain.StatusCompleted {
		t.Errorf("linear graph should complete, got %s", res.Session.Status)
	}
	if len(res.Sends) != 1 || res.Sends[0].Text != "Hello!" {
		t.Errorf("unexpected sends: %+v", res.Sends)
	}
	if res.Sends[0].Channel != "telegram" {
		t.Errorf("send should inherit bot channel, got %q", res.Sends[0].Channel)
	}
}

func TestHandleInbound_NoMatch(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	seedBot(t, mem, greetGraph, "start")
	if err := d.RefreshKeywords(context.Background()); err != nil {
		t.Fatalf("refresh keywords: %v", err)
	}

	_, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", Text: "random chatter",
	})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestHandleInbound_ExplicitBotNoKeywordNoSession(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, greetGraph, "start")

	// Адаптер знает бота, но текст не совпадает и сессии нет
	_, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		BotID: bot.ID, UserID: "u1", Text: "random chatter",
	})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestHandleInbound_ConversationResume(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	seedBot(t, mem, askGraph, "start")
	if err := d.RefreshKeywords(context.Background()); err != nil {
		t.Fatalf("refresh keywords: %v", err)
	}

	res, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", ConversationID: "conv-1", Text: "start",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended {
		t.Fatal("session should be awaiting input")
	}
	if res.Session.ConversationID != "conv-1" {
		t.Fatalf("session should bind to the conversation, got %q", res.Session.ConversationID)
	}
	sessionID := res.Session.ID

	// Ответ приходит только с conversation id, без BotID
	res, err = d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", ConversationID: "conv-1", Text: "OK",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Session.ID != sessionID {
		t.Error("conversation reply should resume the existing session")
	}
	if res.Session.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", res.Session.Status)
	}

	// Неизвестный диалог с неключевым текстом — ErrNoMatch
	_, err = d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u2", ConversationID: "ghost", Text: "OK",
	})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestHandleInbound_InactiveBot(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, greetGraph, "start")
	bot.IsActive = false
	if err := mem.UpdateBot(context.Background(), bot); err != nil {
		t.Fatalf("update bot: %v", err)
	}
	if err := d.RefreshKeywords(context.Background()); err != nil {
		t.Fatalf("refresh keywords: %v", err)
	}

	// Неактивный бот не попадает в индекс — текст просто не совпадает
	_, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", Text: "start",
	})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch via index, got %v", err)
	}

	// Явный BotID от адаптера — ErrBotInactive
	_, err = d.HandleInbound(context.Background(), &domain.InboundEvent{
		BotID: bot.ID, UserID: "u1", Text: "start",
	})
	if !errors.Is(err, ErrBotInactive) {
		t.Errorf("expected ErrBotInactive, got %v", err)
	}
}

func TestHandleInbound_ResumeActiveSession(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, askGraph, "start")
	if err := d.RefreshKeywords(context.Background()); err != nil {
		t.Fatalf("refresh keywords: %v", err)
	}

	// Ключевое слово создаёт сессию, quickReply её приостанавливает
	res, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", Text: "start",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended {
		t.Fatal("session should be awaiting input")
	}
	sessionID := res.Session.ID

	// Ответ кнопкой: не ключевое слово, но активная сессия есть
	res, err = d.HandleInbound(context.Background(), &domain.InboundEvent{
		BotID: bot.ID, UserID: "u1", ButtonPayload: "ok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Session.ID != sessionID {
		t.Error("reply should resume the existing session, not create a new one")
	}
	if res.Session.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", res.Session.Status)
	}
}

func TestHandleInbound_SnapshotIsolation(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, askGraph, "start")
	if err := d.RefreshKeywords(context.Background()); err != nil {
		t.Fatalf("refresh keywords: %v", err)
	}

	res, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", Text: "start",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Правка живого графа бота не трогает идущую сессию
	bot.Graph = json.RawMessage(greetGraph)
	if err := mem.UpdateBot(context.Background(), bot); err != nil {
		t.Fatalf("update bot: %v", err)
	}

	res2, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		BotID: bot.ID, UserID: "u1", ButtonPayload: "ok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res2.Session.ID != res.Session.ID {
		t.Fatal("expected same session")
	}
	if len(res2.Sends) != 1 || res2.Sends[0].Text != "Done" {
		t.Errorf("session should run its graph snapshot, got %+v", res2.Sends)
	}
}

func TestHandleInbound_DuplicateDelivery(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, askGraph, "start")
	if err := d.RefreshKeywords(context.Background()); err != nil {
		t.Fatalf("refresh keywords: %v", err)
	}

	res, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		UserID: "u1", Text: "start",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessionID := res.Session.ID

	// Один и тот же ответ доставлен дважды почти одновременно
	event := &domain.InboundEvent{BotID: bot.ID, UserID: "u1", ButtonPayload: "ok"}
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Второй экземпляр застанет сессию уже закрытой: ErrNoMatch
			if _, err := d.HandleInbound(context.Background(), event); err != nil && !errors.Is(err, ErrNoMatch) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Узел done выполнен ровно один раз
	ins, _ := mem.SessionInteractions(context.Background(), sessionID)
	doneCount := 0
	for _, in := range ins {
		if in.NodeID == "done" {
			doneCount++
		}
	}
	if doneCount != 1 {
		t.Errorf("duplicate delivery must not double-advance: done executed %d times", doneCount)
	}
}

func TestHandleInbound_CorrelationResume(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)

	// Сессия, ожидающая ответ webhook, подготовлена напрямую
	sess := &domain.Session{
		ID:             uuid.New(),
		BotID:          uuid.New(),
		UserID:         "u1",
		Status:         domain.StatusActive,
		CurrentNodeID:  "hello",
		CorrelationID:  "corr-42",
		Graph:          json.RawMessage(greetGraph),
		StartedAt:      time.Now(),
		LastActivityAt: time.Now(),
	}
	if err := mem.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	res, err := d.HandleInbound(context.Background(), &domain.InboundEvent{
		CorrelationID: "corr-42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Session.ID != sess.ID {
		t.Error("correlated event should resume the waiting session")
	}
	if res.Session.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", res.Session.Status)
	}

	// Неизвестный correlation id — ErrNoMatch
	_, err = d.HandleInbound(context.Background(), &domain.InboundEvent{CorrelationID: "ghost"})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestStartSession(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, askGraph, "start")

	res, err := d.StartSession(context.Background(), bot.ID, "u1", map[string]string{"name": "Alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Session.Var("name") != "Alice" {
		t.Error("initial variables should be passed to the session")
	}
	if !res.Suspended {
		t.Error("ask graph should suspend on quick reply")
	}

	// Вторая явная сессия той же пары — конфликт
	_, err = d.StartSession(context.Background(), bot.ID, "u1", nil)
	if !errors.Is(err, ledger.ErrDuplicateActiveSession) {
		t.Errorf("expected ErrDuplicateActiveSession, got %v", err)
	}

	// Несуществующий бот
	_, err = d.StartSession(context.Background(), uuid.New(), "u1", nil)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStartSession_InvalidGraph(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, `{"nodes": [], "edges": []}`)

	_, err := d.StartSession(context.Background(), bot.ID, "u1", nil)
	if !errors.Is(err, ErrInvalidGraph) {
		t.Errorf("expected ErrInvalidGraph, got %v", err)
	}
}

func TestStopSession(t *testing.T) {
	mem := ledger.NewMemory()
	d := newTestDispatcher(t, mem)
	bot := seedBot(t, mem, askGraph, "start")

	res, err := d.StartSession(context.Background(), bot.ID, "u1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sessionID := res.Session.ID

	sess, err := d.StopSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusDropped {
		t.Errorf("expected dropped, got %s", sess.Status)
	}

	// Последняя запись журнала помечена точкой обрыва
	ins, _ := mem.SessionInteractions(context.Background(), sessionID)
	if len(ins) == 0 || !ins[len(ins)-1].IsDropOff {
		t.Error("forced stop should mark the last interaction as drop-off")
	}

	// Повторный stop — идемпотентный no-op
	sess, err = d.StopSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusDropped {
		t.Errorf("second stop should keep dropped, got %s", sess.Status)
	}
	if countMarked(ins) != countMarked(mustInteractions(t, mem, sessionID)) {
		t.Error("second stop must not mark more records")
	}
}

func mustInteractions(t *testing.T, mem *ledger.Memory, sessionID uuid.UUID) []domain.Interaction {
	t.Helper()
	ins, err := mem.SessionInteractions(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("session interactions: %v", err)
	}
	return ins
}

func countMarked(ins []domain.Interaction) int {
	n := 0
	for _, in := range ins {
		if in.IsDropOff {
			n++
		}
	}
	return n
}
