package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/effects"
	"github.com/shaiso/Botflow/internal/flow"
	"github.com/shaiso/Botflow/internal/ledger"
)

// --- фикстуры ---

func start() domain.Node {
	return domain.Node{ID: "start", Type: domain.NodeStart, Data: &domain.StartData{}}
}

func msg(id, text string) domain.Node {
	return domain.Node{ID: id, Type: domain.NodeMessage, Label: id, Data: &domain.MessageData{Message: text}}
}

func edge(source, target, handle string) domain.Edge {
	return domain.Edge{Source: source, Target: target, SourceHandle: handle}
}

func mustBuild(t *testing.T, nodes []domain.Node, edges []domain.Edge) *flow.Graph {
	t.Helper()
	g, err := flow.Build(nodes, edges)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func newSession(t *testing.T, mem *ledger.Memory, at time.Time) *domain.Session {
	t.Helper()
	sess := &domain.Session{
		ID:             uuid.New(),
		BotID:          uuid.New(),
		UserID:         "user-1",
		Channel:        "telegram",
		Status:         domain.StatusActive,
		CurrentNodeID:  "start",
		StartedAt:      at,
		LastActivityAt: at,
	}
	if err := mem.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func countDropOffs(t *testing.T, mem *ledger.Memory, sessionID uuid.UUID) int {
	t.Helper()
	ins, err := mem.SessionInteractions(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("session interactions: %v", err)
	}
	n := 0
	for _, in := range ins {
		if in.IsDropOff {
			n++
		}
	}
	return n
}

func TestAdvance_MessageQuickReplyFlow(t *testing.T) {
	// start → message "Hi" → quickReply [Yes, No]
	//   yes → message "Great!" (тупик — completed)
	//   no  → handoff
	nodes := []domain.Node{
		start(),
		msg("hi", "Hi"),
		{ID: "ask", Type: domain.NodeQuickReply, Data: &domain.QuickReplyData{
			Body: "Continue?",
			Buttons: []domain.Button{
				{ID: "yes", Title: "Yes"},
				{ID: "no", Title: "No"},
			},
		}},
		msg("great", "Great!"),
		{ID: "human", Type: domain.NodeHandoff, Data: &domain.HandoffData{Message: "Transferring you"}},
	}
	edges := []domain.Edge{
		edge("start", "hi", ""),
		edge("hi", "ask", ""),
		edge("ask", "great", "yes"),
		edge("ask", "human", "no"),
	}
	g := mustBuild(t, nodes, edges)

	t.Run("case-insensitive title match completes", func(t *testing.T) {
		mem := ledger.NewMemory()
		e := New(Config{Sessions: mem, Interactions: mem})
		sess := newSession(t, mem, time.Now())

		res, err := e.Advance(context.Background(), sess, g, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Suspended || !sess.AwaitingInput {
			t.Fatal("session should be awaiting quick reply input")
		}
		if len(res.Sends) != 2 {
			t.Fatalf("expected 2 sends (Hi, Continue?), got %d", len(res.Sends))
		}
		if res.Sends[0].Text != "Hi" || res.Sends[1].Text != "Continue?" {
			t.Errorf("unexpected sends: %+v", res.Sends)
		}
		if len(res.Sends[1].Buttons) != 2 {
			t.Errorf("quick reply send should carry buttons, got %+v", res.Sends[1].Buttons)
		}

		// Ответ заголовком кнопки, другой регистр и пробелы
		res, err = e.Advance(context.Background(), sess, g, &domain.InboundEvent{
			UserID: "user-1", Text: "  YES ",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.Status != domain.StatusCompleted {
			t.Errorf("expected completed, got %s", sess.Status)
		}
		if len(res.Sends) != 1 || res.Sends[0].Text != "Great!" {
			t.Errorf("expected Great! send, got %+v", res.Sends)
		}
		if countDropOffs(t, mem, sess.ID) != 0 {
			t.Error("completed session should have no drop-off records")
		}
	})

	t.Run("button payload leads to handoff", func(t *testing.T) {
		mem := ledger.NewMemory()
		e := New(Config{Sessions: mem, Interactions: mem})
		sess := newSession(t, mem, time.Now())

		if _, err := e.Advance(context.Background(), sess, g, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		res, err := e.Advance(context.Background(), sess, g, &domain.InboundEvent{
			UserID: "user-1", ButtonPayload: "no",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sess.Status != domain.StatusHandedOff {
			t.Errorf("expected handed_off, got %s", sess.Status)
		}
		if len(res.Sends) != 1 || res.Sends[0].Text != "Transferring you" {
			t.Errorf("expected farewell send, got %+v", res.Sends)
		}
	})
}

func TestAdvance_ConditionMissingEdgeCompletes(t *testing.T) {
	// У condition подключена только ветка true: непокрытая ветка —
	// авторский конец диалога, не обрыв
	nodes := []domain.Node{
		start(),
		{ID: "check", Type: domain.NodeCondition, Data: &domain.ConditionData{
			Variable: "age", Operator: domain.OpGreaterThan, Value: "18",
		}},
		msg("adult", "Welcome"),
	}
	edges := []domain.Edge{
		edge("start", "check", ""),
		edge("check", "adult", domain.HandleTrue),
	}
	g := mustBuild(t, nodes, edges)

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem})
	sess := newSession(t, mem, time.Now())
	sess.SetVar("age", "15")

	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", sess.Status)
	}
	if len(res.Sends) != 0 {
		t.Errorf("expected no sends, got %+v", res.Sends)
	}

	ins, _ := mem.SessionInteractions(context.Background(), sess.ID)
	if len(ins) != 2 {
		t.Errorf("expected 2 interactions (start, condition), got %d", len(ins))
	}
	if countDropOffs(t, mem, sess.ID) != 0 {
		t.Error("authored dead-end should not be a drop-off")
	}
}

func TestAdvance_DelaySuspendAndWake(t *testing.T) {
	nodes := []domain.Node{
		start(),
		{ID: "wait", Type: domain.NodeDelay, Data: &domain.DelayData{Duration: 10, Unit: domain.UnitMinutes}},
		msg("later", "Still there?"),
	}
	edges := []domain.Edge{
		edge("start", "wait", ""),
		edge("wait", "later", ""),
	}
	g := mustBuild(t, nodes, edges)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cur := base
	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem, Now: func() time.Time { return cur }})
	sess := newSession(t, mem, base)

	// Первый шаг: delay записывает время пробуждения и приостанавливает
	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended || res.WakeAt == nil {
		t.Fatal("expected suspension with wake time")
	}
	wantWake := base.Add(10 * time.Minute)
	if !res.WakeAt.Equal(wantWake) {
		t.Errorf("expected wake at %v, got %v", wantWake, res.WakeAt)
	}
	if sess.CurrentNodeID != "later" {
		t.Errorf("delay should pre-advance current node, got %q", sess.CurrentNodeID)
	}

	// Пробуждение до срока — no-op
	cur = base.Add(5 * time.Minute)
	res, err = e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended || res.Steps != 0 {
		t.Errorf("early wake should be a no-op, got steps=%d suspended=%v", res.Steps, res.Suspended)
	}
	if sess.Status != domain.StatusActive {
		t.Errorf("session should stay active, got %s", sess.Status)
	}

	// Пробуждение после срока — выполнение продолжается
	cur = base.Add(11 * time.Minute)
	res, err = e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusCompleted {
		t.Errorf("expected completed after wake, got %s", sess.Status)
	}
	if len(res.Sends) != 1 || res.Sends[0].Text != "Still there?" {
		t.Errorf("expected delayed message, got %+v", res.Sends)
	}
	if sess.WakeAt != nil {
		t.Error("wake marker should be cleared")
	}
}

func TestAdvance_CycleExhaustsBudget(t *testing.T) {
	// Цикл из синхронных узлов без приостановки: бюджет шагов
	// отсекает выполнение, сессия закрывается как dropped
	nodes := []domain.Node{
		start(),
		msg("a", "ping"),
		msg("b", "pong"),
	}
	edges := []domain.Edge{
		edge("start", "a", ""),
		edge("a", "b", ""),
		edge("b", "a", ""),
	}
	g := mustBuild(t, nodes, edges)

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem, Budget: 10})
	sess := newSession(t, mem, time.Now())

	res, err := e.Advance(context.Background(), sess, g, nil)
	if !errors.Is(err, ErrExecutionBudget) {
		t.Fatalf("expected ErrExecutionBudget, got %v", err)
	}
	if res.Steps != 10 {
		t.Errorf("expected 10 steps, got %d", res.Steps)
	}
	if sess.Status != domain.StatusDropped {
		t.Errorf("expected dropped, got %s", sess.Status)
	}
	if countDropOffs(t, mem, sess.ID) != 1 {
		t.Errorf("expected exactly one drop-off record, got %d", countDropOffs(t, mem, sess.ID))
	}
}

func TestAdvance_UnknownNodeDrops(t *testing.T) {
	g := mustBuild(t, []domain.Node{start()}, nil)

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem})
	sess := newSession(t, mem, time.Now())
	sess.CurrentNodeID = "ghost"

	_, err := e.Advance(context.Background(), sess, g, nil)
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("expected ErrUnknownNode, got %v", err)
	}
	if sess.Status != domain.StatusDropped {
		t.Errorf("expected dropped, got %s", sess.Status)
	}
}

func TestAdvance_TerminalNoOp(t *testing.T) {
	g := mustBuild(t, []domain.Node{start(), msg("a", "x")}, []domain.Edge{edge("start", "a", "")})

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem})
	sess := newSession(t, mem, time.Now())
	sess.Status = domain.StatusCompleted

	res, err := e.Advance(context.Background(), sess, g, &domain.InboundEvent{UserID: "user-1", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Steps != 0 || len(res.Sends) != 0 {
		t.Errorf("advance of closed session should be a no-op, got %+v", res)
	}
}

func TestAdvance_QuickReplyRepromptThenDrop(t *testing.T) {
	nodes := []domain.Node{
		start(),
		{ID: "ask", Type: domain.NodeQuickReply, Data: &domain.QuickReplyData{
			Body:    "Pick one",
			Buttons: []domain.Button{{ID: "a", Title: "Option A"}},
		}},
		msg("done", "ok"),
	}
	edges := []domain.Edge{
		edge("start", "ask", ""),
		edge("ask", "done", "a"),
	}
	g := mustBuild(t, nodes, edges)

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem})
	sess := newSession(t, mem, time.Now())

	if _, err := e.Advance(context.Background(), sess, g, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первый промах — повторный показ вопроса
	res, err := e.Advance(context.Background(), sess, g, &domain.InboundEvent{UserID: "user-1", Text: "banana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended || sess.Status != domain.StatusActive {
		t.Fatal("first miss should re-prompt, not close")
	}
	if len(res.Sends) != 1 || res.Sends[0].Text != "Pick one" {
		t.Errorf("expected re-prompt send, got %+v", res.Sends)
	}

	// Второй промах подряд — обрыв
	_, err = e.Advance(context.Background(), sess, g, &domain.InboundEvent{UserID: "user-1", Text: "banana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusDropped {
		t.Errorf("expected dropped after second miss, got %s", sess.Status)
	}
	if countDropOffs(t, mem, sess.ID) != 1 {
		t.Errorf("expected exactly one drop-off record, got %d", countDropOffs(t, mem, sess.ID))
	}
}

func TestAdvance_QuickReplyRecoverAfterMiss(t *testing.T) {
	nodes := []domain.Node{
		start(),
		{ID: "ask", Type: domain.NodeQuickReply, Data: &domain.QuickReplyData{
			Body:    "Pick one",
			Buttons: []domain.Button{{ID: "a", Title: "Option A"}},
		}},
		msg("done", "ok"),
	}
	edges := []domain.Edge{
		edge("start", "ask", ""),
		edge("ask", "done", "a"),
	}
	g := mustBuild(t, nodes, edges)

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem})
	sess := newSession(t, mem, time.Now())

	if _, err := e.Advance(context.Background(), sess, g, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.Advance(context.Background(), sess, g, &domain.InboundEvent{UserID: "user-1", Text: "nope"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Совпавший ответ после промаха сбрасывает счётчик повтора
	_, err := e.Advance(context.Background(), sess, g, &domain.InboundEvent{UserID: "user-1", Text: "option a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", sess.Status)
	}
	if sess.Var("_retry:ask") != "" {
		t.Error("retry counter should be cleared after a match")
	}
}

func TestAdvance_APICallSaveAs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"temp": 21}`))
	}))
	defer srv.Close()

	nodes := []domain.Node{
		start(),
		{ID: "api", Type: domain.NodeAPICall, Data: &domain.APICallData{
			URL: srv.URL + "/weather?city={{city}}", SaveAs: "weather",
		}},
		msg("show", "Weather: {{weather}}"),
	}
	edges := []domain.Edge{
		edge("start", "api", ""),
		edge("api", "show", ""),
	}
	g := mustBuild(t, nodes, edges)

	reg := effects.NewRegistry()
	reg.Register(effects.NewAPICallEffect(srv.Client()))

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem, Effects: reg})
	sess := newSession(t, mem, time.Now())
	sess.SetVar("city", "Berlin")

	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Var("weather") != `{"temp": 21}` {
		t.Errorf("saveAs variable not set, got %q", sess.Var("weather"))
	}
	if len(res.Sends) != 1 || res.Sends[0].Text != `Weather: {"temp": 21}` {
		t.Errorf("unexpected send: %+v", res.Sends)
	}
	if sess.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", sess.Status)
	}
}

func TestAdvance_EffectRetryThenFallback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	nodes := []domain.Node{
		start(),
		{ID: "api", Type: domain.NodeAPICall, Data: &domain.APICallData{URL: srv.URL}},
		msg("sorry", "Something went wrong, try later"),
	}
	edges := []domain.Edge{
		edge("start", "api", ""),
		edge("api", "sorry", domain.HandleFallback),
	}
	g := mustBuild(t, nodes, edges)

	reg := effects.NewRegistry()
	reg.Register(effects.NewAPICallEffect(srv.Client()))

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem, Effects: reg, Backoff: time.Millisecond})
	sess := newSession(t, mem, time.Now())

	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Первая попытка + две дополнительные
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if sess.Status != domain.StatusCompleted {
		t.Errorf("fallback branch should complete, got %s", sess.Status)
	}
	if len(res.Sends) != 1 || res.Sends[0].Text != "Something went wrong, try later" {
		t.Errorf("expected fallback message, got %+v", res.Sends)
	}

	// Журнал содержит маркер ошибки, не drop-off
	ins, _ := mem.SessionInteractions(context.Background(), sess.ID)
	var marker string
	for _, in := range ins {
		if in.NodeID == "api" {
			marker = in.UserResponse
		}
	}
	if !strings.HasPrefix(marker, "error: ") {
		t.Errorf("expected error marker on api interaction, got %q", marker)
	}
	if countDropOffs(t, mem, sess.ID) != 0 {
		t.Error("fallback path should not record drop-off")
	}
}

func TestAdvance_EffectRetryExhaustedDrops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	nodes := []domain.Node{
		start(),
		{ID: "api", Type: domain.NodeAPICall, Data: &domain.APICallData{URL: srv.URL}},
	}
	edges := []domain.Edge{edge("start", "api", "")}
	g := mustBuild(t, nodes, edges)

	reg := effects.NewRegistry()
	reg.Register(effects.NewAPICallEffect(srv.Client()))

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem, Effects: reg, Backoff: time.Millisecond})
	sess := newSession(t, mem, time.Now())

	_, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusDropped {
		t.Errorf("expected dropped without fallback edge, got %s", sess.Status)
	}
	if countDropOffs(t, mem, sess.ID) != 1 {
		t.Errorf("expected one drop-off record, got %d", countDropOffs(t, mem, sess.ID))
	}
}

func TestAdvance_WebhookWaitForResponse(t *testing.T) {
	var gotCorrelation atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCorrelation.Store(r.Header.Get(effects.CorrelationHeader))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	nodes := []domain.Node{
		start(),
		{ID: "hook", Type: domain.NodeWebhook, Data: &domain.WebhookData{
			WebhookURL: srv.URL, WaitForResponse: true,
		}},
		msg("after", "External system replied"),
	}
	edges := []domain.Edge{
		edge("start", "hook", ""),
		edge("hook", "after", ""),
	}
	g := mustBuild(t, nodes, edges)

	reg := effects.NewRegistry()
	reg.Register(effects.NewWebhookEffect(srv.Client()))

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem, Effects: reg})
	sess := newSession(t, mem, time.Now())

	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended {
		t.Fatal("waitForResponse should suspend the session")
	}
	if sess.CorrelationID == "" {
		t.Fatal("correlation id should be recorded on the session")
	}
	if got, _ := gotCorrelation.Load().(string); got != sess.CorrelationID {
		t.Errorf("webhook should carry correlation id %q, got %q", sess.CorrelationID, got)
	}
	if sess.CurrentNodeID != "after" {
		t.Errorf("webhook wait should pre-advance current node, got %q", sess.CurrentNodeID)
	}
	if sess.WakeAt == nil {
		t.Fatal("webhook wait should record a response deadline")
	}

	// Событие с чужим correlation id не будит сессию
	res, err = e.Advance(context.Background(), sess, g, &domain.InboundEvent{CorrelationID: "other"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended || sess.Status != domain.StatusActive {
		t.Error("mismatched correlation id should keep the session waiting")
	}

	// Совпавший — продолжает выполнение
	res, err = e.Advance(context.Background(), sess, g, &domain.InboundEvent{CorrelationID: sess.CorrelationID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusCompleted {
		t.Errorf("expected completed, got %s", sess.Status)
	}
	if len(res.Sends) != 1 || res.Sends[0].Text != "External system replied" {
		t.Errorf("unexpected sends: %+v", res.Sends)
	}
	if sess.CorrelationID != "" {
		t.Error("correlation marker should be cleared")
	}
	if sess.WakeAt != nil {
		t.Error("response deadline should be cleared")
	}
}

func TestAdvance_WebhookWaitTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	nodes := []domain.Node{
		start(),
		{ID: "hook", Type: domain.NodeWebhook, Data: &domain.WebhookData{
			WebhookURL: srv.URL, WaitForResponse: true,
		}},
		msg("after", "External system replied"),
	}
	edges := []domain.Edge{
		edge("start", "hook", ""),
		edge("hook", "after", ""),
	}
	g := mustBuild(t, nodes, edges)

	reg := effects.NewRegistry()
	reg.Register(effects.NewWebhookEffect(srv.Client()))

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cur := base
	mem := ledger.NewMemory()
	e := New(Config{
		Sessions:     mem,
		Interactions: mem,
		Effects:      reg,
		WebhookWait:  30 * time.Minute,
		Now:          func() time.Time { return cur },
	})
	sess := newSession(t, mem, base)

	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended || res.WakeAt == nil {
		t.Fatal("expected suspension with response deadline")
	}
	wantDeadline := base.Add(30 * time.Minute)
	if !res.WakeAt.Equal(wantDeadline) {
		t.Errorf("expected deadline %v, got %v", wantDeadline, res.WakeAt)
	}

	// До дедлайна сессия продолжает ждать
	cur = base.Add(10 * time.Minute)
	res, err = e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Suspended || sess.Status != domain.StatusActive {
		t.Error("session should keep waiting before the deadline")
	}

	// Дедлайн прошёл без ответа — обрыв
	cur = base.Add(31 * time.Minute)
	_, err = e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != domain.StatusDropped {
		t.Errorf("expected dropped after deadline, got %s", sess.Status)
	}
	if got := countDropOffs(t, mem, sess.ID); got != 1 {
		t.Errorf("expected exactly 1 drop-off record, got %d", got)
	}
}

func TestAdvance_ABTestRoute(t *testing.T) {
	nodes := []domain.Node{
		start(),
		{ID: "ab", Type: domain.NodeABTest, Data: &domain.ABTestData{Variants: []domain.Variant{
			{Name: "control", Percentage: 50},
			{Name: "treatment", Percentage: 50},
		}}},
		msg("control-msg", "A"),
		msg("treatment-msg", "B"),
	}
	edges := []domain.Edge{
		edge("start", "ab", ""),
		edge("ab", "control-msg", "control"),
		edge("ab", "treatment-msg", "treatment"),
	}
	g := mustBuild(t, nodes, edges)

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem, Rand: func() float64 { return 0.7 }})
	sess := newSession(t, mem, time.Now())

	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Sends) != 1 || res.Sends[0].Text != "B" {
		t.Errorf("draw 0.7 should route to treatment, got %+v", res.Sends)
	}
	if sess.Var("_ab:ab") == "" {
		t.Error("draw should be persisted on the session")
	}
}

func TestAdvance_SendsCarryChannel(t *testing.T) {
	g := mustBuild(t, []domain.Node{start(), msg("a", "hello")}, []domain.Edge{edge("start", "a", "")})

	mem := ledger.NewMemory()
	e := New(Config{Sessions: mem, Interactions: mem})
	sess := newSession(t, mem, time.Now())

	res, err := e.Advance(context.Background(), sess, g, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Sends) != 1 {
		t.Fatalf("expected 1 send, got %d", len(res.Sends))
	}
	send := res.Sends[0]
	if send.Channel != "telegram" || send.UserID != "user-1" || send.SessionID != sess.ID {
		t.Errorf("send should carry session addressing, got %+v", send)
	}
}
