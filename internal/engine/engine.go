package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/effects"
	"github.com/shaiso/Botflow/internal/flow"
	"github.com/shaiso/Botflow/internal/ledger"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultBudget      = 50
	defaultRetries     = 2
	defaultBackoff     = 500 * time.Millisecond
	defaultCallTimeout = 10 * time.Second
	defaultWebhookWait = time.Hour
)

// Engine продвигает сессию по графу диалога.
//
// Один вызов Advance обрабатывает один логический шаг: синхронные
// узлы (message, condition, apiCall, email, ...) выполняются цепочкой
// в пределах бюджета шагов, приостанавливающие (quickReply, delay,
// webhookTrigger с ожиданием) записывают маркер возобновления в сессию
// и возвращают управление. Движок не держит горутин между вызовами —
// спящие сессии будит sweeper, ответы пользователя приносит dispatcher.
//
// Engine не сериализует доступ к сессии: одновременный advance одной
// сессии исключает вызывающий (per-session lock в dispatcher).
type Engine struct {
	sessions     ledger.SessionStore
	interactions ledger.InteractionStore
	sender       effects.Sender
	effects      *effects.Registry

	budget      int
	retries     int
	backoff     time.Duration
	callTimeout time.Duration
	webhookWait time.Duration

	rand   func() float64
	now    func() time.Time
	logger *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Sessions / Interactions — хранилища журнала.
	Sessions     ledger.SessionStore
	Interactions ledger.InteractionStore

	// Sender — доставка сообщений в канал (nil — только Result.Sends).
	Sender effects.Sender

	// Effects — реестр эффектов узлов (nil — пустой реестр).
	Effects *effects.Registry

	// Budget — лимит синхронных шагов за один advance (default: 50).
	Budget int

	// Retries — дополнительные попытки внешнего вызова (default: 2).
	Retries int

	// Backoff — начальная задержка retry, удваивается (default: 500ms).
	Backoff time.Duration

	// CallTimeout — таймаут одного внешнего вызова (default: 10s).
	CallTimeout time.Duration

	// WebhookWait — дедлайн ожидания ответа webhookTrigger (default: 1h).
	// Сессия без ответа к дедлайну закрывается как dropped.
	WebhookWait time.Duration

	// Rand — источник розыгрышей A/B тестов (default: math/rand/v2).
	Rand func() float64

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	budget := cfg.Budget
	if budget <= 0 {
		budget = defaultBudget
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = defaultRetries
	} else if retries < 0 {
		retries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	webhookWait := cfg.WebhookWait
	if webhookWait <= 0 {
		webhookWait = defaultWebhookWait
	}
	registry := cfg.Effects
	if registry == nil {
		registry = effects.NewRegistry()
	}
	randFn := cfg.Rand
	if randFn == nil {
		randFn = rand.Float64
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		sessions:     cfg.Sessions,
		interactions: cfg.Interactions,
		sender:       cfg.Sender,
		effects:      registry,
		budget:       budget,
		retries:      retries,
		backoff:      backoff,
		callTimeout:  callTimeout,
		webhookWait:  webhookWait,
		rand:         randFn,
		now:          nowFn,
		logger:       logger,
	}
}

// Result — итог одного advance.
type Result struct {
	// Session — сессия после шага (то же значение, что и на входе).
	Session *domain.Session

	// Sends — сообщения, отправленные в канал за этот advance.
	Sends []domain.OutboundSend

	// Steps — количество выполненных узлов.
	Steps int

	// Suspended — сессия ждёт внешнего события.
	Suspended bool

	// WakeAt — время пробуждения, если сессия спит по delay.
	WakeAt *time.Time
}

// Advance продвигает сессию по снимку графа.
//
// event — входящее событие, если advance вызван им (ответ пользователя,
// ответ webhook); nil для первого запуска и пробуждений по таймеру.
// Advance закрытой сессии — идемпотентный no-op.
func (e *Engine) Advance(ctx context.Context, sess *domain.Session, g *flow.Graph, event *domain.InboundEvent) (*Result, error) {
	started := time.Now()
	defer func() {
		telemetry.AdvanceDuration.Observe(time.Since(started).Seconds())
	}()

	res := &Result{Session: sess}

	if sess.Status.IsTerminal() {
		return res, nil
	}

	now := e.now()

	// Сессия, ожидающая ответ webhook, принимает событие с совпадающим
	// correlation id. WakeAt здесь — дедлайн ожидания: молчание дольше
	// него — обрыв.
	if sess.CorrelationID != "" {
		switch {
		case event != nil && event.CorrelationID == sess.CorrelationID:
			sess.CorrelationID = ""
			sess.WakeAt = nil
			event = nil
		case sess.WakeAt != nil && !now.Before(*sess.WakeAt):
			return res, e.drop(ctx, sess, now, true)
		default:
			res.Suspended = true
			res.WakeAt = sess.WakeAt
			return res, nil
		}
	}

	// Сессия, спящая по delay, просыпается только по времени.
	if sess.WakeAt != nil {
		if now.Before(*sess.WakeAt) {
			res.Suspended = true
			res.WakeAt = sess.WakeAt
			return res, nil
		}
		sess.WakeAt = nil
	}

	// Ответ на quickReply потребляется до основного цикла.
	if sess.AwaitingInput {
		done, err := e.consumeReply(ctx, sess, g, event, res, now)
		if done || err != nil {
			return res, err
		}
	}

	for {
		if res.Steps >= e.budget {
			if err := e.drop(ctx, sess, now, true); err != nil {
				return res, err
			}
			return res, fmt.Errorf("%w: %d steps", ErrExecutionBudget, res.Steps)
		}

		node := g.Node(sess.CurrentNodeID)
		if node == nil {
			if err := e.drop(ctx, sess, now, true); err != nil {
				return res, err
			}
			return res, fmt.Errorf("%w: %q", ErrUnknownNode, sess.CurrentNodeID)
		}
		res.Steps++

		cont, err := e.executeNode(ctx, sess, g, node, res, now)
		if err != nil || !cont {
			return res, err
		}
	}
}

// executeNode выполняет один узел. cont=false — advance завершён
// (сессия закрыта или приостановлена).
func (e *Engine) executeNode(ctx context.Context, sess *domain.Session, g *flow.Graph, node *domain.Node, res *Result, now time.Time) (cont bool, err error) {
	switch data := node.Data.(type) {
	case *domain.StartData:
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return e.moveNext(ctx, sess, g, node, domain.HandleDefault, now, res)

	case *domain.MessageData:
		e.send(ctx, sess, Render(data.Message, sess.Variables), nil, res)
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return e.moveNext(ctx, sess, g, node, domain.HandleDefault, now, res)

	case *domain.QuickReplyData:
		e.send(ctx, sess, Render(data.Body, sess.Variables), data.Buttons, res)
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		sess.AwaitingInput = true
		res.Suspended = true
		return false, e.sessions.UpdateSession(ctx, sess)

	case *domain.ConditionData:
		handle := domain.HandleFalse
		if EvalCondition(data, sess.Variables) {
			handle = domain.HandleTrue
		}
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return e.moveNext(ctx, sess, g, node, handle, now, res)

	case *domain.ABTestData:
		variant := pickVariant(data, e.sessionDraw(sess, node.ID))
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return e.moveNext(ctx, sess, g, node, variant, now, res)

	case *domain.DelayData:
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		next, ok := g.ResolveNext(node.ID, domain.HandleDefault)
		if !ok {
			return false, e.close(ctx, sess, domain.StatusCompleted, now)
		}
		wake := now.Add(delayDuration(data))
		sess.CurrentNodeID = next
		sess.WakeAt = &wake
		res.Suspended = true
		res.WakeAt = &wake
		return false, e.sessions.UpdateSession(ctx, sess)

	case *domain.APICallData:
		params := map[string]string{
			effects.ParamMethod: data.Method,
			effects.ParamURL:    Render(data.URL, sess.Variables),
		}
		resp, effErr := e.runEffect(ctx, sess, node, params)
		if effErr != nil {
			return e.failBranch(ctx, sess, g, node, effErr, now)
		}
		if data.SaveAs != "" {
			sess.SetVar(data.SaveAs, resp.Values[effects.ValueBody])
		}
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return e.moveNext(ctx, sess, g, node, domain.HandleDefault, now, res)

	case *domain.AppointmentData:
		params := map[string]string{
			effects.ParamCalendarType: data.CalendarType,
			effects.ParamDuration:     fmt.Sprintf("%d", data.Duration),
			effects.ParamBuffer:       fmt.Sprintf("%d", data.Buffer),
			effects.ParamUserID:       sess.UserID,
		}
		resp, effErr := e.runEffect(ctx, sess, node, params)
		if effErr != nil {
			return e.failBranch(ctx, sess, g, node, effErr, now)
		}
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return e.moveNext(ctx, sess, g, node, resp.Handle, now, res)

	case *domain.WebhookData:
		params := map[string]string{
			effects.ParamMethod: data.Method,
			effects.ParamURL:    Render(data.WebhookURL, sess.Variables),
		}
		corr := ""
		if data.WaitForResponse {
			corr = uuid.NewString()
			params[effects.ParamCorrelationID] = corr
		}
		if _, effErr := e.runEffect(ctx, sess, node, params); effErr != nil {
			return e.failBranch(ctx, sess, g, node, effErr, now)
		}
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		if !data.WaitForResponse {
			return e.moveNext(ctx, sess, g, node, domain.HandleDefault, now, res)
		}
		next, ok := g.ResolveNext(node.ID, domain.HandleDefault)
		if !ok {
			return false, e.close(ctx, sess, domain.StatusCompleted, now)
		}
		deadline := now.Add(e.webhookWait)
		sess.CurrentNodeID = next
		sess.CorrelationID = corr
		sess.WakeAt = &deadline
		res.Suspended = true
		res.WakeAt = &deadline
		return false, e.sessions.UpdateSession(ctx, sess)

	case *domain.EmailData:
		params := map[string]string{
			effects.ParamTo:        Render(data.To, sess.Variables),
			effects.ParamSubject:   Render(data.Subject, sess.Variables),
			effects.ParamEmailBody: Render(data.Body, sess.Variables),
			effects.ParamTemplate:  data.Template,
		}
		if _, effErr := e.runEffect(ctx, sess, node, params); effErr != nil {
			return e.failBranch(ctx, sess, g, node, effErr, now)
		}
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return e.moveNext(ctx, sess, g, node, domain.HandleDefault, now, res)

	case *domain.HandoffData:
		// Терминальный узел: дальше диалог ведёт живой оператор,
		// исходящие рёбра игнорируются даже если они есть.
		if data.Message != "" {
			e.send(ctx, sess, Render(data.Message, sess.Variables), nil, res)
		}
		if err := e.visit(ctx, sess, node, "", false, now); err != nil {
			return false, err
		}
		return false, e.close(ctx, sess, domain.StatusHandedOff, now)

	default:
		if err := e.drop(ctx, sess, now, true); err != nil {
			return false, err
		}
		return false, fmt.Errorf("%w: node %q has unsupported data %T", ErrUnknownNode, node.ID, data)
	}
}

// visit записывает interaction для посещённого узла.
func (e *Engine) visit(ctx context.Context, sess *domain.Session, node *domain.Node, userResponse string, dropOff bool, at time.Time) error {
	in := &domain.Interaction{
		SessionID:    sess.ID,
		NodeID:       node.ID,
		NodeType:     node.Type,
		NodeLabel:    node.Label,
		UserResponse: userResponse,
		IsDropOff:    dropOff,
		InteractedAt: at,
	}
	if err := e.interactions.AppendInteraction(ctx, in); err != nil {
		return fmt.Errorf("append interaction: %w", err)
	}
	sess.LastActivityAt = at
	telemetry.Interactions.WithLabelValues(string(node.Type)).Inc()
	return nil
}

// moveNext переводит сессию на приёмник ребра handle.
// Ребра нет — ветка завершается, сессия закрывается как completed:
// авторский тупик в графе считается задуманным концом диалога,
// а не обрывом со стороны пользователя.
func (e *Engine) moveNext(ctx context.Context, sess *domain.Session, g *flow.Graph, node *domain.Node, handle string, now time.Time, _ *Result) (bool, error) {
	next, ok := g.ResolveNext(node.ID, handle)
	if !ok {
		return false, e.close(ctx, sess, domain.StatusCompleted, now)
	}
	sess.CurrentNodeID = next
	return true, nil
}

// close переводит сессию в финальный статус и сохраняет её.
// Уже закрытая в хранилище сессия не трогается.
func (e *Engine) close(ctx context.Context, sess *domain.Session, status domain.SessionStatus, at time.Time) error {
	closed, err := e.sessions.CloseSession(ctx, sess.ID, status, at)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if !closed {
		return nil
	}
	sess.MarkClosed(status, at)
	telemetry.SessionsClosed.WithLabelValues(string(status)).Inc()
	return e.sessions.UpdateSession(ctx, sess)
}

// drop закрывает сессию как dropped. markLast — ретроактивно пометить
// последнюю запись журнала точкой drop-off (для путей, где финальная
// запись ещё не помечена).
func (e *Engine) drop(ctx context.Context, sess *domain.Session, at time.Time, markLast bool) error {
	if err := e.close(ctx, sess, domain.StatusDropped, at); err != nil {
		return err
	}
	if markLast {
		return e.interactions.MarkLastDropOff(ctx, sess.ID)
	}
	return nil
}

// failBranch обрабатывает исчерпанные попытки внешнего вызова:
// запись маркера ошибки в журнал и уход на авторскую fallback ветку,
// если она есть, иначе drop. Пользователь сырую ошибку не видит.
func (e *Engine) failBranch(ctx context.Context, sess *domain.Session, g *flow.Graph, node *domain.Node, effErr error, now time.Time) (bool, error) {
	marker := "error: " + effErr.Error()

	if next, ok := g.ResolveNext(node.ID, domain.HandleFallback); ok {
		if err := e.visit(ctx, sess, node, marker, false, now); err != nil {
			return false, err
		}
		e.logger.Warn("effect failed, taking fallback edge",
			"session_id", sess.ID,
			"node_id", node.ID,
			"error", effErr,
		)
		sess.CurrentNodeID = next
		return true, nil
	}

	if err := e.visit(ctx, sess, node, marker, true, now); err != nil {
		return false, err
	}
	e.logger.Warn("effect failed, no fallback edge, dropping session",
		"session_id", sess.ID,
		"node_id", node.ID,
		"error", effErr,
	)
	return false, e.drop(ctx, sess, now, false)
}

// runEffect выполняет эффект узла с retry и экспоненциальным backoff.
func (e *Engine) runEffect(ctx context.Context, sess *domain.Session, node *domain.Node, params map[string]string) (*effects.Response, error) {
	eff, err := e.effects.Get(node.Type)
	if err != nil {
		return nil, err
	}

	req := &effects.Request{
		SessionID: sess.ID,
		Node:      node,
		Params:    params,
		Timeout:   e.callTimeout,
	}

	backoff := e.backoff
	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			telemetry.EffectRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		resp, err := eff.Execute(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		e.logger.Warn("effect attempt failed",
			"node_id", node.ID,
			"node_type", node.Type,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, fmt.Errorf("%w: %v", ErrEffectExhausted, lastErr)
}

// send отправляет сообщение в канал. Fire-and-forget: ошибка доставки
// логируется, но шаг не срывает — статус доставки ведёт адаптер.
func (e *Engine) send(ctx context.Context, sess *domain.Session, text string, buttons []domain.Button, res *Result) {
	out := domain.OutboundSend{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Channel:   sess.Channel,
		Text:      text,
		Buttons:   buttons,
	}
	res.Sends = append(res.Sends, out)

	if e.sender == nil {
		return
	}
	if err := e.sender.Send(ctx, &out); err != nil {
		e.logger.Warn("outbound send failed",
			"session_id", sess.ID,
			"user_id", sess.UserID,
			"error", err,
		)
	}
}

// delayDuration переводит атрибуты delay в time.Duration.
func delayDuration(d *domain.DelayData) time.Duration {
	n := time.Duration(d.Duration)
	switch d.Unit {
	case domain.UnitSeconds:
		return n * time.Second
	case domain.UnitMinutes:
		return n * time.Minute
	case domain.UnitHours:
		return n * time.Hour
	case domain.UnitDays:
		return n * 24 * time.Hour
	default:
		return 0
	}
}
