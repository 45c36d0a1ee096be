package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/flow"
	"github.com/shaiso/Botflow/internal/ledger"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// Dispatcher маршрутизирует события в сессии.
//
// Входящее событие либо возобновляет активную сессию пары
// (бот, пользователь), либо создаёт новую по совпадению trigger
// keyword. Advance одной пары сериализован через keyedMutex —
// дубликаты событий не продвигают сессию дважды.
type Dispatcher struct {
	store  ledger.Store
	engine *engine.Engine
	index  atomic.Pointer[keywordIndex]
	locks  *keyedMutex
	now    func() time.Time
	logger *slog.Logger
}

// Config — конфигурация Dispatcher.
type Config struct {
	// Store — хранилище ботов, сессий и журнала.
	Store ledger.Store

	// Engine — движок выполнения.
	Engine *engine.Engine

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Dispatcher с пустым индексом ключевых слов.
// Индекс наполняет первый RefreshKeywords.
func New(cfg Config) *Dispatcher {
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		store:  cfg.Store,
		engine: cfg.Engine,
		locks:  newKeyedMutex(),
		now:    nowFn,
		logger: logger,
	}
	d.index.Store(buildKeywordIndex(nil))
	return d
}

// RefreshKeywords пересобирает индекс ключевых слов по активным ботам.
// Вызывается при старте и при изменении ботов.
func (d *Dispatcher) RefreshKeywords(ctx context.Context) error {
	bots, err := d.store.ListBots(ctx, true)
	if err != nil {
		return fmt.Errorf("list bots: %w", err)
	}
	d.index.Store(buildKeywordIndex(bots))
	d.logger.Debug("keyword index rebuilt", "bots", len(bots))
	return nil
}

// HandleInbound обрабатывает входящее событие канала.
//
// Порядок: событие с correlation id будит ждущую webhook сессию;
// событие без BotID, но с conversation id возобновляет привязанную
// к диалогу сессию; иначе возобновляется активная сессия пары
// (бот, пользователь); иначе событие должно совпасть с trigger
// keyword — создаётся новая сессия. Ни одно из четырёх — ErrNoMatch.
func (d *Dispatcher) HandleInbound(ctx context.Context, event *domain.InboundEvent) (*engine.Result, error) {
	if event.CorrelationID != "" {
		return d.resumeCorrelated(ctx, event)
	}

	// Адаптер может знать только диалог, не бота.
	if event.BotID == uuid.Nil && event.ConversationID != "" {
		res, err := d.resumeConversation(ctx, event)
		if !errors.Is(err, ErrNoMatch) {
			return res, err
		}
	}

	bot, keyword, err := d.resolveBot(ctx, event)
	if err != nil {
		return nil, err
	}
	if keyword == "" {
		keyword = matchTrigger(bot, event.Text)
	}
	if keyword == "" {
		// Событие без ключевого слова осмысленно только как ответ в
		// уже активной сессии — промах отсекается до захвата замка.
		if _, err := d.store.ActiveSession(ctx, bot.ID, event.UserID); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil, ErrNoMatch
			}
			return nil, fmt.Errorf("lookup active session: %w", err)
		}
	}

	unlock := d.locks.lock(lockKey(bot.ID, event.UserID))
	defer unlock()

	sess, err := d.store.ActiveSession(ctx, bot.ID, event.UserID)
	switch {
	case err == nil:
		return d.advance(ctx, sess, event)

	case errors.Is(err, ledger.ErrNotFound):
		if keyword == "" {
			return nil, ErrNoMatch
		}
		sess, err := d.createSession(ctx, bot, event.UserID, event.ConversationID, keyword, nil)
		if err != nil {
			return nil, err
		}
		return d.advance(ctx, sess, nil)

	default:
		return nil, fmt.Errorf("lookup active session: %w", err)
	}
}

// StartSession явно запускает сессию бота для пользователя (API).
// Существующая активная сессия пары — ErrDuplicateActiveSession.
func (d *Dispatcher) StartSession(ctx context.Context, botID uuid.UUID, userID string, vars map[string]string) (*engine.Result, error) {
	bot, err := d.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	unlock := d.locks.lock(lockKey(bot.ID, userID))
	defer unlock()

	if _, err := d.store.ActiveSession(ctx, bot.ID, userID); err == nil {
		return nil, ledger.ErrDuplicateActiveSession
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("lookup active session: %w", err)
	}

	sess, err := d.createSession(ctx, bot, userID, "", "", vars)
	if err != nil {
		return nil, err
	}
	return d.advance(ctx, sess, nil)
}

// StopSession принудительно закрывает сессию как dropped и помечает
// её последнюю запись журнала точкой обрыва. Идемпотентен.
func (d *Dispatcher) StopSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	sess, err := d.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := d.locks.lock(lockKey(sess.BotID, sess.UserID))
	defer unlock()

	sess, err = d.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.IsTerminal() {
		return sess, nil
	}

	now := d.now()
	closed, err := d.store.CloseSession(ctx, sessionID, domain.StatusDropped, now)
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	if closed {
		sess.MarkClosed(domain.StatusDropped, now)
		telemetry.SessionsClosed.WithLabelValues(string(domain.StatusDropped)).Inc()
		if err := d.store.MarkLastDropOff(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("mark drop-off: %w", err)
		}
		d.logger.Info("session stopped", "session_id", sessionID)
	}
	return sess, nil
}

// ResumeWake будит сессию, чей WakeAt наступил. Вызывается sweeper-ом.
// Сессия, закрытая или спящая дальше, — no-op.
func (d *Dispatcher) ResumeWake(ctx context.Context, sessionID uuid.UUID) (*engine.Result, error) {
	sess, err := d.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := d.locks.lock(lockKey(sess.BotID, sess.UserID))
	defer unlock()

	sess, err = d.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return d.advance(ctx, sess, nil)
}

// resolveBot находит бота события: по BotID, если адаптер его знает,
// иначе по полнотекстовому совпадению с trigger keyword.
func (d *Dispatcher) resolveBot(ctx context.Context, event *domain.InboundEvent) (*domain.Bot, string, error) {
	if event.BotID != uuid.Nil {
		bot, err := d.store.GetBot(ctx, event.BotID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil, "", ErrNoMatch
			}
			return nil, "", err
		}
		return bot, "", nil
	}

	bot, keyword, ok := d.index.Load().match(event.Text)
	if !ok {
		return nil, "", ErrNoMatch
	}
	return &bot, keyword, nil
}

// createSession создаёт сессию со снимком графа бота.
// Гонка на создании схлопывается в существующую активную сессию.
func (d *Dispatcher) createSession(ctx context.Context, bot *domain.Bot, userID, conversationID, keyword string, vars map[string]string) (*domain.Session, error) {
	if !bot.IsActive {
		return nil, ErrBotInactive
	}

	g, err := flow.Parse(bot.Graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	now := d.now()
	sess := &domain.Session{
		ID:             uuid.New(),
		BotID:          bot.ID,
		UserID:         userID,
		ConversationID: conversationID,
		Channel:        bot.Channel,
		Status:         domain.StatusActive,
		CurrentNodeID:  g.Start().ID,
		Variables:      vars,
		TriggerKeyword: keyword,
		Graph:          append(json.RawMessage(nil), bot.Graph...),
		StartedAt:      now,
		LastActivityAt: now,
	}

	if err := d.store.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, ledger.ErrDuplicateActiveSession) {
			return d.store.ActiveSession(ctx, bot.ID, userID)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	telemetry.SessionsStarted.Inc()
	d.logger.Info("session started",
		"session_id", sess.ID,
		"bot_id", bot.ID,
		"user_id", userID,
		"trigger_keyword", keyword,
	)
	return sess, nil
}

// resumeConversation возобновляет активную сессию, привязанную к
// диалогу канала. Сессии с таким диалогом нет — ErrNoMatch, событие
// уходит на маршрутизацию по ключевым словам.
func (d *Dispatcher) resumeConversation(ctx context.Context, event *domain.InboundEvent) (*engine.Result, error) {
	sessions, err := d.store.ListSessions(ctx, ledger.SessionFilter{
		Status:         domain.StatusActive,
		ConversationID: event.ConversationID,
		Limit:          1,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup conversation session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, ErrNoMatch
	}
	found := sessions[0]

	unlock := d.locks.lock(lockKey(found.BotID, found.UserID))
	defer unlock()

	sess, err := d.store.GetSession(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	return d.advance(ctx, sess, event)
}

// resumeCorrelated будит сессию, ждущую ответ webhook с данным
// correlation id.
func (d *Dispatcher) resumeCorrelated(ctx context.Context, event *domain.InboundEvent) (*engine.Result, error) {
	sessions, err := d.store.ListSessions(ctx, ledger.SessionFilter{
		Status:        domain.StatusActive,
		CorrelationID: event.CorrelationID,
		Limit:         1,
	})
	if err != nil {
		return nil, fmt.Errorf("lookup correlated session: %w", err)
	}
	if len(sessions) == 0 {
		return nil, ErrNoMatch
	}
	found := sessions[0]

	unlock := d.locks.lock(lockKey(found.BotID, found.UserID))
	defer unlock()

	sess, err := d.store.GetSession(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	return d.advance(ctx, sess, event)
}

// advance разбирает снимок графа сессии и делает один шаг движка.
func (d *Dispatcher) advance(ctx context.Context, sess *domain.Session, event *domain.InboundEvent) (*engine.Result, error) {
	g, err := flow.Parse(sess.Graph)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	return d.engine.Advance(ctx, sess, g, event)
}

func lockKey(botID uuid.UUID, userID string) string {
	return botID.String() + "/" + userID
}
