package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Botflow/internal/dispatcher"
	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/ledger"
	"github.com/shaiso/Botflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultBatchSize        = 100
	defaultInactivityWindow = 24 * time.Hour
)

// Sweeper — фоновый обходчик сессий.
//
// Делает две вещи за тик: будит сессии, чей WakeAt наступил, и
// закрывает как dropped сессии, молчащие дольше окна неактивности.
// Сессия, спящая по delay с будущим WakeAt, не считается заснувшей —
// её молчание запланировано автором графа.
type Sweeper struct {
	store      ledger.SessionStore
	dispatcher *dispatcher.Dispatcher
	logger     *slog.Logger

	batchSize        int
	inactivityWindow time.Duration
	now              func() time.Time
}

// Config — конфигурация Sweeper.
type Config struct {
	Store      ledger.SessionStore
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger

	// BatchSize — количество сессий за один тик (default: 100).
	BatchSize int

	// InactivityWindow — окно молчания, после которого активная
	// сессия считается брошенной (default: 24h).
	InactivityWindow time.Duration

	// Now — источник времени (default: time.Now).
	Now func() time.Time
}

// New создаёт новый Sweeper.
func New(cfg Config) *Sweeper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	window := cfg.InactivityWindow
	if window <= 0 {
		window = defaultInactivityWindow
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		store:            cfg.Store,
		dispatcher:       cfg.Dispatcher,
		logger:           logger,
		batchSize:        batchSize,
		inactivityWindow: window,
		now:              nowFn,
	}
}

// Tick выполняет один тик обходчика.
//
// 1. Находит сессии с наступившим WakeAt и будит их через dispatcher
// 2. Находит активные сессии, молчащие дольше окна неактивности,
//    и закрывает их как dropped с ретроактивной пометкой drop-off
//
// Ошибки одной сессии не блокируют обработку остальных.
func (s *Sweeper) Tick(ctx context.Context) error {
	now := s.now()

	resumed, err := s.resumeDue(ctx, now)
	if err != nil {
		return err
	}

	closed, err := s.closeIdle(ctx, now)
	if err != nil {
		return err
	}

	if resumed > 0 || closed > 0 {
		s.logger.Info("sweeper tick completed",
			"resumed", resumed,
			"closed_idle", closed,
		)
	}
	return nil
}

// resumeDue будит сессии с наступившим временем пробуждения.
func (s *Sweeper) resumeDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListSessions(ctx, ledger.SessionFilter{
		Status:        domain.StatusActive,
		WakeDueBefore: now,
		Limit:         s.batchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list due sessions: %w", err)
	}

	resumed := 0
	for i := range due {
		sess := &due[i]
		if _, err := s.dispatcher.ResumeWake(ctx, sess.ID); err != nil {
			s.logger.Error("failed to resume session",
				"session_id", sess.ID,
				"error", err,
			)
			continue
		}
		resumed++
		telemetry.WakesResumed.Inc()
	}
	return resumed, nil
}

// closeIdle закрывает активные сессии, молчащие дольше окна.
func (s *Sweeper) closeIdle(ctx context.Context, now time.Time) (int, error) {
	idle, err := s.store.ListSessions(ctx, ledger.SessionFilter{
		Status:     domain.StatusActive,
		IdleBefore: now.Add(-s.inactivityWindow),
		Limit:      s.batchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	closed := 0
	for i := range idle {
		sess := &idle[i]

		// Запланированный сон — не молчание.
		if sess.WakeAt != nil && sess.WakeAt.After(now) {
			continue
		}

		if _, err := s.dispatcher.StopSession(ctx, sess.ID); err != nil {
			s.logger.Error("failed to close idle session",
				"session_id", sess.ID,
				"error", err,
			)
			continue
		}
		closed++
		telemetry.SweepsClosed.Inc()
		s.logger.Debug("idle session closed",
			"session_id", sess.ID,
			"last_activity_at", sess.LastActivityAt,
		)
	}
	return closed, nil
}
