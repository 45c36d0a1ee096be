package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
)

// idempotencyBucket — гранулярность ключа идемпотентности журнала.
//
// Повторная доставка одного и того же входящего события даёт запись
// с теми же (session, node, ответ) в пределах одной минуты — такие
// дубликаты поглощаются.
const idempotencyBucket = time.Minute

// SessionFilter — фильтр для выборки сессий.
// Нулевые поля не участвуют в фильтрации.
type SessionFilter struct {
	// BotID — только сессии этого бота.
	BotID uuid.UUID

	// Status — только сессии в этом статусе.
	Status domain.SessionStatus

	// StartedFrom / StartedTo — окно по StartedAt.
	StartedFrom time.Time
	StartedTo   time.Time

	// IdleBefore — только сессии с LastActivityAt раньше этого времени.
	IdleBefore time.Time

	// WakeDueBefore — только сессии с WakeAt не позже этого времени.
	WakeDueBefore time.Time

	// CorrelationID — сессия, ожидающая этот ответ webhook.
	CorrelationID string

	// ConversationID — сессия, привязанная к этому диалогу канала.
	ConversationID string

	// Limit / Offset — пагинация. Limit 0 — без ограничения.
	Limit  int
	Offset int
}

// SessionStore — хранилище сессий.
type SessionStore interface {
	// CreateSession создаёт сессию. Возвращает ErrDuplicateActiveSession,
	// если для (BotID, UserID) уже есть активная.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession возвращает сессию по ID.
	GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error)

	// ActiveSession возвращает активную сессию пары (бот, пользователь).
	ActiveSession(ctx context.Context, botID uuid.UUID, userID string) (*domain.Session, error)

	// UpdateSession сохраняет изменённое состояние сессии.
	UpdateSession(ctx context.Context, s *domain.Session) error

	// CloseSession — одностороннний переход в финальный статус.
	// Повторное закрытие — no-op: возвращает closed=false без ошибки.
	CloseSession(ctx context.Context, id uuid.UUID, status domain.SessionStatus, endedAt time.Time) (closed bool, err error)

	// ListSessions возвращает сессии по фильтру.
	ListSessions(ctx context.Context, f SessionFilter) ([]domain.Session, error)
}

// InteractionStore — append-only журнал посещений узлов.
type InteractionStore interface {
	// AppendInteraction добавляет запись. Идемпотентно: дубликат по
	// (SessionID, NodeID, минутный бакет InteractedAt, UserResponse)
	// поглощается без ошибки.
	AppendInteraction(ctx context.Context, in *domain.Interaction) error

	// SessionInteractions возвращает записи сессии в порядке добавления.
	SessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]domain.Interaction, error)

	// BotInteractions возвращает записи всех сессий бота в окне времени.
	BotInteractions(ctx context.Context, botID uuid.UUID, from, to time.Time) ([]domain.Interaction, error)

	// MarkLastDropOff ретроактивно помечает последнюю запись сессии
	// как точку drop-off. No-op, если запись уже помечена или записей нет.
	MarkLastDropOff(ctx context.Context, sessionID uuid.UUID) error
}

// BotStore — хранилище ботов.
type BotStore interface {
	CreateBot(ctx context.Context, b *domain.Bot) error
	GetBot(ctx context.Context, id uuid.UUID) (*domain.Bot, error)
	UpdateBot(ctx context.Context, b *domain.Bot) error
	ListBots(ctx context.Context, activeOnly bool) ([]domain.Bot, error)
}

// Store объединяет все хранилища платформы.
type Store interface {
	SessionStore
	InteractionStore
	BotStore
}

// IdempotencyKey строит ключ идемпотентности записи журнала.
func IdempotencyKey(in *domain.Interaction) string {
	bucket := in.InteractedAt.Truncate(idempotencyBucket).UTC()
	return in.SessionID.String() + "|" + in.NodeID + "|" + bucket.Format(time.RFC3339) + "|" + in.UserResponse
}
