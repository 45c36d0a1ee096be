package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Botflow/internal/domain"
)

// SessionRepo — Postgres-хранилище сессий.
//
// Уникальность активной сессии пары (бот, пользователь) обеспечивает
// частичный уникальный индекс:
//
//	CREATE UNIQUE INDEX sessions_active_uniq
//	ON sessions (bot_id, user_id) WHERE status = 'active';
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo создаёт новый SessionRepo.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `
	id, bot_id, user_id, conversation_id, channel, status,
	current_node_id, variables, trigger_keyword, graph, awaiting_input,
	wake_at, correlation_id, started_at, ended_at, last_activity_at
`

// CreateSession создаёт сессию.
func (r *SessionRepo) CreateSession(ctx context.Context, s *domain.Session) error {
	varsJSON, err := json.Marshal(s.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.BotID,
		s.UserID,
		nullString(s.ConversationID),
		nullString(s.Channel),
		s.Status,
		s.CurrentNodeID,
		varsJSON,
		nullString(s.TriggerKeyword),
		[]byte(s.Graph),
		s.AwaitingInput,
		s.WakeAt,
		nullString(s.CorrelationID),
		s.StartedAt,
		s.EndedAt,
		s.LastActivityAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 — unique_violation (индекс активных сессий)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateActiveSession
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession возвращает сессию по ID.
func (r *SessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return r.scanSession(r.pool.QueryRow(ctx, query, id))
}

// ActiveSession возвращает активную сессию пары (бот, пользователь).
func (r *SessionRepo) ActiveSession(ctx context.Context, botID uuid.UUID, userID string) (*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE bot_id = $1 AND user_id = $2 AND status = 'active'
	`
	return r.scanSession(r.pool.QueryRow(ctx, query, botID, userID))
}

// UpdateSession сохраняет состояние сессии.
func (r *SessionRepo) UpdateSession(ctx context.Context, s *domain.Session) error {
	varsJSON, err := json.Marshal(s.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}

	query := `
		UPDATE sessions
		SET status = $2, current_node_id = $3, variables = $4,
		    awaiting_input = $5, wake_at = $6, correlation_id = $7,
		    ended_at = $8, last_activity_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Status,
		s.CurrentNodeID,
		varsJSON,
		s.AwaitingInput,
		s.WakeAt,
		nullString(s.CorrelationID),
		s.EndedAt,
		s.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CloseSession переводит сессию в финальный статус.
// WHERE status = 'active' делает переход односторонним: повторное
// закрытие не трогает строку и возвращает closed=false.
func (r *SessionRepo) CloseSession(ctx context.Context, id uuid.UUID, status domain.SessionStatus, endedAt time.Time) (bool, error) {
	query := `
		UPDATE sessions
		SET status = $2, ended_at = $3,
		    awaiting_input = FALSE, wake_at = NULL, correlation_id = NULL
		WHERE id = $1 AND status = 'active'
	`
	result, err := r.pool.Exec(ctx, query, id, status, endedAt)
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListSessions возвращает сессии по фильтру.
func (r *SessionRepo) ListSessions(ctx context.Context, f SessionFilter) ([]domain.Session, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE ($1::uuid IS NULL OR bot_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::timestamptz IS NULL OR started_at >= $3)
		  AND ($4::timestamptz IS NULL OR started_at < $4)
		  AND ($5::timestamptz IS NULL OR last_activity_at < $5)
		  AND ($6::timestamptz IS NULL OR wake_at <= $6)
		  AND ($7::text IS NULL OR correlation_id = $7)
		  AND ($8::text IS NULL OR conversation_id = $8)
		ORDER BY started_at ASC
		LIMIT $9 OFFSET $10
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(f.BotID),
		nullString(string(f.Status)),
		nullTime(f.StartedFrom),
		nullTime(f.StartedTo),
		nullTime(f.IdleBefore),
		nullTime(f.WakeDueBefore),
		nullString(f.CorrelationID),
		nullString(f.ConversationID),
		limit,
		f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// scanSession сканирует одну строку в Session.
func (r *SessionRepo) scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var varsJSON, graphJSON []byte
	var conversationID, channel, triggerKeyword, correlationID *string

	err := row.Scan(
		&s.ID,
		&s.BotID,
		&s.UserID,
		&conversationID,
		&channel,
		&s.Status,
		&s.CurrentNodeID,
		&varsJSON,
		&triggerKeyword,
		&graphJSON,
		&s.AwaitingInput,
		&s.WakeAt,
		&correlationID,
		&s.StartedAt,
		&s.EndedAt,
		&s.LastActivityAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if varsJSON != nil {
		if err := json.Unmarshal(varsJSON, &s.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}
	s.Graph = graphJSON
	if conversationID != nil {
		s.ConversationID = *conversationID
	}
	if channel != nil {
		s.Channel = *channel
	}
	if triggerKeyword != nil {
		s.TriggerKeyword = *triggerKeyword
	}
	if correlationID != nil {
		s.CorrelationID = *correlationID
	}
	return &s, nil
}

// nullUUID возвращает nil для нулевого UUID.
func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// nullTime возвращает nil для нулевого времени.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
