package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Botflow/internal/domain"
)

// InteractionRepo — Postgres-журнал посещений узлов.
//
// Идемпотентность вставки обеспечивает уникальный индекс по ключу
// идемпотентности:
//
//	CREATE UNIQUE INDEX interactions_idem_uniq
//	ON interactions (idempotency_key);
type InteractionRepo struct {
	pool *pgxpool.Pool
}

// NewInteractionRepo создаёт новый InteractionRepo.
func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

// AppendInteraction добавляет запись в журнал.
// ON CONFLICT DO NOTHING поглощает повторную доставку события.
func (r *InteractionRepo) AppendInteraction(ctx context.Context, in *domain.Interaction) error {
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
		INSERT INTO interactions
			(id, session_id, node_id, node_type, node_label,
			 user_response, is_drop_off, interacted_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		id,
		in.SessionID,
		in.NodeID,
		in.NodeType,
		nullString(in.NodeLabel),
		nullString(in.UserResponse),
		in.IsDropOff,
		in.InteractedAt,
		IdempotencyKey(in),
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// SessionInteractions возвращает записи сессии в порядке добавления.
func (r *InteractionRepo) SessionInteractions(ctx context.Context, sessionID uuid.UUID) ([]domain.Interaction, error) {
	query := `
		SELECT id, session_id, node_id, node_type, node_label,
		       user_response, is_drop_off, interacted_at
		FROM interactions
		WHERE session_id = $1
		ORDER BY interacted_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// BotInteractions возвращает записи всех сессий бота в окне времени.
// Журнал не хранит bot_id — связь идёт через таблицу сессий.
func (r *InteractionRepo) BotInteractions(ctx context.Context, botID uuid.UUID, from, to time.Time) ([]domain.Interaction, error) {
	query := `
		SELECT i.id, i.session_id, i.node_id, i.node_type, i.node_label,
		       i.user_response, i.is_drop_off, i.interacted_at
		FROM interactions i
		JOIN sessions s ON s.id = i.session_id
		WHERE s.bot_id = $1
		  AND ($2::timestamptz IS NULL OR i.interacted_at >= $2)
		  AND ($3::timestamptz IS NULL OR i.interacted_at < $3)
		ORDER BY i.interacted_at ASC, i.id ASC
	`
	rows, err := r.pool.Query(ctx, query, botID, nullTime(from), nullTime(to))
	if err != nil {
		return nil, fmt.Errorf("list bot interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// MarkLastDropOff помечает последнюю запись сессии как drop-off.
func (r *InteractionRepo) MarkLastDropOff(ctx context.Context, sessionID uuid.UUID) error {
	query := `
		UPDATE interactions
		SET is_drop_off = TRUE
		WHERE id = (
			SELECT id FROM interactions
			WHERE session_id = $1
			ORDER BY interacted_at DESC, id DESC
			LIMIT 1
		)
	`
	if _, err := r.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("mark drop-off: %w", err)
	}
	return nil
}

// scanInteractions сканирует строки журнала.
func scanInteractions(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.Interaction, error) {
	var result []domain.Interaction
	for rows.Next() {
		var in domain.Interaction
		var label, response *string

		err := rows.Scan(
			&in.ID,
			&in.SessionID,
			&in.NodeID,
			&in.NodeType,
			&label,
			&response,
			&in.IsDropOff,
			&in.InteractedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if label != nil {
			in.NodeLabel = *label
		}
		if response != nil {
			in.UserResponse = *response
		}
		result = append(result, in)
	}
	return result, rows.Err()
}
