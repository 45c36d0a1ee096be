package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Botflow/internal/domain"
)

// BotRepo — Postgres-хранилище ботов.
type BotRepo struct {
	pool *pgxpool.Pool
}

// NewBotRepo создаёт новый BotRepo.
func NewBotRepo(pool *pgxpool.Pool) *BotRepo {
	return &BotRepo{pool: pool}
}

// CreateBot создаёт бота.
func (r *BotRepo) CreateBot(ctx context.Context, b *domain.Bot) error {
	query := `
		INSERT INTO bots (id, name, channel, trigger_keywords, is_active, graph, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Name,
		b.Channel,
		b.TriggerKeywords,
		b.IsActive,
		[]byte(b.Graph),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

// GetBot возвращает бота по ID.
func (r *BotRepo) GetBot(ctx context.Context, id uuid.UUID) (*domain.Bot, error) {
	query := `
		SELECT id, name, channel, trigger_keywords, is_active, graph, created_at, updated_at
		FROM bots
		WHERE id = $1
	`
	return r.scanBot(r.pool.QueryRow(ctx, query, id))
}

// UpdateBot сохраняет бота.
func (r *BotRepo) UpdateBot(ctx context.Context, b *domain.Bot) error {
	query := `
		UPDATE bots
		SET name = $2, channel = $3, trigger_keywords = $4,
		    is_active = $5, graph = $6, updated_at = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Name,
		b.Channel,
		b.TriggerKeywords,
		b.IsActive,
		[]byte(b.Graph),
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update bot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBots возвращает ботов, отсортированных по имени.
func (r *BotRepo) ListBots(ctx context.Context, activeOnly bool) ([]domain.Bot, error) {
	query := `
		SELECT id, name, channel, trigger_keywords, is_active, graph, created_at, updated_at
		FROM bots
		WHERE NOT $1::bool OR is_active
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var bots []domain.Bot
	for rows.Next() {
		b, err := r.scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *b)
	}
	return bots, rows.Err()
}

// scanBot сканирует одну строку в Bot.
func (r *BotRepo) scanBot(row pgx.Row) (*domain.Bot, error) {
	var b domain.Bot
	var graphJSON []byte

	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.Channel,
		&b.TriggerKeywords,
		&b.IsActive,
		&graphJSON,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan bot: %w", err)
	}
	b.Graph = graphJSON
	return &b, nil
}

// PgStore объединяет Postgres-репозитории в единое хранилище.
type PgStore struct {
	*SessionRepo
	*InteractionRepo
	*BotRepo
}

// NewPgStore создаёт хранилище поверх пула соединений.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{
		SessionRepo:     NewSessionRepo(pool),
		InteractionRepo: NewInteractionRepo(pool),
		BotRepo:         NewBotRepo(pool),
	}
}
