package api

import (
	"log/slog"

	"github.com/shaiso/Botflow/internal/analytics"
	"github.com/shaiso/Botflow/internal/dispatcher"
	"github.com/shaiso/Botflow/internal/ledger"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	store      ledger.Store
	dispatcher *dispatcher.Dispatcher
	analytics  *analytics.Aggregator
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Store      ledger.Store
	Dispatcher *dispatcher.Dispatcher
	Analytics  *analytics.Aggregator
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		analytics:  cfg.Analytics,
		logger:     cfg.Logger,
	}
}
