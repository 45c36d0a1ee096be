package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Botflow/internal/analytics"
	"github.com/shaiso/Botflow/internal/api"
	"github.com/shaiso/Botflow/internal/dispatcher"
	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/effects"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/ledger"
	"github.com/shaiso/Botflow/internal/mq"
	"github.com/shaiso/Botflow/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "botflow_api_http_requests_total",
		Help: "Total HTTP requests handled by botflow_api",
	})
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting botflow-api")

	// Подключаемся к базе данных
	pool, err := ledger.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	store := ledger.NewPgStore(pool)

	// RabbitMQ опционален: без него исходящие сообщения видны
	// только в ответах API.
	var sender effects.Sender
	if mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger); err != nil {
		logger.Warn("RabbitMQ not available, sends will not be published", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")
		publisher := mq.NewPublisher(mqConn, logger)
		sender = effects.SenderFunc(func(ctx context.Context, send *domain.OutboundSend) error {
			return publisher.PublishOutboundSend(ctx, send)
		})
	}

	eng := engine.New(engine.Config{
		Sessions:     store,
		Interactions: store,
		Sender:       sender,
		Effects: effects.DefaultRegistry(effects.GatewayConfig{
			EmailGatewayURL: os.Getenv("EMAIL_GATEWAY_URL"),
			CalendarAPIURL:  os.Getenv("CALENDAR_API_URL"),
		}),
		Logger: logger,
	})

	disp := dispatcher.New(dispatcher.Config{
		Store:  store,
		Engine: eng,
		Logger: logger,
	})
	if err := disp.RefreshKeywords(context.Background()); err != nil {
		logger.Warn("failed to build keyword index", "error", err)
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		Store:      store,
		Dispatcher: disp,
		Analytics:  analytics.New(store, store),
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
