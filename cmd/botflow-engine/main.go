// Botflow Engine — выполняет графы диалогов.
//
// Engine:
//   - Получает входящие события каналов из RabbitMQ
//   - Продвигает сессии по снимкам графов
//   - Публикует исходящие сообщения для адаптеров каналов
//   - Пишет журнал interactions
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Botflow/internal/dispatcher"
	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/effects"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/ledger"
	"github.com/shaiso/Botflow/internal/mq"
	"github.com/shaiso/Botflow/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting botflow-engine")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := ledger.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := ledger.NewPgStore(pool)

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	publisher := mq.NewPublisher(mqConn, logger)

	// Исходящие сообщения уходят адаптерам каналов через очередь.
	sender := effects.SenderFunc(func(ctx context.Context, send *domain.OutboundSend) error {
		return publisher.PublishOutboundSend(ctx, send)
	})

	// Движок и диспетчер
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

	if err := disp.RefreshKeywords(ctx); err != nil {
		logger.Error("failed to build keyword index", "error", err)
		os.Exit(1)
	}

	// Consumer входящих событий
	consumer := mq.NewEventConsumer(mqConn, logger, mq.EventConsumerConfig{
		Prefetch: 10,
		Handle: func(ctx context.Context, event *domain.InboundEvent) error {
			_, err := disp.HandleInbound(ctx, event)
			// Несовпавшее событие — не ошибка обработки.
			if errors.Is(err, dispatcher.ErrNoMatch) || errors.Is(err, dispatcher.ErrBotInactive) {
				return nil
			}
			return err
		},
	})

	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("consumer stopped", "error", err)
			cancel()
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("ENGINE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	consumer.Stop()
	logger.Info("stopped")
}
