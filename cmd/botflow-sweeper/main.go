// Botflow Sweeper — фоновый обходчик сессий.
//
// Sweeper:
//   - Будит сессии с наступившим временем пробуждения (delay)
//   - Закрывает сессии, молчащие дольше окна неактивности
//
// Leader election — через pg_try_advisory_lock: при нескольких
// экземплярах тики выполняет только лидер.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Botflow/internal/dispatcher"
	"github.com/shaiso/Botflow/internal/engine"
	"github.com/shaiso/Botflow/internal/ledger"
	"github.com/shaiso/Botflow/internal/sweeper"
	"github.com/shaiso/Botflow/internal/telemetry"
)

const sweepLockKey int64 = 515151

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting botflow-sweeper")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Каденс тиков — cron-выражение.
	cadence := os.Getenv("SWEEP_CADENCE")
	if cadence == "" {
		cadence = "* * * * *"
	}
	if err := sweeper.ValidateCadence(cadence); err != nil {
		logger.Error("invalid sweep cadence", "error", err)
		os.Exit(1)
	}

	window := 24 * time.Hour
	if v := os.Getenv("SWEEP_INACTIVITY_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			logger.Error("invalid SWEEP_INACTIVITY_HOURS", "value", v)
			os.Exit(1)
		}
		window = time.Duration(hours) * time.Hour
	}

	// DB pool
	pool, err := ledger.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	store := ledger.NewPgStore(pool)

	// Пробуждение сессий идёт через диспетчер: та же сериализация
	// и тот же движок, что у событий канала.
	eng := engine.New(engine.Config{
		Sessions:     store,
		Interactions: store,
		Logger:       logger,
	})
	disp := dispatcher.New(dispatcher.Config{
		Store:  store,
		Engine: eng,
		Logger: logger,
	})

	sw := sweeper.New(sweeper.Config{
		Store:            store,
		Dispatcher:       disp,
		Logger:           logger,
		InactivityWindow: window,
	})

	// sweeper loop
	go func() {
		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", sweepLockKey)
			}
		}()

		for {
			next, err := sweeper.NextTick(cadence, time.Now())
			if err != nil {
				logger.Error("cadence error", "error", err)
				return
			}

			select {
			case <-time.After(time.Until(next)):
			case <-ctx.Done():
				return
			}

			// пытаемся стать лидером (или подтвердить лидерство)
			if !hasLock {
				var ok bool
				if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", sweepLockKey).Scan(&ok); err != nil {
					logger.Warn("lock error", "error", err)
					continue
				}
				hasLock = ok
			}
			if !hasLock {
				// не лидер — пропускаем тик
				continue
			}

			if err := sw.Tick(ctx); err != nil && ctx.Err() == nil {
				logger.Error("sweeper tick failed", "error", err)
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SWEEPER_PORT"); v != "" {
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
	logger.Info("stopped")
}
