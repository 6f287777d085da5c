// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/caucus/internal/bus"
	"github.com/jason-s-yu/caucus/internal/cache"
	"github.com/jason-s-yu/caucus/internal/config"
	"github.com/jason-s-yu/caucus/internal/handlers"
	"github.com/jason-s-yu/caucus/internal/metrics"
	"github.com/jason-s-yu/caucus/internal/names"
	"github.com/jason-s-yu/caucus/internal/pool"
	"github.com/jason-s-yu/caucus/internal/room"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := room.NewRegistry(names.NewGenerator(), logger)
	updates := bus.New(cfg.BusBuffer)
	updates.OnDrop = func(roomID string) {
		metrics.BusDropped.Inc()
		logger.Debugf("Room %s: slow subscriber dropped an update", roomID)
	}

	srv := handlers.NewRoomServer(registry, pool.NewDirectory(), updates, logger)
	srv.PingInterval = cfg.PingInterval

	if cfg.JournalEnabled {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("journal: %v", err)
		}
		defer rdb.Close()
		srv.Journal = cache.NewRedisJournal(rdb, cfg.JournalQueue)
		logger.Infof("Journaling room events to %s/%s", cfg.RedisAddr, cfg.JournalQueue)
	}

	httpServer := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     handlers.NewRouter(srv, cfg.StaticDir),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		// Sessions see the closed bus and leave their rooms.
		updates.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
