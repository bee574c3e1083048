package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floorplan-service/internal/config"
	"floorplan-service/internal/httpapi"
	"floorplan-service/internal/ingest"
	"floorplan-service/internal/realtime"
	"floorplan-service/internal/seed"
	"floorplan-service/internal/store"

	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	var db *gorm.DB
	var err error
	switch cfg.DBDriver {
	case "postgres":
		db, err = store.OpenPostgres(
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.DBName,
			cfg.Postgres.Host,
			cfg.Postgres.Port,
			cfg.Postgres.SSLMode,
		)
	default:
		db, err = store.OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		slog.Error("db connect failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	repo, err := store.New(db)
	if err != nil {
		slog.Error("db init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SeedDemo {
		n, err := seed.RunOnce(ctx, repo)
		if err != nil {
			slog.Error("demo seed failed", "error", err)
			os.Exit(1)
		}
		slog.Info("demo seed complete", "rows", n)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	hub := realtime.NewHub()
	srv := httpapi.NewServer(repo, hub)
	srv.Register(mux)

	if cfg.SimIngest {
		if _, err := ingest.Start(ctx, repo, cfg.MQTTBrokerURL, hub); err != nil {
			slog.Error("sim ingest start failed", "broker", cfg.MQTTBrokerURL, "error", err)
			os.Exit(1)
		}
		slog.Info("sim ingest enabled", "broker", cfg.MQTTBrokerURL)
	}

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	go func() {
		slog.Info("floorplan-service started", "port", cfg.Port, "driver", cfg.DBDriver)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "error", err)
	}

	slog.Info("floorplan-service stopped")
}
