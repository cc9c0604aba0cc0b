// Command leaderboardd serves the ScoreQuest leaderboard API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scorequest/scorequest-desktop/internal/api"
	"github.com/scorequest/scorequest-desktop/internal/config"
	"github.com/scorequest/scorequest-desktop/internal/leaderboard"
)

func main() {
	logger := log.New(os.Stdout, "[leaderboardd] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := leaderboard.Open(ctx, cfg.Database.Driver, cfg.Database.Target(), logger)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	srv := api.NewServer(store,
		api.WithSubmitToken(cfg.Server.SubmitToken),
		api.WithTimeout(cfg.Server.RequestTimeout),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	started := time.Now()
	srv.Audit().LogSystemStartup(cfg.Server.Addr, map[string]interface{}{
		"db_driver":  cfg.Database.Driver,
		"db_dsn":     cfg.Database.Target(),
		"write_auth": cfg.Server.SubmitToken != "",
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (driver=%s)", cfg.Server.Addr, cfg.Database.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	reason := "signal"
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Printf("server error: %v", err)
			reason = "server_error"
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
	srv.Audit().LogSystemShutdown(reason, time.Since(started))
	logger.Println("stopped")
}
