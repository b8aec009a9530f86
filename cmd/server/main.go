// Command server runs the ClientBridge API as a long-lived HTTP process.
// The same router is exposed as a serverless function in api/index.go.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handler "clientbridge/api"
	"clientbridge/pkg/config"
	"clientbridge/pkg/logger"

	"github.com/gofrs/flock"
)

func main() {
	if err := run(); err != nil {
		logger.Fatal("server stopped", "error", err)
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.Environment)

	// SQLite 只允许一个写进程，本地模式下加文件锁
	if cfg.UseLocalDB {
		lock := flock.New(cfg.LocalDBPath + ".lock")
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another server is already using %s", cfg.LocalDBPath)
		}
		defer lock.Unlock()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := handler.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close application", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "environment", cfg.Environment, "local_db", cfg.UseLocalDB)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// websocket 连接不受 Shutdown 管理，关闭 hub 时一并断开
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
