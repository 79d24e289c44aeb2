package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/roadchat/internal/config"
	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/hub"
	"github.com/xiaot623/roadchat/internal/logging"
	"github.com/xiaot623/roadchat/internal/service"
	"github.com/xiaot623/roadchat/internal/session"
	"github.com/xiaot623/roadchat/internal/store"
	handler "github.com/xiaot623/roadchat/internal/transport/http"
	v1 "github.com/xiaot623/roadchat/internal/transport/http/v1"
	"github.com/xiaot623/roadchat/internal/transport/ws"
	"github.com/xiaot623/roadchat/internal/validation"
	"github.com/xiaot623/roadchat/policy"
)

func main() {
	if err := run(); err != nil {
		slog.Error("chat service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	log.Info("starting chat service", "port", cfg.HTTPPort, "required_role", cfg.RequiredRole)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer db.Close()

	// Initialize session store
	redisClient, err := session.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("initialize session store: %w", err)
	}
	defer redisClient.Close()
	sessions := session.NewRedisStore(redisClient, cfg.SessionKeyPrefix)

	// Initialize policy engine
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return fmt.Errorf("initialize policy engine: %w", err)
	}

	verifier := session.NewVerifier(session.VerifierConfig{
		CookieName:    cfg.SessionCookieName,
		RequiredRole:  cfg.RequiredRole,
		LookupTimeout: cfg.SessionLookupTimeout,
	}, session.NewSigner(cfg.CookieSecret), sessions, policyEngine, log)

	// Initialize service and realtime hub
	h := hub.NewHub(log)
	svc := service.New(db, policyEngine, log, domain.Role(cfg.RequiredRole))
	svc.SetRoomJoiner(h)

	validator := validation.New()
	gateway := ws.NewServer(ws.Options{
		PingInterval:   cfg.PingInterval,
		WriteTimeout:   cfg.WriteTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		MaxMessageSize: cfg.MaxMessageSize,
		SendBufferSize: cfg.SendBufferSize,
		AllowedOrigins: cfg.AllowedOrigins,
	}, h, verifier, svc, validator, log)

	server := handler.NewServer(v1.NewHandler(svc, verifier, h, log), gateway, validator, cfg.AllowedOrigins, cfg.MaxMessageSize)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("chat service started", "port", cfg.HTTPPort)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down chat service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("failed to shutdown http server gracefully", "error", err)
	}
	h.Shutdown()

	log.Info("chat service stopped")
	return nil
}
