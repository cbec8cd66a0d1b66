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

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"github.com/CreedTech/relate/auth"
	"github.com/CreedTech/relate/contract"
	"github.com/CreedTech/relate/infrastructure/httpapi"
	"github.com/CreedTech/relate/infrastructure/ws"
	"github.com/CreedTech/relate/internal"
	"github.com/CreedTech/relate/repositories"
	"github.com/CreedTech/relate/runtime"
	"github.com/CreedTech/relate/runtime/workers"
	"github.com/CreedTech/relate/services"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only
	// responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. This pattern is preferred over calling
// os.Exit or panic directly because it ensures all defer statements
// (like database cleanup) execute before the program exits, and it
// decouples initialization from the entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.LoggerFromLevel(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are
		// flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Registry, stores, services
	registry := runtime.NewRegistry(logger)
	conversationRepository := repositories.NewConversationRepository(db)
	userRepository := repositories.NewUserRepository(db)

	var messageStore contract.IMessageStore
	if config.PersistMessages {
		messageStore = repositories.NewMessageRepository(db, logger)
		logger.Info("Message persistence enabled")
	}

	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	chatService := services.NewChatService(logger, registry, conversationRepository, messageStore)
	authService := services.NewAuthService(userRepository, tokens)

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to
	// trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(logger)
	sup.Add(
		workers.NewHealthWorker(logger, registry, config.MetricInterval),
		workers.NewStorageGCWorker(logger, db, config.GCInterval),
	)

	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		sup.Run(ctx)
	}()

	// 6. HTTP routes: account endpoints plus the websocket upgrade
	// path, where the conversation name is the one path segment.
	authHandler := httpapi.NewAuthHandler(logger, authService)
	chatHandler := ws.NewChatHandler(logger, chatService, tokens,
		config.ConnectionBufferSize, config.WriteTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth-token/", authHandler.Login)
	mux.HandleFunc("POST /register/", authHandler.Register)
	mux.Handle("GET /{conversation}/{$}", chatHandler)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting chat server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// Active connections get ShutdownTimeout to drain; sessions clean
	// their group membership on the way out.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forcing connections closed", "error", err)
		_ = server.Close()
	}

	sup.Stop()
	<-supervisorDone
	logger.Info("Server stopped cleanly")

	return exitOK, nil
}
