package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/stocksim/internal/clients/gemini"
	"github.com/efreitasn/stocksim/internal/clients/mlpredict"
	"github.com/efreitasn/stocksim/internal/config"
	"github.com/efreitasn/stocksim/internal/domain"
	"github.com/efreitasn/stocksim/internal/handler"
	"github.com/efreitasn/stocksim/internal/market"
	"github.com/efreitasn/stocksim/internal/service"
	"github.com/efreitasn/stocksim/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Account store.
	var accounts store.AccountStore
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		fs, err := store.NewFirestoreStore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			logger.Error("failed to open firestore", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer fs.Close()
		accounts = fs
	default:
		accounts = store.NewMemoryStore()
	}
	logger.Info("account store ready", slog.String("backend", cfg.StoreBackend))

	// Market data.
	symbols := domain.NewSymbolRegistry()
	provider := market.NewProvider(symbols, uint64(time.Now().UnixNano()))
	ticker := market.NewTicker(cfg.QuoteTickInterval, provider, logger)

	// Downstream clients.
	ml := mlpredict.NewClient(
		mlpredict.WithBaseURL(cfg.MLAPIURL),
		mlpredict.WithTimeout(cfg.PredictionTimeout),
		mlpredict.WithRateLimit(cfg.PredictionRateLimit),
		mlpredict.WithLogger(logger),
	)

	// A nil model leaves chat answering with the configuration message.
	var chatModel service.ChatModel
	if cfg.ChatEnabled() {
		gc, err := gemini.NewClient(ctx, cfg.GenAIAPIKey,
			gemini.WithModel(cfg.ChatModel),
			gemini.WithRateLimit(cfg.ChatRateLimit),
			gemini.WithLogger(logger),
		)
		if err != nil {
			logger.Error("failed to create chat client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		chatModel = gc
	} else {
		logger.Warn("GOOGLE_GENAI_API_KEY not set, chat is disabled")
	}

	// Router.
	router := handler.NewRouter(handler.Services{
		Accounts:    service.NewAccountService(accounts, provider, cfg.InitialBalance, cfg.StoreTimeout),
		Trades:      service.NewTradeService(accounts, symbols, cfg.StoreTimeout),
		Quotes:      service.NewQuoteService(provider),
		Predictions: service.NewPredictionService(ml, cfg.HealthRetries, logger),
		Chat:        service.NewChatService(chatModel, cfg.ChatHistoryWindow, cfg.ChatTimeout, logger),
	}, logger)

	// Start the quote ticker; it stops when ctx is cancelled.
	go ticker.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then cancel context (stops the ticker).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
