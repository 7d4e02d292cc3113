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

	"github.com/mylittleshop/fulfillment/internal/config"
	"github.com/mylittleshop/fulfillment/internal/domain"
	"github.com/mylittleshop/fulfillment/internal/engine"
	"github.com/mylittleshop/fulfillment/internal/handler"
	"github.com/mylittleshop/fulfillment/internal/service"
	"github.com/mylittleshop/fulfillment/internal/store"
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

	clock := domain.SystemClock()

	// Instantiate stores.
	productStore := store.NewProductStore()
	userStore := store.NewUserStore()
	inventoryStore := store.NewInventoryStore()
	historyStore := store.NewHistoryStore()
	orderStore := store.NewOrderStore()
	templateStore := store.NewRecurringOrderStore()
	subscriptionStore := store.NewSubscriptionStore()

	// Engine.
	ledger := engine.NewLedger(inventoryStore, clock)
	dueIndex := engine.NewDueIndex()

	// Services.
	inventorySvc := service.NewInventoryService(ledger, productStore, historyStore, clock)
	orderSvc := service.NewOrderService(orderStore, inventorySvc, productStore, userStore, clock)
	recurringSvc := service.NewRecurringOrderService(templateStore, orderSvc, dueIndex, productStore, userStore, clock)
	subSvc := service.NewSubscriptionService(subscriptionStore, templateStore, recurringSvc, userStore, clock)

	// Rebuild the due index from active templates.
	for _, template := range templateStore.All() {
		if template.Status == domain.RecurringOrderStatusActive {
			dueIndex.Upsert(template.RecurringOrderID, template.NextOrderDate)
		}
	}

	// Router.
	router := handler.NewRouter(orderSvc, inventorySvc, recurringSvc, subSvc, logger)

	// Start the recurring-order scheduler with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler := engine.NewScheduler(cfg.SchedulerInterval, clock, recurringSvc, logger)
	scheduler.Start(ctx)

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

	// Graceful shutdown: stop HTTP server, cancel context (stops scheduler).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
