package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"mayfly-forms/internal/auth"
	"mayfly-forms/internal/clock"
	"mayfly-forms/internal/config"
	"mayfly-forms/internal/email"
	"mayfly-forms/internal/handler"
	"mayfly-forms/internal/logger"
	"mayfly-forms/internal/metrics"
	"mayfly-forms/internal/receipts"
	"mayfly-forms/internal/service"
	"mayfly-forms/internal/storage"
	"mayfly-forms/internal/validation"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("mayfly-forms: %v", err)
	}
}

func run() error {
	// Carregar configurações
	cfg, err := config.NewConfigLoader().LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Inicializar logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info("Starting Mayfly Forms API", map[string]interface{}{
		"log_level":      cfg.LogLevel,
		"port":           cfg.ServerPort,
		"email_provider": cfg.EmailProvider,
		"receipt_store":  cfg.ReceiptStore,
		"api_keys":       len(cfg.APIKeys),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	systemClock := clock.System{}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Rate limiter em memória
	limiterStorage := storage.NewMemoryStorage(appLogger)
	defer limiterStorage.Close()
	limiter := service.NewRateLimiterService(limiterStorage, cfg.Windows, systemClock, appLogger)

	// Envio de email
	renderer, err := email.NewRenderer(systemClock)
	if err != nil {
		return fmt.Errorf("failed to build email renderer: %w", err)
	}
	dispatcher, err := email.NewDispatcher(ctx, cfg.EmailSettings(), renderer, appLogger)
	if err != nil {
		return fmt.Errorf("failed to build email dispatcher: %w", err)
	}

	// Recibos de entrega
	storeConfig := receipts.BuildStoreConfig(cfg.ReceiptStore, cfg.ReceiptTTL, cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB)
	receiptStore, err := receipts.NewStoreFactory(systemClock).CreateStore(storeConfig, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create receipt store: %w", err)
	}
	defer receiptStore.Close()

	pipeline := service.NewAdmissionPipeline(service.Dependencies{
		Keys:        auth.NewKeyStore(cfg.APIKeys),
		Limiter:     limiter,
		Validator:   validation.NewFormValidator(cfg.ValidatorOptions()),
		Dispatcher:  dispatcher,
		Receipts:    receiptStore,
		Clock:       systemClock,
		Metrics:     appMetrics,
		Logger:      appLogger,
		SendTimeout: cfg.SendTimeout,
	})

	// Configurar Gin
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	handlers := handler.NewHandlers(handler.Options{
		Pipeline:     pipeline,
		Limiter:      limiter,
		Receipts:     receiptStore,
		Gatherer:     registry,
		Logger:       appLogger,
		AdminToken:   cfg.AdminToken,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	router, err := handler.NewRouter(handlers, handler.RouterOptions{
		TrustedProxies:     cfg.TrustedProxies,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            appMetrics,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Starting HTTP server", map[string]interface{}{
			"addr":         server.Addr,
			"admin_routes": cfg.AdminToken != "",
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		limiterStorage.StartJanitor(gctx, cfg.CleanupInterval, systemClock, func(removed, tracked int) {
			appMetrics.IncrementCleanupRemoved(removed)
			appMetrics.SetTrackedIdentities(tracked)
		})
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Server stopped with error", err, nil)
		return err
	}

	appLogger.Info("Server stopped gracefully", nil)
	return nil
}
