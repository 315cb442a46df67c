package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/config"
	"github.com/matheusmosca/planet-shop/pkg/database"
	applog "github.com/matheusmosca/planet-shop/pkg/logger"
	"github.com/matheusmosca/planet-shop/pkg/telemetry"
	"github.com/matheusmosca/planet-shop/services/inventory"
)

const usage = `usage: shop <command> [flags]

commands:
  serve     start the HTTP API and the reconciliation workers (default)
  migrate   apply database migrations
  seed      load a product catalog (-file catalog.yaml)
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applog.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	command, args := "serve", []string{}
	if len(os.Args) > 1 {
		command, args = os.Args[1], os.Args[2:]
	}

	ctx := context.Background()
	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = database.Migrate(ctx, databaseOptions(cfg), logger)
	case "seed":
		err = runSeed(ctx, cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Fatal("❌ Command failed", zap.String("command", command), zap.Error(err))
	}
}

func databaseOptions(cfg *config.Config) database.Options {
	return database.Options{
		User:         cfg.DatabaseUser,
		Password:     cfg.DatabasePassword,
		Host:         cfg.DatabaseHost,
		Port:         cfg.DatabasePort,
		Name:         cfg.DatabaseName,
		MaxConns:     cfg.DatabaseMaxConns,
		MinConns:     cfg.DatabaseMinConns,
		PingAttempts: 30,
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// 1. Telemetria (providers globais do otel)
	if cfg.TelemetryEnabled {
		providers, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down telemetry", zap.Error(err))
			}
		}()
	}

	// 2. Banco de dados
	pool, err := database.NewPool(ctx, databaseOptions(cfg), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// 3. Serviços
	app, err := newApp(cfg, pool, otel.Tracer(cfg.ServiceName), otel.Meter(cfg.ServiceName), logger)
	if err != nil {
		return err
	}
	defer app.close()

	// 4. Workers de reconciliação
	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.workers.Run(workerCtx); err != nil {
			logger.Error("❌ Reconciliation workers stopped", zap.Error(err))
		}
	}()

	// 5. HTTP
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, app, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info("🚀 Shop Service listening on port", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopWorkers()
	wg.Wait()
	logger.Info("✅ Server exited")
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	file := fs.String("file", "catalog.yaml", "path to the catalog file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	catalog, err := loadCatalog(*file)
	if err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, databaseOptions(cfg), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	return seedCatalog(ctx, inventory.NewInventoryRepository(pool), catalog, logger)
}
