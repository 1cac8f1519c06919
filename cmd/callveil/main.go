package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/callveil/callveil/internal/config"
	"github.com/callveil/callveil/internal/logger"
	"github.com/callveil/callveil/internal/ner"
	"github.com/callveil/callveil/internal/redact"
	"github.com/callveil/callveil/internal/server"
	"github.com/callveil/callveil/internal/vaultstore"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("CallVeil %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting CallVeil",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// The recognizer is required; startup fails without a working backend.
	recognizer, err := ner.NewModelRecognizer(ner.ModelConfig{
		ModelName:    cfg.NER.ModelName,
		ModelPath:    cfg.NER.ModelPath,
		VocabPath:    cfg.NER.VocabPath,
		LabelsPath:   cfg.NER.LabelsPath,
		MaxLength:    cfg.NER.MaxLength,
		ModelTimeout: cfg.NER.ModelTimeout,
	}, log.WithComponent("ner").Logger)
	if err != nil {
		log.Fatal("Failed to initialize entity recognizer", zap.Error(err))
	}
	defer recognizer.Close()

	engine, err := redact.New(recognizer, log.WithComponent("redact").Logger)
	if err != nil {
		log.Fatal("Failed to initialize redaction engine", zap.Error(err))
	}

	var vaults *vaultstore.Store
	if cfg.VaultStore.Enabled {
		vaults, err = vaultstore.New(&vaultstore.Config{
			RedisURL:       cfg.VaultStore.RedisURL,
			KeyPrefix:      cfg.VaultStore.KeyPrefix,
			DefaultTTL:     cfg.VaultStore.DefaultTTL,
			MaxConnections: cfg.VaultStore.MaxConnections,
			MinIdleConns:   cfg.VaultStore.MinIdleConns,
		}, log.WithComponent("vaultstore").Logger)
		if err != nil {
			log.Fatal("Failed to initialize vault store", zap.Error(err))
		}
		defer vaults.Close()
	}

	srv, err := server.New(cfg, log, engine, vaults)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
