package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/callveil/callveil/internal/config"
	"github.com/callveil/callveil/internal/ingest"
	"github.com/callveil/callveil/internal/llm"
	"github.com/callveil/callveil/internal/logger"
	"github.com/callveil/callveil/internal/ner"
	"github.com/callveil/callveil/internal/pipeline"
	"github.com/callveil/callveil/internal/redact"
	"github.com/callveil/callveil/internal/store"
	"github.com/callveil/callveil/internal/vaultstore"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input call file (JSON, CSV, or Parquet); overrides config")
		outputFile = flag.String("output", "", "Output analysis file; overrides config")
	)
	flag.Parse()

	// Local .env carries the API key in development
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *inputFile != "" {
		cfg.Pipeline.InputFile = *inputFile
	}
	if *outputFile != "" {
		cfg.Pipeline.OutputFile = *outputFile
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting CallVeil batch pipeline",
		zap.String("input", cfg.Pipeline.InputFile),
		zap.String("output", cfg.Pipeline.OutputFile))

	if _, err := os.Stat(cfg.Pipeline.InputFile); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", zap.String("file", cfg.Pipeline.InputFile))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

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

	client, err := llm.NewClient(&llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKeyEnv:      cfg.LLM.APIKeyEnv,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryBaseDelay: cfg.LLM.RetryBaseDelay,
		RetryMaxDelay:  cfg.LLM.RetryMaxDelay,
		RequestsPerMin: cfg.LLM.RequestsPerMin,
	}, log.WithComponent("llm").Logger)
	if err != nil {
		log.Fatal("Failed to initialize generation client", zap.Error(err))
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

	var analysisStore *store.Store
	if cfg.Database.Enabled {
		analysisStore, err = store.NewStore(&store.Config{
			DatabaseURL:     cfg.Database.DatabaseURL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, log.WithComponent("store").Logger)
		if err != nil {
			log.Fatal("Failed to initialize analysis store", zap.Error(err))
		}
		defer analysisStore.Close()
	}

	loader := ingest.NewLoader(log.WithComponent("ingest").Logger)

	p := pipeline.New(&pipeline.Config{
		InputFile:      cfg.Pipeline.InputFile,
		OutputFile:     cfg.Pipeline.OutputFile,
		CheckpointFile: cfg.Pipeline.CheckpointFile,
		DeadLetterFile: cfg.Pipeline.DeadLetterFile,
		Concurrency:    cfg.Pipeline.Concurrency,
		PersistVaults:  cfg.Pipeline.PersistVaults,
		StoreResults:   cfg.Pipeline.StoreResults,
	}, engine, client, loader, vaults, analysisStore, nil, log.WithComponent("pipeline").Logger)

	result, err := p.Run(ctx)
	if err != nil {
		log.Fatal("Pipeline failed", zap.Error(err))
	}

	log.Info("Batch pipeline completed",
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration))
}
