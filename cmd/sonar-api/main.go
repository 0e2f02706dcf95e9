package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sonar/internal/bootstrap"
	"sonar/internal/config"
	"sonar/internal/crawler"
	"sonar/internal/embedder"
	server "sonar/internal/http"
	"sonar/internal/jobs"
	"sonar/internal/llm"
	"sonar/internal/migrate"
	"sonar/internal/services"
	"sonar/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	role := flag.String("role", "all", "process role: api|worker|all")
	createKey := flag.String("create-api-key", "", "mint an API key with this name, print it, and exit")
	flag.Parse()

	cfg := config.Load(*configPath)
	logger := newLogger(cfg.Logging.Level)

	// Run migrations on a short-lived connection
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()

	if *createKey != "" {
		raw, _, err := st.CreateAPIKey(ctx, *createKey, 0, 0)
		if err != nil {
			log.Fatalf("create api key failed: %v", err)
		}
		fmt.Println(raw)
		return
	}

	if cfg.Auth.Enabled {
		if err := bootstrap.Run(ctx, st, logger); err != nil {
			log.Fatalf("bootstrap failed: %v", err)
		}
	}

	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = cfg.Embedding.APIKey
	}
	gemini := llm.New(apiKey)
	emb := embedder.New(gemini, embedder.Config{
		Model:       cfg.Embedding.Model,
		Dimension:   cfg.Embedding.Dimension,
		BatchSize:   cfg.Embedding.BatchSize,
		BatchDelay:  time.Duration(cfg.Embedding.BatchDelayMs) * time.Millisecond,
		MaxAttempts: cfg.Embedding.MaxAttempts,
	})

	cr, err := crawler.New(crawler.Config{
		MaxConcurrent: cfg.Crawler.MaxConcurrent,
		Timeout:       time.Duration(cfg.Crawler.TimeoutMs) * time.Millisecond,
		UserAgent:     cfg.Crawler.UserAgent,
		BrowserURL:    cfg.Crawler.BrowserURL,
	})
	if err != nil {
		log.Fatalf("browser init failed: %v", err)
	}
	defer cr.Close()

	idx := services.NewIndexing(cfg, st, cr, emb, gemini, logger)
	ans := services.NewAnswerer(cfg, idx, gemini, logger)
	runner := jobs.NewRunner(cfg, st, idx, logger)

	switch *role {
	case "api":
		runServer(ctx, cfg, st, idx, ans, logger)
	case "worker":
		runner.Start(ctx)
	case "all":
		go runner.Start(ctx)
		runServer(ctx, cfg, st, idx, ans, logger)
	default:
		log.Fatalf("invalid role: %s (expected api|worker|all)", *role)
	}
}

func runServer(ctx context.Context, cfg *config.Config, st *store.Store, idx *services.Indexing, ans *services.Answerer, logger *slog.Logger) {
	s := server.NewServer(cfg, st, idx, ans, logger)

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	if err := s.Listen(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
