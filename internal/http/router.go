// Package http is the fiber API surface: routing, auth and rate-limit
// middleware, and the JSON handlers for the /v1 endpoints.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sonar/internal/config"
	"sonar/internal/metrics"
	"sonar/internal/model"
	"sonar/internal/services"
)

// Backend is the slice of the store the HTTP layer touches directly:
// API key auth and crawl job bookkeeping. Everything else goes through
// the services.
type Backend interface {
	GetAPIKeyByRawKey(ctx context.Context, raw string) (*model.APIKey, error)
	TouchAPIKey(ctx context.Context, id string) error
	IncrementAPIKeyQuota(ctx context.Context, id string, amount int) error
	CreateCrawlJob(ctx context.Context, job *model.CrawlJob) error
	GetCrawlJob(ctx context.Context, id string) (*model.CrawlJob, error)
	Ping(ctx context.Context) error
}

// Indexer is the slice of the indexing service the handlers call.
type Indexer interface {
	Search(ctx context.Context, req *services.SearchRequest) (*services.SearchResponse, error)
	GetContents(ctx context.Context, req *services.ContentsRequest) (*services.ContentsResponse, error)
	FindSimilar(ctx context.Context, req *services.SimilarRequest) (*services.SimilarResponse, error)
}

// Answering is the grounded-answer pipeline.
type Answering interface {
	Answer(ctx context.Context, req *services.AnswerRequest) (*services.AnswerResponse, error)
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, backend Backend, idx Indexer, ans Answering, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Inject dependencies into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("backend", backend)
		c.Locals("indexing", idx)
		c.Locals("answerer", ans)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		metrics.RecordRequest(c.Method(), c.Path(), status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Redis client for rate limiting and health checks
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb = redis.NewClient(opt)
		} else if logger != nil {
			logger.Warn("invalid redis url, rate limiting disabled", "error", err)
		}
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := backend.Ping(ctx); err != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		status := "ok"
		if dbStatus != "ok" || redisStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status": status,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	authMw := authMiddleware(cfg, backend)
	var rateMw fiber.Handler
	if rdb != nil {
		rateMw = rateLimitMiddleware(cfg, rdb)
	} else {
		rateMw = func(c *fiber.Ctx) error { return c.Next() }
	}

	v1 := app.Group("/v1", authMw, rateMw)
	registerV1Routes(v1)

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

func registerV1Routes(group fiber.Router) {
	group.Post("/search", searchHandler)
	group.Post("/contents", contentsHandler)
	group.Post("/findsimilar", findSimilarHandler)
	group.Post("/crawl", crawlHandler)
	group.Get("/crawl/status/:job_id", crawlStatusHandler)
	group.Post("/answer", answerHandler)
}
