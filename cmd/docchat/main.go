package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/blob"
	"github.com/kailas-cloud/docchat/internal/chunker"
	"github.com/kailas-cloud/docchat/internal/config"
	dbRedis "github.com/kailas-cloud/docchat/internal/db/redis"
	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/extract"
	logpkg "github.com/kailas-cloud/docchat/internal/logger"
	"github.com/kailas-cloud/docchat/internal/metrics"
	"github.com/kailas-cloud/docchat/internal/repository/embcache"
	"github.com/kailas-cloud/docchat/internal/repository/metadata"
	"github.com/kailas-cloud/docchat/internal/repository/queue"
	"github.com/kailas-cloud/docchat/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/docchat/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/docchat/internal/transport/openai"
	"github.com/kailas-cloud/docchat/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/docchat/internal/usecase/health"
	"github.com/kailas-cloud/docchat/internal/usecase/ingest"
	"github.com/kailas-cloud/docchat/internal/version"
	"github.com/kailas-cloud/docchat/internal/worker"
)

func main() {
	// .env is optional; real deployments set variables directly
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			runMigrations(cfg, logger)
			return
		case "reindex":
			runReindex(cfg, logger)
			return
		}
	}

	runServer(env, cfg, logger)
}

// runMigrations applies pending metadata schema migrations and exits.
func runMigrations(cfg config.Config, logger *zap.Logger) {
	meta, err := metadata.Open(cfg.Metadata.Path)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer meta.Close()

	applied, err := meta.Migrate(context.Background())
	if err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	logger.Info("Migrations applied",
		zap.Int("applied", applied),
		zap.String("path", cfg.Metadata.Path))
}

// runReindex rebuilds the chunk index with the configured dimensionality and
// HNSW parameters and drops cached embeddings, which reference the old model.
func runReindex(cfg config.Config, logger *zap.Logger) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	vectors := vector.New(store, cfg.Embedding.Dimensions, vector.HNSWConfig{
		M:           cfg.Ingest.HNSWM,
		EFConstruct: cfg.Ingest.HNSWEFConstruct,
	})
	if err := vectors.RecreateIndex(ctx); err != nil {
		logger.Fatal("Reindex failed", zap.Error(err))
	}

	flushed, err := buildEmbedder(cfg, store, logger).Flush(ctx)
	if err != nil {
		logger.Fatal("Embedding cache flush failed", zap.Error(err))
	}
	logger.Info("Index recreated",
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("cache_entries_flushed", flushed))
}

func runServer(env string, cfg config.Config, logger *zap.Logger) {
	logger.Info("Starting docchat API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	meta, err := metadata.Open(cfg.Metadata.Path)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer meta.Close()

	blobs, err := blob.New(cfg.Blob.Dir)
	if err != nil {
		logger.Fatal("Failed to create blob store", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterProviderMetrics()
	metrics.RegisterIngestMetrics()
	metrics.RegisterHTTPMetrics()

	embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Int("max_in_flight", cfg.Embedding.MaxInFlight),
	)

	llm := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		Provider:   "openai",
		MaxRetries: cfg.LLM.MaxRetries,
		Logger:     logger,
	})

	vectors := vector.New(store, cfg.Embedding.Dimensions, vector.HNSWConfig{
		M:           cfg.Ingest.HNSWM,
		EFConstruct: cfg.Ingest.HNSWEFConstruct,
	})
	jobs := queue.New(store)

	splitter, err := chunker.NewSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}

	ingestSvc := ingest.New(meta, blobs, extract.NewExtractor(), splitter, embedder, vectors)
	chatSvc := chat.New(embedder, vectors, llm, cfg.Chat.TopK, cfg.Chat.CannotAnswerMessage)
	healthSvc := healthuc.New(store, meta, newEmbeddingHealthChecker(embedder))

	server := chiTransport.NewServer(
		meta, blobs, jobs, chatSvc, healthSvc, cfg.HTTP.MaxUploadBytes, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	r.Route("/api/v1", server.Routes)
	// health and metrics also at root for probes and scrapers
	r.Get("/healthz", server.Liveness)
	r.Get("/readyz", server.Readiness)
	r.Get("/metrics", server.Metrics)

	pool := worker.New(jobs, ingestSvc, cfg.Ingest.Workers,
		time.Duration(cfg.Ingest.PollTimeoutSec)*time.Second, logger)
	pool.Start(logpkg.ContextWithLogger(ctx, logger))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	pool.Stop()
	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached.
func buildEmbedder(cfg config.Config, store *dbRedis.Store, logger *zap.Logger) *embcache.CachedEmbedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:         cfg.Embedding.APIKey,
		BaseURL:        cfg.Embedding.BaseURL,
		Model:          cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		Provider:       "openai",
		MaxBatchSize:   cfg.Embedding.MaxBatchSize,
		MaxInFlight:    cfg.Embedding.MaxInFlight,
		MaxRetries:     cfg.Embedding.MaxRetries,
		RequestsPerSec: cfg.Embedding.RequestsPerSec,
		Logger:         logger,
	})

	ttl := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
	return embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger)
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
