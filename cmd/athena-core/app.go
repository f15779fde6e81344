package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/athena-core/internal/adapters/driven/ai"
	"github.com/custodia-labs/athena-core/internal/adapters/driven/gcs"
	"github.com/custodia-labs/athena-core/internal/adapters/driven/media"
	"github.com/custodia-labs/athena-core/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/athena-core/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/athena-core/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/athena-core/internal/adapters/driven/redis"
	"github.com/custodia-labs/athena-core/internal/adapters/driven/youtube"
	httpapi "github.com/custodia-labs/athena-core/internal/adapters/driving/http"
	"github.com/custodia-labs/athena-core/internal/config"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
	"github.com/custodia-labs/athena-core/internal/core/ports/driving"
	"github.com/custodia-labs/athena-core/internal/core/services"
	"github.com/custodia-labs/athena-core/internal/postprocessors"
	"github.com/custodia-labs/athena-core/internal/runtime"
)

// app holds the wired components shared by every command.
type app struct {
	db          *postgres.DB
	redisClient *redis.Client
	taskQueue   driven.TaskQueue
	lock        driven.DistributedLock
	aiServices  *runtime.Services
	artifacts   *gcs.ArtifactStore
	highlights  driving.HighlightService
	scheduler   *services.Scheduler
}

// redisPinger adapts a redis client to httpapi.Pinger.
type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	dbCfg := postgres.DefaultConfig(cfg.DatabaseURL)
	dbCfg.Logger = logger
	db, err := postgres.Connect(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.db = db
	if err := db.InitSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis (optional) =====
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redisClient = redis.NewClient(opts)
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Println("Redis connected")
	}

	// ===== Task Queue and Lock (Redis if available, otherwise PostgreSQL) =====
	if a.redisClient != nil {
		host, _ := os.Hostname()
		q, err := redisqueue.NewQueue(ctx, a.redisClient, redisqueue.Config{
			ConsumerName: fmt.Sprintf("%s-%d", host, os.Getpid()),
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create task queue: %w", err)
		}
		a.taskQueue = q
		a.lock = redisadapter.NewLock(a.redisClient)
		log.Println("Using Redis task queue and lock")
	} else {
		a.taskQueue = postgresqueue.NewQueue(db.DB)
		a.lock = postgres.NewAdvisoryLock(db)
		log.Println("Using PostgreSQL task queue and advisory lock")
	}

	// ===== AI services =====
	a.aiServices = runtime.NewServices()
	factory := ai.NewFactory()

	embedder, err := factory.CreateEmbeddingProvider(ctx, &cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	if embedder != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := a.aiServices.ValidateAndSetEmbedder(checkCtx, embedder)
		cancel()
		if err != nil {
			logger.Warn("embedding provider failed its health check, segmentation disabled",
				"provider", cfg.Embedding.Provider,
				"error", err,
			)
		}
	}

	oracle, err := factory.CreateBoundaryOracle(&cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("create boundary oracle: %w", err)
	}
	a.aiServices.SetOracle(oracle)

	status := a.aiServices.Status()
	log.Printf("AI services: embedding=%t (%s), oracle=%t (%s)",
		status.EmbeddingAvailable, status.EmbeddingModel,
		status.OracleAvailable, status.OracleModel)

	// ===== Transcripts: timedtext -> cleaning -> cache =====
	var transcripts driven.TranscriptSource = postprocessors.NewSource(
		youtube.NewTimedTextSource(youtube.TimedTextConfig{
			BaseURL:  cfg.TimedTextBaseURL,
			Language: cfg.TranscriptLang,
			Logger:   logger,
		}),
		postprocessors.DefaultPipeline(),
	)
	if a.redisClient != nil {
		transcripts = redisadapter.NewTranscriptCache(a.redisClient, transcripts, redisadapter.TranscriptCacheConfig{
			TTL:    cfg.TranscriptCacheTTL,
			Logger: logger,
		})
	}

	// ===== Search (optional) =====
	var searcher driven.VideoSearcher
	if cfg.YouTubeAPIKey != "" {
		s, err := youtube.NewSearcher(ctx, cfg.YouTubeAPIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("create youtube searcher: %w", err)
		}
		searcher = s
	} else {
		logger.Warn("YOUTUBE_API_KEY not set, highlight runs are disabled")
	}

	// ===== Rendering and publishing =====
	materializer, err := media.NewMaterializer(media.Config{
		ChunkDir:    cfg.ChunkDir,
		OverlayDir:  cfg.OverlayDir,
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		YtDlpPath:   cfg.YtDlpPath,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create materializer: %w", err)
	}

	var artifacts driven.ArtifactStore
	if cfg.GCSBucket != "" {
		store, err := gcs.NewArtifactStore(ctx, gcs.Config{Bucket: cfg.GCSBucket, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("create artifact store: %w", err)
		}
		a.artifacts = store
		artifacts = store
		log.Printf("Publishing clips to gs://%s", cfg.GCSBucket)
	}

	// ===== Services (core business logic) =====
	segmenter, err := services.NewSegmenter(services.SegmenterConfig{
		Oracle:   a.aiServices.Oracle(),
		Embedder: a.aiServices.Embedder(),
		Policy:   cfg.Policy,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create segmenter: %w", err)
	}

	orchestrator := services.NewOrchestrator(services.OrchestratorConfig{
		Transcripts:  transcripts,
		Segmenter:    segmenter,
		Materializer: materializer,
		Lock:         a.lock,
		Logger:       logger,
		Workers:      cfg.OrchestratorWorkers,
	})

	a.highlights = services.NewHighlightService(services.HighlightServiceConfig{
		Searcher:     searcher,
		Orchestrator: orchestrator,
		Segmenter:    segmenter,
		Transcripts:  transcripts,
		Segments:     postgres.NewSegmentStore(db),
		Runs:         postgres.NewRunStore(db),
		Queue:        a.taskQueue,
		Artifacts:    artifacts,
		SignedURLTTL: cfg.SignedURLTTL,
		DefaultLimit: cfg.VideoLimit,
		Logger:       logger,
	})

	if cfg.SchedulerEnabled {
		a.scheduler = services.NewScheduler(services.SchedulerConfig{
			TaskQueue: a.taskQueue,
			Lock:      a.lock,
			Logger:    logger,
			Retention: cfg.TaskRetention,
		})
	}

	ok = true
	return a, nil
}

// redisHealth returns a pinger for the health endpoint, or nil without Redis.
func (a *app) redisHealth() httpapi.Pinger {
	if a.redisClient == nil {
		return nil
	}
	return redisPinger{client: a.redisClient}
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() {
	if a.aiServices != nil {
		_ = a.aiServices.Close()
	}
	if a.artifacts != nil {
		_ = a.artifacts.Close()
	}
	if a.taskQueue != nil {
		_ = a.taskQueue.Close()
	}
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
