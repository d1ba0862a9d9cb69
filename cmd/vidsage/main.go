package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/vidsage/vidsage/internal/ai"
	"github.com/vidsage/vidsage/internal/answer"
	"github.com/vidsage/vidsage/internal/cache"
	"github.com/vidsage/vidsage/internal/config"
	"github.com/vidsage/vidsage/internal/embedcache"
	"github.com/vidsage/vidsage/internal/handler"
	"github.com/vidsage/vidsage/internal/index"
	"github.com/vidsage/vidsage/internal/job"
	"github.com/vidsage/vidsage/internal/middleware"
	"github.com/vidsage/vidsage/internal/ratelimit"
	"github.com/vidsage/vidsage/internal/schedule"
	"github.com/vidsage/vidsage/internal/security"
	"github.com/vidsage/vidsage/internal/service"
	"github.com/vidsage/vidsage/internal/session"
	"github.com/vidsage/vidsage/internal/summarize"
	"github.com/vidsage/vidsage/internal/transcript"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "vidsage",
		Short: "vidsage video chat backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run vidsage server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	rootLogger := logutil.GetLogger(context.Background())
	rootLogger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("embed_provider", cfg.Embed.Provider),
		zap.String("cache_store", cfg.Cache.Store.Type),
	)

	chatProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedProvider, err := ai.NewProvider(cfg.Embed.Provider, cfg.Embed)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder := embedcache.WrapLRU(
		ai.NewEmbedder(embedProvider, cfg.Embed.Model),
		cfg.Embed.CacheSize,
		time.Duration(cfg.Embed.CacheTTLSeconds)*time.Second,
	)

	summaryGen, err := ai.NewTaskGenerator(chatProvider, ai.TaskSummary, ai.GenerateOptions{Temperature: 0.3})
	if err != nil {
		return fmt.Errorf("init summary generator: %w", err)
	}
	qaGen, err := ai.NewTaskGenerator(chatProvider, ai.TaskQA, ai.GenerateOptions{Temperature: 0.2})
	if err != nil {
		return fmt.Errorf("init qa generator: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Limits.RequestsPerMinute,
		MaxTokensPerMinute:   cfg.Limits.TokensPerMinute,
		MinDelay:             time.Duration(cfg.Limits.MinDelayMs) * time.Millisecond,
		MaxDelay:             time.Duration(cfg.Limits.MaxDelayMs) * time.Millisecond,
	})

	store, err := cache.NewStore(cfg.Cache.Store)
	if err != nil {
		return fmt.Errorf("init cache store: %w", err)
	}
	contentCache := cache.New(store,
		time.Duration(cfg.Cache.RawTTLSeconds)*time.Second,
		time.Duration(cfg.Cache.IndexTTLSeconds)*time.Second,
		time.Duration(cfg.Cache.DerivedTTLSeconds)*time.Second,
	)

	var chunkStore *index.ChunkStore
	if cfg.ChunkStore.Enable {
		chunkStore, err = index.OpenChunkStore(cfg.ChunkStore.DSN)
		if err != nil {
			return fmt.Errorf("init chunk store: %w", err)
		}
		defer chunkStore.Close()
	}

	gate := security.NewGate(cfg.Security.RequestsPerMinute)
	sessions := session.NewManager(cfg.Sessions.MaxSessions, time.Duration(cfg.Sessions.TTLSeconds)*time.Second)

	svc := service.New(service.Options{
		Gate:       gate,
		Provider:   transcript.NewHTTPProvider(cfg.Limits.MaxTranscriptChars),
		Cache:      contentCache,
		Summarizer: summarize.New(summaryGen, limiter, contentCache),
		Builder:    index.NewBuilder(embedder, cfg.Split.ChunkSize, cfg.Split.ChunkOverlap),
		ChunkStore: chunkStore,
		Sessions:   sessions,
		Answerer:   answer.New(gate, qaGen, limiter, cfg.Answer.RelevanceThreshold),
		Limiter:    limiter,
	})

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewUsageStatsJob(limiter, sessions), "*/5 * * * *"); err != nil {
		return err
	}
	if chunkStore != nil {
		if err := scheduler.AddJob(job.NewChunkCleanupJob(chunkStore, 7*24*time.Hour), "30 3 * * *"); err != nil {
			return err
		}
	}

	deps := handler.RouterDeps{
		Videos:   handler.NewVideoHandler(svc),
		Sessions: handler.NewSessionHandler(svc),
		Ops:      handler.NewOpsHandler(svc),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	rootLogger.Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	rootLogger.Info("server stopping...")
	return nil
}
