package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/askweb/config"
	"github.com/mohammad-safakhou/askweb/internal/pipeline"
	"github.com/mohammad-safakhou/askweb/internal/runtime"
	"github.com/mohammad-safakhou/askweb/internal/store"
	"github.com/mohammad-safakhou/askweb/provider"
	"github.com/mohammad-safakhou/askweb/repository/redis_repository"
	"github.com/mohammad-safakhou/askweb/session"
	"github.com/mohammad-safakhou/askweb/tools/corpus"
	"github.com/mohammad-safakhou/askweb/tools/embedding"
	"github.com/mohammad-safakhou/askweb/tools/web_cache"
	"github.com/mohammad-safakhou/askweb/tools/web_fetch"
	"github.com/mohammad-safakhou/askweb/tools/web_search"
)

// App holds every long-lived dependency built from the configuration.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *runtime.Metrics
	Cache   *web_cache.Cache
	Chain   *pipeline.Chain
	History session.Store
	Store   *store.Store
	Redis   *redis.Client
}

// NewApp wires the pipeline. Redis and Postgres are only opened when the
// configuration asks for them.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, Metrics: runtime.NewMetrics()}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: cfg.Search.MaxWorkers,
		IdleConnTimeout:     90 * time.Second,
	}}
	userAgent := cfg.Search.UserAgent
	engines := make([]web_search.Engine, 0, len(cfg.Search.Engines))
	for _, name := range cfg.Search.Engines {
		apiKey := ""
		switch web_search.Provider(name) {
		case web_search.BraveProvider:
			apiKey = cfg.Search.BraveAPIKey
		case web_search.SerperProvider:
			apiKey = cfg.Search.SerperAPIKey
		}
		engine, err := web_search.NewEngine(web_search.Provider(name), web_search.Options{
			Client:      client,
			UserAgent:   userAgent,
			PageTimeout: cfg.Search.PageTimeout,
			APIKey:      apiKey,
			Logger:      logger.Named("engine." + name),
		})
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", name, err)
		}
		engines = append(engines, engine)
	}

	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Search.Fetcher), web_fetch.Options{
		Client:    client,
		Timeout:   cfg.Search.DetailTimeout,
		MaxBytes:  cfg.Search.MaxBodyBytes,
		UserAgent: userAgent,
	})
	if err != nil {
		return nil, err
	}

	dispatcher := pipeline.NewDispatcher(engines, fetcher, pipeline.DispatcherOptions{
		ResultsPerEngine: cfg.Search.ResultsPerEngine,
		CandidateLimit:   cfg.Search.CandidateLimit,
		MaxWorkers:       cfg.Search.MaxWorkers,
		OverallTimeout:   cfg.Search.OverallTimeout,
		CrawlPolicy:      cfg.Search.CrawlPolicy,
	}, logger.Named("dispatcher"), app.Metrics)

	app.Cache = web_cache.New(cfg.Cache.Dir, logger.Named("cache"))

	var embedder corpus.Embedder
	if corpus.Mode(cfg.Retrieval.Mode) != corpus.KeywordMode {
		embedder = embedding.NewEmbedding(llm, cfg.Retrieval.EmbedBatch)
	}
	retriever := corpus.NewRetriever(corpus.Options{
		Dir:          cfg.Cache.Dir,
		Mode:         corpus.Mode(cfg.Retrieval.Mode),
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		TopK:         cfg.Retrieval.TopK,
	}, embedder, logger.Named("corpus"))

	if cfg.History.Store == string(session.RedisStore) {
		app.Redis, err = redis_repository.Conn(ctx, cfg.Storage.Redis, logger.Named("redis"))
		if err != nil {
			return nil, err
		}
	}
	app.History, err = session.NewStore(session.StoreType(cfg.History.Store), app.Redis, cfg.History.MaxMessages, cfg.History.TTL)
	if err != nil {
		app.Close()
		return nil, err
	}

	var recorder pipeline.RunRecorder
	if cfg.Storage.Postgres.Enabled() {
		app.Store, err = store.New(ctx, cfg.Storage.Postgres)
		if err != nil {
			app.Close()
			return nil, err
		}
		recorder = app.Store
	}

	app.Chain = pipeline.NewChain(app.Cache, dispatcher, retriever, llm, recorder,
		pipeline.ChainOptions{MaxHistory: cfg.History.MaxMessages},
		logger.Named("chain"), app.Metrics)
	return app, nil
}

// Jobs returns the maintenance jobs for the scheduler.
func (a *App) Jobs() []Job {
	cfg := a.Config
	jobs := []Job{{
		Name: "cache-janitor",
		Spec: cfg.Scheduler.JanitorSpec,
		Run: func(ctx context.Context) error {
			purged, err := a.Chain.PurgeIdleCache(cfg.Cache.MaxIdle)
			if purged {
				a.Logger.Info("idle search cache removed", zap.String("dir", a.Cache.Dir()))
			}
			return err
		},
	}}
	if sw, ok := a.History.(session.Sweeper); ok {
		jobs = append(jobs, Job{
			Name: "history-sweep",
			Spec: cfg.Scheduler.HistorySweep,
			Run: func(ctx context.Context) error {
				if n := sw.Sweep(time.Now()); n > 0 {
					a.Logger.Info("expired chat sessions removed", zap.Int("sessions", n))
				}
				return nil
			},
		})
	}
	if a.Store != nil {
		jobs = append(jobs, Job{
			Name: "run-log-prune",
			Spec: cfg.Scheduler.PruneSpec,
			Run: func(ctx context.Context) error {
				n, err := a.Store.PruneRunsBefore(ctx, time.Now().Add(-cfg.Scheduler.RunRetention))
				if n > 0 {
					a.Logger.Info("old search runs pruned", zap.Int64("rows", n))
				}
				return err
			},
		})
	}
	return jobs
}

func (a *App) Close() {
	if a.Store != nil {
		_ = a.Store.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
