package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/mohammad-safakhou/askweb/config"
	"github.com/mohammad-safakhou/askweb/internal/helpers"
	"github.com/mohammad-safakhou/askweb/internal/runtime"
	"github.com/mohammad-safakhou/askweb/tools/web_cache"
	"github.com/mohammad-safakhou/askweb/tools/web_fetch"
	"github.com/mohammad-safakhou/askweb/tools/web_search"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SplitQuestion splits a compound question on ASCII and full-width
// semicolons. Parts are trimmed and empty parts dropped.
func SplitQuestion(q string) []string {
	parts := strings.FieldsFunc(q, func(r rune) bool { return r == ';' || r == '；' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type DispatcherOptions struct {
	ResultsPerEngine int
	CandidateLimit   int
	MaxWorkers       int
	OverallTimeout   time.Duration
	CrawlPolicy      config.CrawlPolicyConfig
}

// Dispatcher fans sub-questions out to every engine and downloads the best
// results of each into the page cache.
type Dispatcher struct {
	engines []web_search.Engine
	fetcher web_fetch.WebFetcher
	opts    DispatcherOptions
	logger  *zap.Logger
	metrics *runtime.Metrics
}

func NewDispatcher(engines []web_search.Engine, fetcher web_fetch.WebFetcher, opts DispatcherOptions, logger *zap.Logger, metrics *runtime.Metrics) *Dispatcher {
	if opts.ResultsPerEngine <= 0 {
		opts.ResultsPerEngine = 3
	}
	if opts.CandidateLimit < opts.ResultsPerEngine {
		opts.CandidateLimit = opts.ResultsPerEngine * 3
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{engines: engines, fetcher: fetcher, opts: opts, logger: logger, metrics: metrics}
}

// Dispatch runs one task per (question, engine) pair on a bounded pool and
// blocks until all of them finish or the overall timeout expires. Engine and
// fetch failures are logged and never stop the other tasks. The returned map
// holds every page that was written to cache.
func (d *Dispatcher) Dispatch(ctx context.Context, questions []string, cache *web_cache.Cache) (web_cache.LinkMap, bool) {
	if d.opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.OverallTimeout)
		defer cancel()
	}

	collector := web_cache.NewCollector(cache, d.logger.Named("cache"), func(web_cache.Page) { d.metrics.PageCached() })

	var g errgroup.Group
	g.SetLimit(d.opts.MaxWorkers)
	for _, q := range questions {
		q := q
		for _, engine := range d.engines {
			engine := engine
			g.Go(func() error {
				d.searchOne(ctx, engine, q, collector)
				return nil
			})
		}
	}
	_ = g.Wait()

	links := collector.Close()
	return links, len(links) > 0
}

func (d *Dispatcher) searchOne(ctx context.Context, engine web_search.Engine, q string, collector *web_cache.Collector) {
	log := d.logger.With(zap.String("engine", engine.Name()), zap.String("question", q))
	if ctx.Err() != nil {
		return
	}

	candidates, err := engine.Discover(ctx, q, d.opts.CandidateLimit)
	d.metrics.EngineRequest(engine.Name(), err)
	if err != nil {
		log.Warn("search engine request failed", zap.Error(err))
		return
	}

	saved := 0
	for _, cand := range candidates {
		if saved >= d.opts.ResultsPerEngine || ctx.Err() != nil {
			break
		}
		if !d.opts.CrawlPolicy.Permits(cand.URL) {
			log.Debug("skip link by crawl policy", zap.String("host", helpers.Host(cand.URL)))
			continue
		}
		page, err := d.fetcher.Exec(ctx, cand.URL)
		d.metrics.PageFetch(engine.Name(), err)
		if err != nil {
			log.Info("page download failed", zap.String("url", cand.URL), zap.Error(err))
			continue
		}
		if err := collector.Submit(ctx, web_cache.Page{URL: cand.URL, Title: cand.Title, Body: page.HTML}); err != nil {
			continue
		}
		saved++
		log.Debug("page downloaded", zap.String("url", cand.URL))
	}
	if saved < d.opts.ResultsPerEngine {
		log.Warn("fewer pages than expected, check network or proxy",
			zap.Int("saved", saved), zap.Int("expected", d.opts.ResultsPerEngine), zap.Int("candidates", len(candidates)))
	}
}
