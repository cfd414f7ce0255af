package web_cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LinkMap maps a page URL (without fragment) to its display title.
type LinkMap map[string]string

// Page is one downloaded document handed to the collector.
type Page struct {
	URL   string
	Title string
	Body  string
}

type submission struct {
	page  Page
	reply chan error
}

// Collector serializes every cache write and link-map update through one
// goroutine, which is the only owner of the LinkMap.
type Collector struct {
	cache     *Cache
	logger    *zap.Logger
	in        chan submission
	done      chan struct{}
	links     LinkMap
	closeOnce sync.Once
	onSaved   func(Page)
}

// NewCollector starts the aggregator goroutine. onSaved, when non-nil, runs on
// that goroutine after each successful write.
func NewCollector(cache *Cache, logger *zap.Logger, onSaved func(Page)) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		cache:   cache,
		logger:  logger,
		in:      make(chan submission),
		done:    make(chan struct{}),
		links:   LinkMap{},
		onSaved: onSaved,
	}
	go c.loop()
	return c
}

func (c *Collector) loop() {
	defer close(c.done)
	for s := range c.in {
		_, err := c.cache.Write(s.page.Title, s.page.Body)
		if err == nil {
			// last write wins for a URL seen twice
			c.links[s.page.URL] = s.page.Title
			if c.onSaved != nil {
				c.onSaved(s.page)
			}
		} else {
			c.logger.Warn("cache write failed", zap.String("url", s.page.URL), zap.Error(err))
		}
		s.reply <- err
	}
}

// Submit writes p and records it. It returns once the page is on disk, or
// with ctx's error if the caller gives up first.
func (c *Collector) Submit(ctx context.Context, p Page) error {
	s := submission{page: p, reply: make(chan error, 1)}
	select {
	case c.in <- s:
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-s.reply
}

// Close stops the collector and returns the final link map. No Submit may be
// in flight or follow.
func (c *Collector) Close() LinkMap {
	c.closeOnce.Do(func() { close(c.in) })
	<-c.done
	return c.links
}
