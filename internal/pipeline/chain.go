package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/askweb/internal/runtime"
	"github.com/mohammad-safakhou/askweb/internal/store"
	"github.com/mohammad-safakhou/askweb/provider/models"
	"github.com/mohammad-safakhou/askweb/tools/corpus"
	"github.com/mohammad-safakhou/askweb/tools/web_cache"
	"go.uber.org/zap"
)

var ErrEmptyQuestion = errors.New("question is empty")

// LLM is the part of the provider the chain talks to.
type LLM interface {
	ChatStream(ctx context.Context, messages []models.Message) (<-chan models.StreamChunk, error)
	Complete(ctx context.Context, messages []models.Message) (string, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]corpus.Chunk, corpus.Stats, error)
}

// RunRecorder persists a summary of each run. It is optional.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.Run) (store.Run, error)
}

// Answer is the result of one pipeline run. Stream delivers the model's
// answer; Links lists the pages the answer may draw on.
type Answer struct {
	Stream    <-chan models.StreamChunk
	Links     web_cache.LinkMap
	Found     bool
	Prompt    string
	Questions []string
	Chunks    []corpus.Chunk
}

type ChainOptions struct {
	// MaxHistory bounds how many past messages are forwarded with the prompt.
	MaxHistory      int
	CondenseTimeout time.Duration
}

// Chain runs search, retrieval and answer composition for one question at a
// time. The cache directory always reflects the most recent search only.
type Chain struct {
	cache      *web_cache.Cache
	dispatcher *Dispatcher
	retriever  Retriever
	llm        LLM
	recorder   RunRecorder
	opts       ChainOptions
	logger     *zap.Logger
	metrics    *runtime.Metrics

	mu      sync.Mutex
	lastRun time.Time
}

func NewChain(cache *web_cache.Cache, dispatcher *Dispatcher, retriever Retriever, llm LLM, recorder RunRecorder, opts ChainOptions, logger *zap.Logger, metrics *runtime.Metrics) *Chain {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 10
	}
	if opts.CondenseTimeout <= 0 {
		opts.CondenseTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		cache:      cache,
		dispatcher: dispatcher,
		retriever:  retriever,
		llm:        llm,
		recorder:   recorder,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run answers question. Search and retrieval failures only shrink the
// context; a language-model failure is returned to the caller.
func (c *Chain) Run(ctx context.Context, question string, history []models.Message) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	started := time.Now()

	answer, run := c.search(ctx, question, history)

	messages := append(trimHistory(history, c.opts.MaxHistory), models.Message{Role: models.RoleUser, Content: answer.Prompt})
	stream, err := c.llm.ChatStream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}
	answer.Stream = stream

	run.Duration = time.Since(started)
	c.record(ctx, run)
	return answer, nil
}

// search holds the run lock for cache reset, dispatch and retrieval.
func (c *Chain) search(ctx context.Context, question string, history []models.Message) (*Answer, store.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.metrics.SearchStarted()()
	c.lastRun = time.Now()

	if err := c.cache.Reset(); err != nil {
		c.logger.Warn("cache reset failed", zap.Error(err))
	}

	whole := c.extractQuestion(ctx, question, history)
	questions := SplitQuestion(whole)

	t0 := time.Now()
	links, found := c.dispatcher.Dispatch(ctx, questions, c.cache)
	c.metrics.ObserveStage("search", time.Since(t0))
	c.logger.Info("search finished", zap.Strings("questions", questions), zap.Int("links", len(links)))

	var (
		chunks []corpus.Chunk
		stats  corpus.Stats
	)
	if c.cache.HasPages() {
		t1 := time.Now()
		var err error
		chunks, stats, err = c.retriever.Retrieve(ctx, whole)
		c.metrics.ObserveStage("retrieve", time.Since(t1))
		if err != nil {
			c.logger.Warn("retrieval failed", zap.Error(err))
			chunks = nil
		}
	}
	c.metrics.ChunksRetrieved(len(chunks))

	answer := &Answer{
		Links:     links,
		Found:     found,
		Prompt:    ComposePrompt(question, FormatDocs(chunks)),
		Questions: questions,
		Chunks:    chunks,
	}
	run := store.Run{
		Question:     question,
		SubQuestions: questions,
		Links:        links,
		DocsFound:    len(chunks) > 0,
		Documents:    stats.Documents,
		Chunks:       len(chunks),
	}
	if sub, ok := runtime.SubjectFromContext(ctx); ok {
		run.Subject = sub
	}
	return answer, run
}

// extractQuestion turns a follow-up into a standalone search query using the
// conversation. Without history, or when the model fails, the raw question is used.
func (c *Chain) extractQuestion(ctx context.Context, question string, history []models.Message) string {
	if len(history) == 0 || c.llm == nil {
		return question
	}
	cctx, cancel := context.WithTimeout(ctx, c.opts.CondenseTimeout)
	defer cancel()
	out, err := c.llm.Complete(cctx, condenseMessages(question, trimHistory(history, c.opts.MaxHistory)))
	if err != nil {
		c.logger.Warn("question extraction failed, using raw question", zap.Error(err))
		return question
	}
	if q := cleanQuery(out); q != "" {
		return q
	}
	return question
}

func (c *Chain) record(ctx context.Context, run store.Run) {
	if c.recorder == nil {
		return
	}
	if _, err := c.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("record search run failed", zap.Error(err))
	}
}

// PurgeIdleCache empties the cache directory when no search has run for
// maxIdle. It reports whether anything was removed.
func (c *Chain) PurgeIdleCache(maxIdle time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.lastRun
	if mod := c.cache.LastModified(); mod.After(last) {
		last = mod
	}
	if last.IsZero() || time.Since(last) < maxIdle {
		return false, nil
	}
	if _, err := os.Stat(c.cache.Dir()); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := c.cache.Reset(); err != nil {
		return false, err
	}
	return true, nil
}

// ConversationalHistory keeps the non-empty user and assistant turns of
// history. System and tool messages from callers are never forwarded.
func ConversationalHistory(history []models.Message) []models.Message {
	out := make([]models.Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) != "" {
			out = append(out, m)
		}
	}
	return out
}

func trimHistory(history []models.Message, max int) []models.Message {
	out := ConversationalHistory(history)
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
