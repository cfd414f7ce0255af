package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

type Mode string

const (
	VectorMode  Mode = "vector"
	HybridMode  Mode = "hybrid"
	KeywordMode Mode = "keyword"
)

// Embedder turns texts into vectors, one per text and in order.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Dir          string
	Mode         Mode
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

// Stats describes the corpus a retrieval ran over.
type Stats struct {
	Documents int
	Chunks    int
}

// Retriever rebuilds an index from the cache directory on every call, so the
// answer reflects exactly the pages of the latest search.
type Retriever struct {
	opts     Options
	embedder Embedder
	logger   *zap.Logger
}

var ErrEmptyCorpus = errors.New("corpus: no documents")

func NewRetriever(opts Options, embedder Embedder, logger *zap.Logger) *Retriever {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 2000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	if opts.Mode == "" {
		opts.Mode = VectorMode
	}
	if embedder == nil {
		opts.Mode = KeywordMode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{opts: opts, embedder: embedder, logger: logger}
}

func (r *Retriever) Mode() Mode { return r.opts.Mode }

// Retrieve returns the chunks most relevant to query, best first. An empty
// corpus gives ErrEmptyCorpus; callers treat any error as "no context".
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Chunk, Stats, error) {
	docs := LoadDir(r.opts.Dir, r.logger)
	chunks := ChunkDocuments(docs, r.opts.ChunkSize, r.opts.ChunkOverlap)
	stats := Stats{Documents: len(docs), Chunks: len(chunks)}
	if len(chunks) == 0 {
		return nil, stats, ErrEmptyCorpus
	}

	var hits []hit
	var err error
	switch r.opts.Mode {
	case KeywordMode:
		hits, err = r.keywordHits(chunks, query, r.opts.TopK)
	case HybridMode:
		hits, err = r.hybridHits(ctx, chunks, query)
	default:
		hits, err = r.vectorHits(ctx, chunks, query)
	}
	if err != nil {
		return nil, stats, err
	}

	out := make([]Chunk, 0, len(hits))
	for _, h := range hits {
		c := chunks[h.idx]
		c.Score = h.score
		out = append(out, c)
	}
	return out, stats, nil
}

func (r *Retriever) vectorHits(ctx context.Context, chunks []Chunk, query string) ([]hit, error) {
	texts := make([]string, len(chunks)+1)
	for i, c := range chunks {
		texts[i] = c.Text
	}
	texts[len(chunks)] = query
	vecs, err := r.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d texts", len(vecs), len(texts))
	}
	idx, err := newVectorIndex(vecs[:len(chunks)])
	if err != nil {
		return nil, err
	}
	return idx.search(vecs[len(chunks)], r.opts.TopK)
}

func (r *Retriever) keywordHits(chunks []Chunk, query string, size int) ([]hit, error) {
	idx, err := newKeywordIndex(chunks)
	if err != nil {
		return nil, fmt.Errorf("keyword index: %w", err)
	}
	defer idx.Close()
	return idx.search(query, size)
}

func (r *Retriever) hybridHits(ctx context.Context, chunks []Chunk, query string) ([]hit, error) {
	keyword, kerr := r.keywordHits(chunks, query, r.opts.TopK*3)
	if kerr != nil {
		r.logger.Warn("keyword search failed", zap.Error(kerr))
	}
	vector, verr := r.vectorHits(ctx, chunks, query)
	if verr != nil {
		r.logger.Warn("vector search failed", zap.Error(verr))
	}
	if kerr != nil && verr != nil {
		return nil, errors.Join(kerr, verr)
	}
	return fuseRRF(r.opts.TopK, vector, keyword), nil
}

func sortHits(h []hit) {
	sort.SliceStable(h, func(i, j int) bool { return h[i].score > h[j].score })
}
