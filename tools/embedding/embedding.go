package embedding

import (
	"context"
	"fmt"
)

// Embedder is the part of the LLM provider the embedding layer needs.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type Embedding struct {
	provider  Embedder
	batchSize int
}

const DefaultBatchSize = 64

func NewEmbedding(provider Embedder, batchSize int) *Embedding {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedding{
		provider:  provider,
		batchSize: batchSize,
	}
}

// EmbedMany embeds texts in batches and returns one vector per text, in order.
func (e *Embedding) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.provider.CreateEmbedding(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors", start, end, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
