package corpus

import (
	"fmt"
	"math"
	"strconv"

	"github.com/blevesearch/bleve"
	"github.com/coder/hnsw"
)

// exactScanLimit is the corpus size up to which search scans every vector.
// Larger corpora go through the HNSW graph and only its candidates are re-ranked.
const exactScanLimit = 4096

// vectorIndex holds normalized chunk embeddings, with an HNSW graph over them
// once the corpus outgrows exactScanLimit.
type vectorIndex struct {
	vectors [][]float32
	graph   *hnsw.Graph[int]
	dims    int
}

func newVectorIndex(vectors [][]float32) (*vectorIndex, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("vector index: no vectors")
	}
	dims := len(vectors[0])
	norm := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dims || dims == 0 {
			return nil, fmt.Errorf("vector index: dimension mismatch at %d: %d vs %d", i, len(v), dims)
		}
		norm[i] = normalized(v)
	}
	idx := &vectorIndex{vectors: norm, dims: dims}
	if len(norm) <= exactScanLimit {
		return idx, nil
	}

	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	g.Ml = 0.25
	nodes := make([]hnsw.Node[int], 0, len(norm))
	for i, v := range norm {
		nodes = append(nodes, hnsw.MakeNode(i, v))
	}
	g.Add(nodes...)
	idx.graph = g
	return idx, nil
}

type hit struct {
	idx   int
	score float64
}

// search returns up to k chunk positions, nearest first, scored by cosine
// similarity.
func (v *vectorIndex) search(query []float32, k int) ([]hit, error) {
	if len(query) != v.dims {
		return nil, fmt.Errorf("vector index: query has %d dimensions, index %d", len(query), v.dims)
	}
	q := normalized(query)

	var candidates []int
	if v.graph == nil {
		candidates = make([]int, len(v.vectors))
		for i := range candidates {
			candidates[i] = i
		}
	} else {
		n := max(4*k, v.graph.EfSearch)
		for _, node := range v.graph.Search(q, n) {
			candidates = append(candidates, node.Key)
		}
	}

	out := make([]hit, 0, len(candidates))
	for _, i := range candidates {
		out = append(out, hit{idx: i, score: dot(q, v.vectors[i])})
	}
	sortHits(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// keywordIndex is a throwaway bleve index used for BM25 matching.
type keywordIndex struct {
	index bleve.Index
}

type keywordDoc struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func newKeywordIndex(chunks []Chunk) (*keywordIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	batch := index.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(strconv.Itoa(i), keywordDoc{Title: c.Title, Text: c.Text}); err != nil {
			_ = index.Close()
			return nil, err
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, err
	}
	return &keywordIndex{index: index}, nil
}

func (k *keywordIndex) search(q string, size int) ([]hit, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), size, 0, false)
	res, err := k.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make([]hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		idx, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		out = append(out, hit{idx: idx, score: h.Score})
	}
	return out, nil
}

func (k *keywordIndex) Close() error { return k.index.Close() }

const rrfK = 60

// fuseRRF merges ranked lists by reciprocal rank fusion and keeps the best k.
func fuseRRF(k int, lists ...[]hit) []hit {
	scores := map[int]float64{}
	var order []int
	for _, list := range lists {
		for rank, h := range list {
			if _, seen := scores[h.idx]; !seen {
				order = append(order, h.idx)
			}
			scores[h.idx] += 1.0 / float64(rrfK+rank+1)
		}
	}
	out := make([]hit, 0, len(order))
	for _, idx := range order {
		out = append(out, hit{idx: idx, score: scores[idx]})
	}
	sortHits(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}
