package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var vocabulary = []string{"golang", "goroutine", "python", "pandas", "recipe", "flour"}

// wordEmbedder maps a text to keyword counts plus a constant bias dimension.
type wordEmbedder struct {
	err   error
	calls int
}

func (w *wordEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	w.calls++
	if w.err != nil {
		return nil, w.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		v := make([]float32, len(vocabulary)+1)
		for j, word := range vocabulary {
			v[j] = float32(strings.Count(lower, word))
		}
		v[len(vocabulary)] = 0.1
		out[i] = v
	}
	return out, nil
}

func page(title, body string) string {
	return "<html><head><title>" + title + "</title></head><body><article><p>" + body + "</p></article></body></html>"
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"go.html":     page("Go", strings.Repeat("golang goroutine scheduling explained. ", 20)),
		"python.htm":  page("Python", strings.Repeat("python pandas dataframe tutorial. ", 20)),
		"bread.html":  page("Bread", strings.Repeat("a simple recipe with flour and water. ", 20)),
		"notes.txt":   "golang golang golang",
		"broken.html": "",
	}
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	files[filepath.Join("nested", "deep.html")] = page("Deep", strings.Repeat("golang modules. ", 20))
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoadDir(t *testing.T) {
	docs := LoadDir(writeCorpus(t), nil)
	if len(docs) != 4 {
		t.Fatalf("expected 4 documents (txt and empty skipped), got %d", len(docs))
	}
	for _, d := range docs {
		if strings.Contains(d.Text, "<p>") {
			t.Fatalf("markup left in %s: %q", d.Path, d.Text)
		}
	}
	if got := LoadDir(filepath.Join(t.TempDir(), "missing"), nil); len(got) != 0 {
		t.Fatalf("expected no documents for missing dir")
	}
}

func TestRetrieveVector(t *testing.T) {
	emb := &wordEmbedder{}
	r := NewRetriever(Options{Dir: writeCorpus(t), TopK: 2, ChunkSize: 2000, ChunkOverlap: 100}, emb, nil)
	chunks, stats, err := r.Retrieve(context.Background(), "how does the golang goroutine scheduler work")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if stats.Documents != 4 || stats.Chunks < 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(chunks) == 0 || len(chunks) > 2 {
		t.Fatalf("expected 1..2 chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Text, "goroutine") {
		t.Fatalf("expected the goroutine page first, got %q", chunks[0].Title)
	}
	if emb.calls != 1 {
		t.Fatalf("expected a single embedding call, got %d", emb.calls)
	}
}

func TestRetrieveKeyword(t *testing.T) {
	r := NewRetriever(Options{Dir: writeCorpus(t), TopK: 6}, nil, nil)
	if r.Mode() != KeywordMode {
		t.Fatalf("expected keyword mode without embedder, got %s", r.Mode())
	}
	chunks, _, err := r.Retrieve(context.Background(), "pandas")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(chunks) != 1 || !strings.Contains(chunks[0].Text, "pandas") {
		t.Fatalf("expected only the pandas page, got %+v", chunks)
	}
}

func TestRetrieveHybridSurvivesEmbeddingFailure(t *testing.T) {
	r := NewRetriever(Options{Dir: writeCorpus(t), Mode: HybridMode, TopK: 3}, &wordEmbedder{err: errors.New("quota")}, nil)
	chunks, _, err := r.Retrieve(context.Background(), "flour")
	if err != nil {
		t.Fatalf("hybrid should fall back to keyword hits: %v", err)
	}
	if len(chunks) == 0 || !strings.Contains(chunks[0].Text, "flour") {
		t.Fatalf("expected the bread page, got %+v", chunks)
	}
}

func TestRetrieveVectorEmbeddingFailure(t *testing.T) {
	r := NewRetriever(Options{Dir: writeCorpus(t)}, &wordEmbedder{err: errors.New("down")}, nil)
	chunks, _, err := r.Retrieve(context.Background(), "golang")
	if err == nil || chunks != nil {
		t.Fatalf("expected error and no chunks, got %v / %d", err, len(chunks))
	}
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	emb := &wordEmbedder{}
	r := NewRetriever(Options{Dir: t.TempDir()}, emb, nil)
	chunks, _, err := r.Retrieve(context.Background(), "anything")
	if !errors.Is(err, ErrEmptyCorpus) || len(chunks) != 0 {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if emb.calls != 0 {
		t.Fatalf("embedder called for empty corpus")
	}
}

func TestFuseRRF(t *testing.T) {
	a := []hit{{idx: 1}, {idx: 2}, {idx: 3}}
	b := []hit{{idx: 3}, {idx: 1}, {idx: 4}}
	got := fuseRRF(2, a, b)
	if len(got) != 2 {
		t.Fatalf("expected 2 fused hits, got %d", len(got))
	}
	if got[0].idx != 1 || got[1].idx != 3 {
		t.Fatalf("unexpected fusion order %+v", got)
	}
}
