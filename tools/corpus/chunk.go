package corpus

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// makeChunks splits text into windows of at most size runes, each starting
// overlap runes before the previous one ended. A window is cut at the last
// line or word break in its second half when there is one.
func makeChunks(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 || len(runes) <= size {
		return []string{string(runes)}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		if end < len(runes) {
			if cut := lastBreak(runes[start:end]); cut > size/2 {
				end = start + cut
			}
		}
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			chunks = append(chunks, part)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastBreak returns the offset just past the last newline in window, or past
// the last space when there is no newline; 0 when neither exists.
func lastBreak(window []rune) int {
	space := 0
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '\n':
			return i + 1
		case ' ':
			if space == 0 {
				space = i + 1
			}
		}
	}
	return space
}

// ChunkDocuments splits every document and assigns stable chunk IDs.
func ChunkDocuments(docs []Document, size, overlap int) []Chunk {
	var out []Chunk
	for _, d := range docs {
		sum := sha1.Sum([]byte(d.Path))
		prefix := hex.EncodeToString(sum[:6])
		for i, part := range makeChunks(d.Text, size, overlap) {
			out = append(out, Chunk{
				ID:     fmt.Sprintf("%s#%03d", prefix, i),
				Source: d.Path,
				Title:  d.Title,
				Text:   part,
				Index:  i,
			})
		}
	}
	return out
}
