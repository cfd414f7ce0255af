package corpus

// Document is the text extracted from one cached page.
type Document struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Chunk is a window of a document's text, the unit of retrieval.
type Chunk struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Index  int     `json:"index"`
	Score  float64 `json:"score"`
}
