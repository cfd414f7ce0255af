package models

// Result is one candidate entry scraped from a results page or returned by a search API.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Engine  string `json:"engine"`
}
