package models

// Result is a fetched page. HTML is always UTF-8.
type Result struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	HTML        string `json:"-"`
	HTMLHash    string `json:"html_hash"`
	RenderMS    int    `json:"render_ms"`
}
