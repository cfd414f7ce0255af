package corpus

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/askweb/internal/helpers"
)

// minReadableRunes is the shortest readability extraction trusted over the plain-text fallback.
const minReadableRunes = 200

// ExtractText returns the title and readable text of an HTML document.
// Readability is tried first; pages it cannot handle (or where it keeps only
// a sliver of the content) fall back to stripping every tag.
func ExtractText(doc string, pageURL *url.URL) (string, string) {
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	fallback := helpers.PlainText(doc)

	article, err := readability.FromReader(strings.NewReader(doc), pageURL)
	if err != nil {
		return "", fallback
	}
	text := helpers.CollapseSpace(article.TextContent)
	title := strings.TrimSpace(article.Title)
	if len([]rune(text)) < minReadableRunes && len(fallback) > len(text) {
		return title, fallback
	}
	return title, text
}
