// Package serp holds the HTML plumbing shared by the scraping engine adapters:
// browser-like requests, charset decoding and a few node queries.
package serp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/askweb/internal/helpers"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

const maxPageBytes = 4 << 20

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
}

// Get fetches rawURL with browser headers and parses the body as HTML.
func Get(ctx context.Context, client *http.Client, rawURL, userAgent string, timeout time.Duration) (*html.Node, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	helpers.SetBrowserHeaders(req, userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}
	body, err := helpers.ReadLimited(resp.Body, maxPageBytes)
	if err != nil {
		return nil, err
	}
	return Parse(body, resp.Header.Get("Content-Type"))
}

// Parse decodes body to UTF-8 using the content type and any <meta charset>,
// then parses it.
func Parse(body []byte, contentType string) (*html.Node, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode charset: %w", err)
	}
	return html.Parse(r)
}

// HasClass reports whether n carries class among its class tokens.
func HasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// FindAll returns every element under root (root included) matching match, in document order.
func FindAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// First returns the first descendant of root matching match, or nil.
func First(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := First(c, match); found != nil {
			return found
		}
	}
	return nil
}

// Element matches elements with the given tag and, when class is non-empty, class token.
func Element(tag atom.Atom, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.DataAtom != tag {
			return false
		}
		return class == "" || HasClass(n, class)
	}
}

// LinkElement matches <a> elements carrying an href.
func LinkElement(n *html.Node) bool {
	if n.DataAtom != atom.A {
		return false
	}
	_, ok := Attr(n, "href")
	return ok
}

// Text returns the concatenated, whitespace-collapsed text of n.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
