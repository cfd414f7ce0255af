package bing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mohammad-safakhou/askweb/internal/helpers"
	"github.com/mohammad-safakhou/askweb/tools/web_search/models"
	"github.com/mohammad-safakhou/askweb/tools/web_search/serp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Endpoints are tried in order until one answers.
var Endpoints = []string{
	"https://cn.bing.com/search",
	"https://www.bing.com/search",
}

type Search struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	// Endpoints overrides the package default, mostly for tests.
	Endpoints []string
}

func (s *Search) Name() string { return "bing" }

func (s *Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	endpoints := s.Endpoints
	if len(endpoints) == 0 {
		endpoints = Endpoints
	}
	var errs []error
	for _, endpoint := range endpoints {
		u := endpoint + "?" + url.Values{"q": {q}}.Encode()
		doc, err := serp.Get(ctx, s.Client, u, s.UserAgent, s.Timeout)
		if err != nil {
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		base, _ := url.Parse(endpoint)
		results := ParseResults(doc, base, k)
		if len(results) == 0 {
			errs = append(errs, fmt.Errorf("%s: no results", endpoint))
			continue
		}
		return results, nil
	}
	return nil, fmt.Errorf("bing: %w", errors.Join(errs...))
}

// ParseResults extracts up to k entries from li.b_algo blocks. The title is
// the h2 text and the link the first anchor in the block.
func ParseResults(doc *html.Node, base *url.URL, k int) []models.Result {
	var out []models.Result
	for _, item := range serp.FindAll(doc, serp.Element(atom.Li, "b_algo")) {
		if k > 0 && len(out) >= k {
			break
		}
		h2 := serp.First(item, serp.Element(atom.H2, ""))
		a := serp.First(item, serp.LinkElement)
		if h2 == nil || a == nil {
			continue
		}
		href, _ := serp.Attr(a, "href")
		link, err := helpers.ResolveLink(base, href)
		if err != nil {
			continue
		}
		r := models.Result{Title: serp.Text(h2), URL: link, Engine: "bing"}
		if p := serp.First(item, serp.Element(atom.P, "")); p != nil {
			r.Snippet = serp.Text(p)
		}
		out = append(out, r)
	}
	return out
}
