package baidu

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mohammad-safakhou/askweb/internal/helpers"
	"github.com/mohammad-safakhou/askweb/tools/web_search/models"
	"github.com/mohammad-safakhou/askweb/tools/web_search/serp"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const Endpoint = "https://www.baidu.com/s"

type Search struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration
	Endpoint  string
	Logger    *zap.Logger
}

func (s *Search) Name() string { return "baidu" }

func (s *Search) Discover(ctx context.Context, q string, k int) ([]models.Result, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = Endpoint
	}
	doc, err := serp.Get(ctx, s.Client, endpoint+"?"+url.Values{"wd": {q}}.Encode(), s.UserAgent, s.Timeout)
	if err != nil {
		return nil, fmt.Errorf("baidu: %w", err)
	}
	base, _ := url.Parse(endpoint)
	return ParseResults(doc, base, k, s.Logger), nil
}

// ParseResults extracts up to k entries from div.result blocks. Blocks without
// an h3 title or a usable link are skipped and logged.
func ParseResults(doc *html.Node, base *url.URL, k int, log *zap.Logger) []models.Result {
	if log == nil {
		log = zap.NewNop()
	}
	var out []models.Result
	for i, item := range serp.FindAll(doc, serp.Element(atom.Div, "result")) {
		if k > 0 && len(out) >= k {
			break
		}
		h3 := serp.First(item, serp.Element(atom.H3, ""))
		a := serp.First(item, serp.LinkElement)
		if h3 == nil || a == nil {
			log.Debug("skip malformed baidu entry", zap.Int("index", i))
			continue
		}
		href, _ := serp.Attr(a, "href")
		link, err := helpers.ResolveLink(base, href)
		if err != nil {
			log.Debug("skip baidu entry", zap.Int("index", i), zap.String("href", href), zap.Error(err))
			continue
		}
		out = append(out, models.Result{Title: serp.Text(h3), URL: link, Engine: "baidu"})
	}
	return out
}
