package web_search

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/askweb/tools/web_search/baidu"
	"github.com/mohammad-safakhou/askweb/tools/web_search/bing"
	"github.com/mohammad-safakhou/askweb/tools/web_search/brave"
	"github.com/mohammad-safakhou/askweb/tools/web_search/models"
	"github.com/mohammad-safakhou/askweb/tools/web_search/serper"
	"go.uber.org/zap"
)

// Engine discovers candidate pages for a query. Discover returns at most k
// entries; an error means the engine produced nothing usable.
type Engine interface {
	Name() string
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	BingProvider   Provider = "bing"
	BaiduProvider  Provider = "baidu"
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedEngine = &Error{"unsupported search engine"}

// Options carries what every engine adapter may need.
type Options struct {
	Client      *http.Client
	UserAgent   string
	PageTimeout time.Duration
	APIKey      string
	Logger      *zap.Logger
}

func NewEngine(provider Provider, opts Options) (Engine, error) {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	switch Provider(strings.ToLower(string(provider))) {
	case BingProvider:
		return &bing.Search{Client: client, UserAgent: opts.UserAgent, Timeout: opts.PageTimeout}, nil
	case BaiduProvider:
		return &baidu.Search{Client: client, UserAgent: opts.UserAgent, Timeout: opts.PageTimeout, Logger: opts.Logger}, nil
	case SerperProvider:
		return &serper.Search{ApiKey: opts.APIKey, Client: client, Timeout: opts.PageTimeout}, nil
	case BraveProvider:
		return &brave.Search{ApiKey: opts.APIKey, Client: client, Timeout: opts.PageTimeout}, nil
	default:
		return nil, ErrUnsupportedEngine
	}
}
