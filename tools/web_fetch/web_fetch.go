package web_fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/askweb/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/askweb/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/askweb/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxBytes = 5 << 20
)

// WebFetcher downloads one page. A nil error means status 200 with a non-empty body.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

var ErrUnsupportedFetcher = &Error{"unsupported fetcher type"}

type Options struct {
	Client    *http.Client
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	switch fetcherType {
	case HTTPFetcherType, "":
		return &httpfetch.Fetch{Client: opts.Client, Timeout: opts.Timeout, MaxBytes: opts.MaxBytes, UserAgent: opts.UserAgent}, nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: opts.Timeout, MaxBytes: opts.MaxBytes, UserAgent: opts.UserAgent}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
