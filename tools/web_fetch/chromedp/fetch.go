package chromedp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/askweb/tools/web_fetch/models"
)

// Fetch renders pages in headless Chrome, for sites that build their content with JavaScript.
type Fetch struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

func (f *Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	t0 := time.Now()

	html, finalURL, err := f.render(ctx, url)
	res := models.Result{URL: url, FinalURL: finalURL, ContentType: "text/html; charset=utf-8", RenderMS: int(time.Since(t0) / time.Millisecond)}
	if err != nil {
		res.Status = 599
		return res, fmt.Errorf("render %s: %w", url, err)
	}
	if strings.TrimSpace(html) == "" {
		return res, fmt.Errorf("render %s: empty document", url)
	}
	if f.MaxBytes > 0 && int64(len(html)) > f.MaxBytes {
		html = strings.ToValidUTF8(html[:f.MaxBytes], "")
	}

	sum := sha1.Sum([]byte(html))
	res.Status = 200
	res.HTML = html
	res.HTMLHash = hex.EncodeToString(sum[:])
	return res, nil
}

func (f *Fetch) render(ctx context.Context, url string) (string, string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if f.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.UserAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html, location string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, location, err
}
