package httpfetch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/askweb/internal/helpers"
	"github.com/mohammad-safakhou/askweb/tools/web_fetch/models"
	"golang.org/x/net/html/charset"
)

// Fetch downloads pages with a plain GET.
type Fetch struct {
	Client    *http.Client
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

func (f *Fetch) Exec(ctx context.Context, url string) (models.Result, error) {
	if strings.TrimSpace(url) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	t0 := time.Now()
	res := models.Result{URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, err
	}
	helpers.SetBrowserHeaders(req, f.UserAgent)
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return res, err
	}
	res.Status = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")
	res.FinalURL = resp.Request.URL.String()
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return res, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := helpers.ReadLimited(resp.Body, f.MaxBytes)
	if err != nil {
		return res, err
	}
	text, err := decode(body, res.ContentType)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(text) == "" {
		return res, fmt.Errorf("fetch %s: empty body", url)
	}

	sum := sha1.Sum(body)
	res.HTML = text
	res.HTMLHash = hex.EncodeToString(sum[:])
	res.RenderMS = int(time.Since(t0) / time.Millisecond)
	return res, nil
}

func decode(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Unknown label: keep the bytes as they are.
		return string(body), nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	return string(out), nil
}
