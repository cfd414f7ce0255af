package helpers

import "net/http"

// DefaultUserAgent mimics a desktop Firefox; search engines serve a reduced page to unknown clients.
const DefaultUserAgent = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:22.0) Gecko/20100101 Firefox/22.0"

// SetBrowserHeaders makes req look like a desktop browser navigation.
// Accept-Encoding is left to the transport so gzip bodies are decoded transparently.
func SetBrowserHeaders(req *http.Request, userAgent string) {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "max-age=0")
	req.Header.Set("User-Agent", userAgent)
}
