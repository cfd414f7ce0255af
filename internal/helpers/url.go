package helpers

import (
	"errors"
	"net/url"
	"strings"
)

// ResolveLink resolves href against base and returns an absolute http(s) URL
// without fragment. Links with other schemes (javascript:, mailto:) are rejected.
func ResolveLink(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", errors.New("empty href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", errors.New("unsupported scheme")
	}
	if ref.Host == "" {
		return "", errors.New("url missing host")
	}
	ref.Fragment = ""
	ref.RawFragment = ""
	return ref.String(), nil
}

// Host returns the lowercase host of raw, or "" when it cannot be parsed.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
