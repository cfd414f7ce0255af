package config

import "testing"

func TestCrawlPolicyNormalize(t *testing.T) {
	cfg := CrawlPolicyConfig{
		Allow:    []string{"Example.com", "https://news.example.com", "EXAMPLE.com"},
		Disallow: []string{"www.Bad.com", " "},
	}

	norm := cfg.Normalize()
	if len(norm.Allow) != 2 || norm.Allow[0] != "example.com" || norm.Allow[1] != "news.example.com" {
		t.Fatalf("unexpected allow list: %#v", norm.Allow)
	}
	if len(norm.Disallow) != 1 || norm.Disallow[0] != "bad.com" {
		t.Fatalf("unexpected disallow list: %#v", norm.Disallow)
	}
}

func TestCrawlPolicyValidate(t *testing.T) {
	valid := CrawlPolicyConfig{
		Allow:    []string{"example.com"},
		Disallow: []string{"blocked.com"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	conflict := CrawlPolicyConfig{
		Allow:    []string{"example.com"},
		Disallow: []string{"www.example.com"},
	}
	if err := conflict.Validate(); err == nil {
		t.Fatalf("expected conflict validation error")
	}
}

func TestCrawlPolicyPermits(t *testing.T) {
	tests := []struct {
		name   string
		policy CrawlPolicyConfig
		url    string
		want   bool
	}{
		{name: "empty policy permits", policy: CrawlPolicyConfig{}, url: "https://a.example.org/x", want: true},
		{name: "disallow matches subdomain", policy: CrawlPolicyConfig{Disallow: []string{"zhihu.com"}}, url: "https://www.zhihu.com/q/1", want: false},
		{name: "disallow does not match suffix substring", policy: CrawlPolicyConfig{Disallow: []string{"hu.com"}}, url: "https://zhihu.com/", want: true},
		{name: "allow list restricts", policy: CrawlPolicyConfig{Allow: []string{"wikipedia.org"}}, url: "https://blog.example.com/", want: false},
		{name: "allow list matches", policy: CrawlPolicyConfig{Allow: []string{"wikipedia.org"}}, url: "https://en.wikipedia.org/wiki/Go", want: true},
		{name: "unparseable host rejected", policy: CrawlPolicyConfig{}, url: "", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Permits(tt.url); got != tt.want {
				t.Fatalf("Permits(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}
