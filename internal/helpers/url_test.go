package helpers

import (
	"net/url"
	"testing"
)

func TestResolveLink(t *testing.T) {
	t.Parallel()
	base, _ := url.Parse("https://www.baidu.com/s?wd=go")
	tests := []struct {
		name    string
		href    string
		want    string
		wantErr bool
	}{
		{name: "absolute", href: "https://golang.org/doc#intro", want: "https://golang.org/doc"},
		{name: "relative", href: "/link?url=abc", want: "https://www.baidu.com/link?url=abc"},
		{name: "protocol relative", href: "//example.com/x", want: "https://example.com/x"},
		{name: "javascript", href: "javascript:void(0)", wantErr: true},
		{name: "empty", href: " ", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLink(base, tt.href)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHost(t *testing.T) {
	if got := Host("https://News.Example.com:8443/a"); got != "news.example.com" {
		t.Fatalf("unexpected host %q", got)
	}
	if got := Host("::bad"); got != "" {
		t.Fatalf("expected empty host, got %q", got)
	}
}
