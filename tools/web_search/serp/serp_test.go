package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html/atom"
)

func TestParseAndQuery(t *testing.T) {
	doc, err := Parse([]byte(`<html><body>
<div class="a result c-container"><h3> Hello <em>world</em> </h3><a href="/x">x</a></div>
<div class="results"><h3>no</h3></div>
</body></html>`), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	items := FindAll(doc, Element(atom.Div, "result"))
	if len(items) != 1 {
		t.Fatalf("expected exactly one class-token match, got %d", len(items))
	}
	h3 := First(items[0], Element(atom.H3, ""))
	if h3 == nil || Text(h3) != "Hello world" {
		t.Fatalf("unexpected heading text")
	}
	a := First(items[0], LinkElement)
	if href, _ := Attr(a, "href"); href != "/x" {
		t.Fatalf("unexpected href %q", href)
	}
}

func TestParseDecodesCharset(t *testing.T) {
	// "中文" in GBK
	body := append([]byte(`<html><head><meta charset="gbk"></head><body><p>`), 0xd6, 0xd0, 0xce, 0xc4)
	body = append(body, []byte(`</p></body></html>`)...)
	doc, err := Parse(body, "text/html")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := First(doc, Element(atom.P, ""))
	if got := Text(p); got != "中文" {
		t.Fatalf("expected decoded text, got %q", got)
	}
}

func TestGetSendsBrowserHeadersAndChecksStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "Mozilla/5.0") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<p>ok</p>`))
	}))
	defer srv.Close()

	doc, err := Get(context.Background(), srv.Client(), srv.URL+"/", "", 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if Text(First(doc, Element(atom.P, ""))) != "ok" {
		t.Fatalf("unexpected body")
	}

	_, err = Get(context.Background(), srv.Client(), srv.URL+"/gone", "", 0)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusGone {
		t.Fatalf("expected status error, got %v", err)
	}
}
