package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExec(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=gbk")
		_, _ = w.Write(append([]byte("<p>"), 0xd6, 0xd0, 0xce, 0xc4, '<', '/', 'p', '>'))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok", http.StatusFound)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := &Fetch{Client: srv.Client(), Timeout: 200 * time.Millisecond, MaxBytes: 64}

	res, err := f.Exec(context.Background(), srv.URL+"/redirect")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if res.HTML != "<p>中文</p>" {
		t.Fatalf("expected decoded body, got %q", res.HTML)
	}
	if res.FinalURL != srv.URL+"/ok" || res.Status != http.StatusOK || res.HTMLHash == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	big, err := f.Exec(context.Background(), srv.URL+"/big")
	if err != nil || len(big.HTML) != 64 {
		t.Fatalf("expected truncated body, got %d bytes (%v)", len(big.HTML), err)
	}

	for _, path := range []string{"/empty", "/missing", "/slow"} {
		if _, err := f.Exec(context.Background(), srv.URL+path); err == nil {
			t.Fatalf("%s: expected error", path)
		}
	}
	if _, err := f.Exec(context.Background(), " "); err == nil {
		t.Fatalf("expected error for blank url")
	}
}
