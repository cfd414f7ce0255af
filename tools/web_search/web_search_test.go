package web_search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mohammad-safakhou/askweb/tools/web_search/brave"
	"github.com/mohammad-safakhou/askweb/tools/web_search/serper"
)

func TestNewEngine(t *testing.T) {
	for _, p := range []Provider{BingProvider, BaiduProvider, SerperProvider, BraveProvider, "BING"} {
		e, err := NewEngine(p, Options{})
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if e.Name() == "" {
			t.Fatalf("%s: empty name", p)
		}
	}
	if _, err := NewEngine("yahoo", Options{}); !errors.Is(err, ErrUnsupportedEngine) {
		t.Fatalf("expected ErrUnsupportedEngine, got %v", err)
	}
}

func TestBraveDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"web": map[string]any{"results": []map[string]string{
			{"title": "<strong>One</strong>", "url": "https://a.example/1#x", "description": "d1"},
			{"title": "Two", "url": "https://a.example/2"},
			{"title": "Three", "url": "https://a.example/3"},
		}}})
	}))
	defer srv.Close()

	s := &brave.Search{ApiKey: "k", Client: srv.Client(), Endpoint: srv.URL}
	got, err := s.Discover(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 2 || got[0].Title != "One" || got[0].URL != "https://a.example/1" {
		t.Fatalf("unexpected results %+v", got)
	}

	s.ApiKey = "wrong"
	if _, err := s.Discover(context.Background(), "q", 2); err == nil {
		t.Fatalf("expected error for unauthorized response")
	}
}

func TestSerperDiscover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["q"] != "golang" {
			t.Errorf("unexpected payload %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"organic": []map[string]string{
			{"title": "Go", "link": "https://go.dev", "snippet": "s"},
			{"title": "Bad", "link": "ftp://x"},
		}})
	}))
	defer srv.Close()

	s := &serper.Search{ApiKey: "k", Client: srv.Client(), Endpoint: srv.URL}
	got, err := s.Discover(context.Background(), "golang", 5)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://go.dev" || got[0].Engine != "serper" {
		t.Fatalf("unexpected results %+v", got)
	}
}
