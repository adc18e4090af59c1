package proxy

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kedgeproxy/kedge/internal/cache"
	"github.com/kedgeproxy/kedge/internal/cachekey"
	"github.com/kedgeproxy/kedge/internal/config"
)

func TestRoundRobinPickerCycles(t *testing.T) {
	p := newPicker("round-robin", 3)
	got := []int{p.pick(), p.pick(), p.pick(), p.pick()}
	want := []int{0, 1, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pick sequence = %v, want %v", got, want)
		}
	}
}

func TestRandomPickerInRange(t *testing.T) {
	p := newPicker("random", 4)
	for i := 0; i < 100; i++ {
		if n := p.pick(); n < 0 || n >= 4 {
			t.Fatalf("pick = %d, out of range", n)
		}
	}
}

func upstreamAddr(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return u.Host
}

func TestForwarderBalancesAcrossUpstreams(t *testing.T) {
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "a")
	}))
	defer a.Close()
	b := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "b")
	}))
	defer b.Close()

	svc, err := NewService(config.ProxyConfig{
		Name: "test",
		Connectors: config.Connectors{
			Selection: "round-robin",
			Targets: []config.ConnectorConfig{
				{Addr: upstreamAddr(t, a), Proto: "h1"},
				{Addr: upstreamAddr(t, b), Proto: "h1"},
			},
		},
	}, Options{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	var bodies []string
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		svc.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		bodies = append(bodies, rec.Body.String())
	}
	if got := strings.Join(bodies, ""); got != "abab" {
		t.Errorf("round-robin bodies = %q, want abab", got)
	}
}

func TestForwarderBadGatewayOnUpstreamError(t *testing.T) {
	svc, err := NewService(config.ProxyConfig{
		Name: "test",
		Connectors: config.Connectors{
			Selection: "round-robin",
			Targets:   []config.ConnectorConfig{{Addr: "127.0.0.1:1", Proto: "h1"}},
		},
	}, Options{Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestNewServiceRequiresTargets(t *testing.T) {
	_, err := NewService(config.ProxyConfig{Name: "empty"}, Options{Logger: slog.New(slog.DiscardHandler)})
	if err == nil {
		t.Fatal("expected error for service without targets")
	}
}

func testCachingHandler(t *testing.T, next http.Handler) *cachingHandler {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	keyer, err := cachekey.Compile(config.KeyTemplateConfig{
		Source:    "${uri_path}",
		Algorithm: config.HashAlgorithm{Name: "xxhash64"},
	})
	if err != nil {
		t.Fatalf("cachekey.Compile: %v", err)
	}

	return &cachingHandler{
		keyer:  keyer,
		store:  store,
		next:   next,
		logger: slog.New(slog.DiscardHandler),
	}
}

func TestCachingHandlerHitAfterMiss(t *testing.T) {
	hits := 0
	h := testCachingHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "body")
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/page", nil))
	if first.Header().Get("X-Cache") != "MISS" {
		t.Errorf("first X-Cache = %q, want MISS", first.Header().Get("X-Cache"))
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/page", nil))
	if second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("second X-Cache = %q, want HIT", second.Header().Get("X-Cache"))
	}
	if got, _ := io.ReadAll(second.Body); string(got) != "body" {
		t.Errorf("cached body = %q", got)
	}
	if second.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("cached Content-Type = %q", second.Header().Get("Content-Type"))
	}
	if hits != 1 {
		t.Errorf("upstream hits = %d, want 1", hits)
	}
}

func TestCachingHandlerSkipsNonGET(t *testing.T) {
	hits := 0
	h := testCachingHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/page", nil))
	}
	if hits != 2 {
		t.Errorf("upstream hits = %d, want 2 (POST must not be cached)", hits)
	}
}

func TestCachingHandlerSkipsNon200(t *testing.T) {
	hits := 0
	h := testCachingHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if hits != 2 {
		t.Errorf("upstream hits = %d, want 2 (errors must not be cached)", hits)
	}
}
