package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoaderFirstSuccessWins(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.json", `{"oneTime": [`)
	good := writeFile(t, dir, "good.json", `{"oneTime": [{"id": "a", "date": "2025-05-01", "type": "meetup"}]}`)
	other := writeFile(t, dir, "other.json", `{"oneTime": []}`)

	l := NewLoader([]string{filepath.Join(dir, "missing.json"), broken, good, other}, t.TempDir())
	cal, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cal.Origin != good {
		t.Fatalf("origin = %q, want %q", cal.Origin, good)
	}
	if len(cal.OneTime) != 1 || cal.LoadedAt.IsZero() {
		t.Fatalf("calendar = %+v", cal)
	}
}

func TestLoaderAllFail(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader([]string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, t.TempDir())
	_, err := l.Load(context.Background())
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("err = %v, want ErrNoSource", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v should wrap the per-candidate errors", err)
	}

	if _, err := NewLoader(nil, "").Load(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Fatalf("no candidates: err = %v", err)
	}
}

func TestLoaderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewLoader([]string{"whatever.json"}, t.TempDir())
	if _, err := l.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestFetcherHTTPCache(t *testing.T) {
	const body = `{"recurring": []}`
	var hits, notModified atomic.Int32
	fail := atomic.Bool{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ctx := context.Background()

	first, err := f.Fetch(ctx, srv.URL+"/data/events.json")
	if err != nil {
		t.Fatal(err)
	}
	if first.FromCache || string(first.Body) != body {
		t.Fatalf("first fetch = %+v", first)
	}

	second, err := f.Fetch(ctx, srv.URL+"/data/events.json")
	if err != nil {
		t.Fatal(err)
	}
	if !second.FromCache || string(second.Body) != body || notModified.Load() != 1 {
		t.Fatalf("second fetch should revalidate to 304: %+v (304s: %d)", second, notModified.Load())
	}

	fail.Store(true)
	third, err := f.Fetch(ctx, srv.URL+"/data/events.json")
	if err != nil {
		t.Fatalf("non-OK with cached body should fall back: %v", err)
	}
	if !third.FromCache {
		t.Fatal("expected cached body on upstream failure")
	}

	if _, err := f.Fetch(ctx, srv.URL+"/uncached.json"); err == nil {
		t.Fatal("non-OK without cache should fail")
	}
	if hits.Load() != 4 {
		t.Fatalf("hits = %d, want 4", hits.Load())
	}
}

func TestLoaderFallsBackFromURLToFile(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	dir := t.TempDir()
	local := writeFile(t, dir, "events.json", `{"recurring": [{"id": "r", "dayOfWeek": 1, "occurrences": [1], "type": "recurring"}]}`)

	l := NewLoader([]string{srv.URL + "/data/events.json", local}, t.TempDir())
	cal, err := l.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cal.Origin != local || len(cal.Recurring) != 1 {
		t.Fatalf("calendar = %+v", cal)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://example.com/private/events.json?token=abcd")
	if got != "https://example.com/...(redacted)" {
		t.Fatalf("got %q", got)
	}
	if got := redactURL("::bad"); got != "source://...(redacted)" {
		t.Fatalf("got %q", got)
	}
}
