package agent

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestAssetHitMakesNoNetworkCall(t *testing.T) {
	origin := newFakeOrigin()
	a := newActiveAgent(t, origin)
	before := origin.totalCalls()

	res, err := a.Intercept(context.Background(), mustRequest(t, http.MethodGet, "/static/icons/icon-192.png"))
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	if body := readBody(t, res.Response); body != "png-192" {
		t.Fatalf("unexpected body %q", body)
	}
	if res.Source != SourceHit {
		t.Fatalf("source = %s, want hit", res.Source)
	}
	if origin.totalCalls() != before {
		t.Fatalf("cache hit must not reach network")
	}
}

func TestAssetMissFetchesOnceAndWritesThrough(t *testing.T) {
	origin := newFakeOrigin()
	origin.set("/static/app.css", fakeRoute{status: http.StatusOK, body: "body{}"})
	a := newActiveAgent(t, origin)

	for i := 0; i < 2; i++ {
		res, err := a.Intercept(context.Background(), mustRequest(t, http.MethodGet, "/static/app.css"))
		if err != nil {
			t.Fatalf("intercept #%d: %v", i, err)
		}
		if body := readBody(t, res.Response); body != "body{}" {
			t.Fatalf("unexpected body %q", body)
		}
		want := SourceMiss
		if i == 1 {
			want = SourceHit
		}
		if res.Source != want {
			t.Fatalf("request #%d source = %s, want %s", i, res.Source, want)
		}
	}
	if got := origin.callCount("/static/app.css"); got != 1 {
		t.Fatalf("expected exactly one network call, got %d", got)
	}
	if body, ok := cachedBody(t, a, "/static/app.css"); !ok || body != "body{}" {
		t.Fatalf("expected write-through entry, got %q (%v)", body, ok)
	}
}

func TestAssetErrorStatusIsNotCached(t *testing.T) {
	origin := newFakeOrigin()
	a := newActiveAgent(t, origin)

	res, err := a.Intercept(context.Background(), mustRequest(t, http.MethodGet, "/static/missing.js"))
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	readBody(t, res.Response)
	if res.Response.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.Response.StatusCode)
	}
	if _, ok := cachedBody(t, a, "/static/missing.js"); ok {
		t.Fatalf("404 must not be cached")
	}
}

func TestAssetOfflineWithoutCacheFails(t *testing.T) {
	origin := newFakeOrigin()
	a := newActiveAgent(t, origin)
	origin.setOffline(true)

	_, err := a.Intercept(context.Background(), mustRequest(t, http.MethodGet, "/static/never-seen.css"))
	var netErr *NetworkError
	if !errors.As(err, &netErr) || !errors.Is(err, errOffline) {
		t.Fatalf("expected NetworkError wrapping offline error, got %v", err)
	}
}

func TestAssetLargeBodyStreamsWithoutCaching(t *testing.T) {
	origin := newFakeOrigin()
	origin.set("/static/big.bin", fakeRoute{status: http.StatusOK, body: "0123456789abcdef"})
	a, err := New(Options{
		Generation:   "shorturl-cache-v3",
		Store:        newActiveAgent(t, origin).Store(),
		Fetcher:      origin,
		MaxEntrySize: 8,
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	a.setState(StateActive)

	res, err := a.Intercept(context.Background(), mustRequest(t, http.MethodGet, "/static/big.bin"))
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	if body := readBody(t, res.Response); body != "0123456789abcdef" {
		t.Fatalf("body truncated: %q", body)
	}
	if _, ok := cachedBody(t, a, "/static/big.bin"); ok {
		t.Fatalf("oversized body must not be cached")
	}
}

func TestNavigationOnlineRefreshesShell(t *testing.T) {
	origin := newFakeOrigin()
	a := newActiveAgent(t, origin)
	origin.set("/dashboard/", fakeRoute{status: http.StatusOK, body: "dashboard v2"})

	res, err := a.Intercept(context.Background(), navigationRequest(t, "/dashboard/"))
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	if body := readBody(t, res.Response); body != "dashboard v2" {
		t.Fatalf("expected live response, got %q", body)
	}
	if res.Source != SourceNetwork {
		t.Fatalf("source = %s, want network", res.Source)
	}
	if body, _ := cachedBody(t, a, "/"); body != "dashboard v2" {
		t.Fatalf("expected shell refreshed from navigation, got %q", body)
	}
	if _, ok := cachedBody(t, a, "/dashboard/"); ok {
		t.Fatalf("navigation must be stored under / only")
	}
}

func TestNavigationErrorStatusReturnedButNotStored(t *testing.T) {
	origin := newFakeOrigin()
	a := newActiveAgent(t, origin)
	origin.set("/broken/", fakeRoute{status: http.StatusInternalServerError, body: "boom"})

	res, err := a.Intercept(context.Background(), navigationRequest(t, "/broken/"))
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	if body := readBody(t, res.Response); res.Response.StatusCode != http.StatusInternalServerError || body != "boom" {
		t.Fatalf("expected origin 500 returned unmodified, got %d %q", res.Response.StatusCode, body)
	}
	if body, _ := cachedBody(t, a, "/"); body != "shell" {
		t.Fatalf("5xx must not overwrite shell, got %q", body)
	}
}

func TestNavigationOfflineFallbacks(t *testing.T) {
	origin := newFakeOrigin()
	a := newActiveAgent(t, origin)
	origin.setOffline(true)

	res, err := a.Intercept(context.Background(), navigationRequest(t, "/"))
	if err != nil {
		t.Fatalf("intercept /: %v", err)
	}
	if body := readBody(t, res.Response); body != "shell" || res.Source != SourceFallback {
		t.Fatalf("expected cached shell, got %q (%s)", body, res.Source)
	}

	res, err = a.Intercept(context.Background(), navigationRequest(t, "/somewhere/"))
	if err != nil {
		t.Fatalf("intercept /somewhere/: %v", err)
	}
	if body := readBody(t, res.Response); body != "offline page" || res.Source != SourceOffline {
		t.Fatalf("expected offline page, got %q (%s)", body, res.Source)
	}
}

func TestNavigationOfflineWithoutOfflinePage(t *testing.T) {
	origin := newFakeOrigin()
	a := newActiveAgent(t, origin)
	if _, err := currentBucket(t, a).Delete(context.Background(), mustRequest(t, http.MethodGet, OfflinePath).Key()); err != nil {
		t.Fatalf("delete offline entry: %v", err)
	}
	origin.setOffline(true)

	_, err := a.Intercept(context.Background(), navigationRequest(t, "/elsewhere/"))
	if !errors.Is(err, ErrOfflineUnavailable) {
		t.Fatalf("expected ErrOfflineUnavailable, got %v", err)
	}
}
