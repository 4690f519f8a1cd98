package agent

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestRouteDecisions(t *testing.T) {
	r := &Router{}
	cases := []struct {
		name   string
		method string
		url    string
		mode   Mode
		dest   Destination
		want   Decision
	}{
		{name: "post navigation", method: http.MethodPost, url: "/shorten/", mode: ModeNavigate, want: DecisionPassthrough},
		{name: "post static", method: http.MethodPost, url: "/static/app.css", want: DecisionPassthrough},
		{name: "navigation", method: http.MethodGet, url: "/dashboard/", mode: ModeNavigate, dest: DestinationDocument, want: DecisionNavigation},
		{name: "navigation wins over static path", method: http.MethodGet, url: "/static/index.html", mode: ModeNavigate, want: DecisionNavigation},
		{name: "static path", method: http.MethodGet, url: "/static/app.js", mode: ModeNoCORS, dest: DestinationScript, want: DecisionAsset},
		{name: "style destination", method: http.MethodGet, url: "/css/site.css", dest: DestinationStyle, want: DecisionAsset},
		{name: "image destination", method: http.MethodGet, url: "/media/logo.png", dest: DestinationImage, want: DecisionAsset},
		{name: "font destination", method: http.MethodGet, url: "/fonts/a.woff2", dest: DestinationFont, want: DecisionAsset},
		{name: "api call", method: http.MethodGet, url: "/api/links?page=2", mode: ModeCORS, want: DecisionPassthrough},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := mustRequest(t, tc.method, tc.url)
			req.Mode = tc.mode
			req.Destination = tc.dest
			if got := r.Route(req); got != tc.want {
				t.Fatalf("Route() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Dest", "document")
	if mode, dest := Classify(http.MethodGet, h); mode != ModeNavigate || dest != DestinationDocument {
		t.Fatalf("unexpected fetch metadata classification: %s %s", mode, dest)
	}

	h = http.Header{}
	h.Set("Accept", "text/html,application/xhtml+xml")
	if mode, _ := Classify(http.MethodGet, h); mode != ModeNavigate {
		t.Fatalf("expected accept fallback to navigate, got %q", mode)
	}
	if mode, _ := Classify(http.MethodPost, h); mode == ModeNavigate {
		t.Fatalf("non-GET must not be treated as navigation")
	}

	h = http.Header{}
	h.Set("Sec-Fetch-Mode", "no-cors")
	h.Set("Sec-Fetch-Dest", "image")
	if mode, dest := Classify(http.MethodGet, h); mode != ModeNoCORS || dest != DestinationImage {
		t.Fatalf("unexpected image classification: %s %s", mode, dest)
	}
}

func TestNonGetIsNeverIntervened(t *testing.T) {
	origin := newFakeOrigin()
	origin.set("/shorten/", fakeRoute{status: http.StatusFound, body: ""})
	a := newActiveAgent(t, origin)

	req := mustRequest(t, http.MethodPost, "/shorten/")
	req.Mode = ModeNavigate
	res, err := a.Intercept(context.Background(), req)
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	readBody(t, res.Response)
	if res.Decision != DecisionPassthrough || res.Response.StatusCode != http.StatusFound {
		t.Fatalf("unexpected result: decision=%s status=%d", res.Decision, res.Response.StatusCode)
	}
	if _, ok := cachedBody(t, a, "/shorten/"); ok {
		t.Fatalf("POST response must not be cached")
	}
	if body, _ := cachedBody(t, a, "/"); body != "shell" {
		t.Fatalf("POST must not refresh shell, got %q", body)
	}
}

func TestPassthroughDoesNotCache(t *testing.T) {
	origin := newFakeOrigin()
	origin.set("/api/links", fakeRoute{status: http.StatusOK, body: "[]"})
	a := newActiveAgent(t, origin)

	res, err := a.Intercept(context.Background(), mustRequest(t, http.MethodGet, "/api/links"))
	if err != nil {
		t.Fatalf("intercept: %v", err)
	}
	if body := readBody(t, res.Response); body != "[]" {
		t.Fatalf("unexpected body %q", body)
	}
	if _, ok := cachedBody(t, a, "/api/links"); ok {
		t.Fatalf("passthrough response must not be cached")
	}

	origin.setOffline(true)
	_, err = a.Intercept(context.Background(), mustRequest(t, http.MethodGet, "/api/links"))
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError for offline passthrough, got %v", err)
	}
}
