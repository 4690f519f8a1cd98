package agent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shorturl/offline-agent/internal/cache"
	"github.com/shorturl/offline-agent/internal/logging"
)

var errOffline = errors.New("network unreachable")

// fakeOrigin 模拟源站，按路径（含查询串）返回固定响应并统计调用次数。
type fakeOrigin struct {
	mu      sync.Mutex
	routes  map[string]fakeRoute
	calls   map[string]int
	methods []string
	offline bool
}

type fakeRoute struct {
	status int
	body   string
	err    error
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{
		routes: map[string]fakeRoute{
			"/":                          {status: http.StatusOK, body: "shell"},
			"/offline/":                  {status: http.StatusOK, body: "offline page"},
			"/static/manifest.json":      {status: http.StatusOK, body: `{"name":"ShortURL"}`},
			"/static/icons/icon-192.png": {status: http.StatusOK, body: "png-192"},
			"/static/icons/icon-512.png": {status: http.StatusOK, body: "png-512"},
		},
		calls: make(map[string]int),
	}
}

func (o *fakeOrigin) set(path string, route fakeRoute) {
	o.mu.Lock()
	o.routes[path] = route
	o.mu.Unlock()
}

func (o *fakeOrigin) setOffline(offline bool) {
	o.mu.Lock()
	o.offline = offline
	o.mu.Unlock()
}

func (o *fakeOrigin) callCount(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[path]
}

func (o *fakeOrigin) totalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	total := 0
	for _, n := range o.calls {
		total += n
	}
	return total
}

func (o *fakeOrigin) Fetch(ctx context.Context, req *Request) (*http.Response, error) {
	key := req.Key().URL

	o.mu.Lock()
	o.calls[key]++
	o.methods = append(o.methods, req.Method)
	offline := o.offline
	route, ok := o.routes[key]
	o.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if offline {
		return nil, errOffline
	}
	if !ok {
		route = fakeRoute{status: http.StatusNotFound, body: "not found"}
	}
	if route.err != nil {
		return nil, route.err
	}
	return &http.Response{
		StatusCode: route.status,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader(route.body)),
	}, nil
}

func newTestAgent(t *testing.T, origin *fakeOrigin, store cache.Store) *Agent {
	t.Helper()
	if store == nil {
		store = cache.NewMemoryStore()
	}
	a, err := New(Options{
		Generation:     "shorturl-cache-v3",
		Store:          store,
		Fetcher:        origin,
		Logger:         logging.Discard(),
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func newActiveAgent(t *testing.T, origin *fakeOrigin) *Agent {
	t.Helper()
	a := newTestAgent(t, origin, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start agent: %v", err)
	}
	return a
}

func mustRequest(t *testing.T, method, rawURL string) *Request {
	t.Helper()
	req, err := NewRequest(method, rawURL)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func navigationRequest(t *testing.T, rawURL string) *Request {
	req := mustRequest(t, http.MethodGet, rawURL)
	req.Mode = ModeNavigate
	req.Destination = DestinationDocument
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func currentBucket(t *testing.T, a *Agent) cache.Bucket {
	t.Helper()
	bucket, err := a.Store().Open(context.Background(), a.Generation())
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	return bucket
}

func cachedBody(t *testing.T, a *Agent, path string) (string, bool) {
	t.Helper()
	snapshot, err := currentBucket(t, a).Match(context.Background(), cache.NewKey(http.MethodGet, path), cache.MatchOptions{})
	if errors.Is(err, cache.ErrNotFound) {
		return "", false
	}
	if err != nil {
		t.Fatalf("match %s: %v", path, err)
	}
	return string(snapshot.Body), true
}
