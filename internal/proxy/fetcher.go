package proxy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shorturl/offline-agent/internal/agent"
	"github.com/shorturl/offline-agent/internal/server"
)

// OriginFetcher 是 agent 的默认网络路径：把源站相对请求解析到 Origin 后发出。
type OriginFetcher struct {
	client *http.Client
	origin *url.URL
}

// NewOriginFetcher 以共享 http.Client 与源站地址构建 fetcher。
func NewOriginFetcher(client *http.Client, origin string) (*OriginFetcher, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("origin must be absolute: %s", origin)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OriginFetcher{client: client, origin: base}, nil
}

// Origin 返回源站根地址。
func (f *OriginFetcher) Origin() *url.URL {
	copied := *f.origin
	return &copied
}

// Fetch 实现 agent.Fetcher。任何收到的 HTTP 响应都原样返回，只有传输层失败才返回 error。
func (f *OriginFetcher) Fetch(ctx context.Context, req *agent.Request) (*http.Response, error) {
	target := f.resolve(req.URL)

	var body *bytes.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	var upstream *http.Request
	var err error
	if body != nil {
		upstream, err = http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	} else {
		upstream, err = http.NewRequestWithContext(ctx, req.Method, target.String(), http.NoBody)
	}
	if err != nil {
		return nil, err
	}

	if req.Header != nil {
		server.CopyHeaders(upstream.Header, req.Header)
	}
	// 缓存中保存解压后的正文，因此不向源站协商压缩
	upstream.Header.Del("Accept-Encoding")
	upstream.Header.Del("Host")
	upstream.Host = target.Host

	return f.client.Do(upstream)
}

func (f *OriginFetcher) resolve(u *url.URL) *url.URL {
	if u == nil {
		return f.Origin()
	}
	relative := &url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: u.RawQuery}
	if relative.Path == "" {
		relative.Path = "/"
	}
	return f.origin.ResolveReference(relative)
}
