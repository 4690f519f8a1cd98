package agent

import (
	"context"
	"net/http"
)

// Fetcher 代表默认的网络访问路径。返回 error 表示网络层失败（超时、离线、DNS），
// 任何收到的 HTTP 响应（包括 4xx/5xx）都以 *http.Response 返回。
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*http.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*http.Response, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*http.Response, error) {
	return f(ctx, req)
}
