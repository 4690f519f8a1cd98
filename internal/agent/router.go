package agent

import (
	"context"
	"net/http"
)

// Decision 是路由器对单个请求给出的处理方式。
type Decision int

const (
	DecisionPassthrough Decision = iota
	DecisionNavigation
	DecisionAsset
)

func (d Decision) String() string {
	switch d {
	case DecisionNavigation:
		return "navigation"
	case DecisionAsset:
		return "asset"
	default:
		return "passthrough"
	}
}

// Router 将请求分派给导航策略、静态资源策略或直接透传。
type Router struct {
	fetcher    Fetcher
	navigation *NavigationStrategy
	asset      *AssetStrategy
}

// Route 只做分类，不产生副作用。非 GET 一律透传；导航优先于静态资源判断。
func (r *Router) Route(req *Request) Decision {
	if req.Method != http.MethodGet {
		return DecisionPassthrough
	}
	if req.IsNavigation() {
		return DecisionNavigation
	}
	if req.IsStaticAsset() {
		return DecisionAsset
	}
	return DecisionPassthrough
}

// Serve 按 Route 的结果执行对应策略。透传请求不读不写缓存。
func (r *Router) Serve(ctx context.Context, req *Request) (*Result, error) {
	switch r.Route(req) {
	case DecisionNavigation:
		return r.navigation.Serve(ctx, req)
	case DecisionAsset:
		return r.asset.Serve(ctx, req)
	default:
		return r.passthrough(ctx, req)
	}
}

func (r *Router) passthrough(ctx context.Context, req *Request) (*Result, error) {
	resp, err := r.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, &NetworkError{URL: req.URL.String(), Err: err}
	}
	return &Result{Response: resp, Decision: DecisionPassthrough, Source: SourceBypass}, nil
}
