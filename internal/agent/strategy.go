package agent

import "net/http"

// Source 描述最终响应的来源，对应 X-Agent-Cache 头。
type Source string

const (
	SourceHit      Source = "hit"
	SourceMiss     Source = "miss"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
	SourceOffline  Source = "offline"
	SourceBypass   Source = "bypass"
)

// Result 是一次拦截的结果。Response.Body 由调用方负责关闭。
type Result struct {
	Response *http.Response
	Decision Decision
	Source   Source
}
