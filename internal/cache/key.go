package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// Key 唯一定位 bucket 内的一个条目。URL 统一存为源站相对形式（path + query），
// fragment 会被丢弃；Method 统一大写。
type Key struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// NewKey 规范化请求方法与 URL。绝对 URL 的 scheme/host 会被剥离，
// 因为一个 Store 只服务单个源站。
func NewKey(method, rawURL string) Key {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return Key{Method: method, URL: normalizeURL(rawURL)}
}

// KeyForURL 以已解析的 URL 构建 Key。
func KeyForURL(method string, u *url.URL) Key {
	if u == nil {
		return NewKey(method, "/")
	}
	return NewKey(method, relativeURL(u))
}

func (k Key) String() string {
	return k.Method + " " + k.URL
}

// WithoutSearch 返回去掉查询串后的 Key。
func (k Key) WithoutSearch() Key {
	if idx := strings.IndexByte(k.URL, '?'); idx >= 0 {
		return Key{Method: k.Method, URL: k.URL[:idx]}
	}
	return k
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		if idx := strings.IndexByte(raw, '#'); idx >= 0 {
			raw = raw[:idx]
		}
		if !strings.HasPrefix(raw, "/") {
			raw = "/" + raw
		}
		return raw
	}
	return relativeURL(parsed)
}

func relativeURL(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if u.RawQuery != "" {
		return p + "?" + u.RawQuery
	}
	return p
}
