package agent

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shorturl/offline-agent/internal/cache"
)

// Mode 对应 Fetch Metadata 中的 Sec-Fetch-Mode。
type Mode string

const (
	ModeNavigate   Mode = "navigate"
	ModeSameOrigin Mode = "same-origin"
	ModeNoCORS     Mode = "no-cors"
	ModeCORS       Mode = "cors"
)

// Destination 对应 Sec-Fetch-Dest，描述资源的媒体类别。
type Destination string

const (
	DestinationEmpty    Destination = ""
	DestinationDocument Destination = "document"
	DestinationStyle    Destination = "style"
	DestinationImage    Destination = "image"
	DestinationFont     Destination = "font"
	DestinationScript   Destination = "script"
)

// Request 是一次被拦截的网络操作，仅在单次请求内存活。
type Request struct {
	Method      string
	URL         *url.URL
	Mode        Mode
	Destination Destination
	Header      http.Header
	Body        []byte
}

// NewRequest 以方法与（源站相对或绝对）URL 构建请求，Mode/Destination 留空。
func NewRequest(method, rawURL string) (*Request, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url %q: %w", rawURL, err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: strings.ToUpper(method),
		URL:    parsed,
		Header: http.Header{},
	}, nil
}

// Key 返回该请求在 bucket 中的键。
func (r *Request) Key() cache.Key {
	return cache.KeyForURL(r.Method, r.URL)
}

// Path 返回请求路径，空路径视为 "/"。
func (r *Request) Path() string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// IsNavigation 判断是否为顶层文档导航。
func (r *Request) IsNavigation() bool {
	return r.Mode == ModeNavigate
}

// IsStaticAsset 判断请求是否像静态资源：路径含 /static/，或媒体类别为样式/图片/字体。
func (r *Request) IsStaticAsset() bool {
	if strings.Contains(r.Path(), StaticMarker) {
		return true
	}
	switch r.Destination {
	case DestinationStyle, DestinationImage, DestinationFont:
		return true
	}
	return false
}

// Classify 根据 Fetch Metadata 头推断 Mode 与 Destination。
// 缺少 Sec-Fetch-Mode 的 GET 请求若 Accept 含 text/html，则按导航处理。
func Classify(method string, header http.Header) (Mode, Destination) {
	mode := Mode(strings.ToLower(strings.TrimSpace(header.Get("Sec-Fetch-Mode"))))
	dest := Destination(strings.ToLower(strings.TrimSpace(header.Get("Sec-Fetch-Dest"))))
	if dest == "empty" {
		dest = DestinationEmpty
	}

	if mode == "" && strings.EqualFold(method, http.MethodGet) {
		if strings.Contains(header.Get("Accept"), "text/html") {
			mode = ModeNavigate
			if dest == DestinationEmpty {
				dest = DestinationDocument
			}
		}
	}
	return mode, dest
}
