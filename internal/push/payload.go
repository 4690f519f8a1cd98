package push

import (
	"encoding/json"
	"time"
)

// 通知的默认文案与固定图标。
const (
	DefaultTitle = "ShortURL notification"
	DefaultBody  = "You have a new notification."
	DefaultURL   = "/"
	IconPath     = "/static/icons/icon-192.png"
	BadgePath    = "/static/icons/icon-192.png"
)

// Payload 是推送消息携带的 JSON 负载，所有字段均可缺省。
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// ParsePayload 解析推送数据。空数据、非法 JSON 或非对象视为空负载，不返回错误。
// 字段逐个取值，类型不是字符串的字段按缺省处理，不影响其他字段。
func ParsePayload(data []byte) Payload {
	if len(data) == 0 {
		return Payload{}
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Payload{}
	}
	return Payload{
		Title: stringField(fields, "title"),
		Body:  stringField(fields, "body"),
		URL:   stringField(fields, "url"),
	}
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

// Notification 是展示给用户的一条通知，URL 为点击后的目标地址。
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Icon      string    `json:"icon"`
	Badge     string    `json:"badge"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Closed    bool      `json:"closed"`
}

// BuildNotification 以默认值补齐缺失字段。空字符串与缺省同等处理。
func BuildNotification(p Payload) Notification {
	n := Notification{
		Title: p.Title,
		Body:  p.Body,
		Icon:  IconPath,
		Badge: BadgePath,
		URL:   p.URL,
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Body == "" {
		n.Body = DefaultBody
	}
	if n.URL == "" {
		n.URL = DefaultURL
	}
	return n
}
