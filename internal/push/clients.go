package push

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClientNotFound 表示窗口客户端未注册。
var ErrClientNotFound = errors.New("window client not found")

// Client 是一个已打开的浏览器窗口。
type Client struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Focused   bool      `json:"focused"`
	OpenedAt  time.Time `json:"opened_at"`
	FocusedAt time.Time `json:"focused_at,omitempty"`
}

// WindowRegistry 记录窗口客户端，任一时刻最多一个窗口处于聚焦状态。
type WindowRegistry struct {
	mu      sync.Mutex
	clients map[string]*Client
	seq     map[string]int
	next    int
	now     func() time.Time
}

func NewWindowRegistry() *WindowRegistry {
	return &WindowRegistry{
		clients: make(map[string]*Client),
		seq:     make(map[string]int),
		now:     time.Now,
	}
}

// Register 登记一个已存在的窗口。
func (r *WindowRegistry) Register(rawURL string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(rawURL, false)
}

// OpenWindow 新开窗口并聚焦。
func (r *WindowRegistry) OpenWindow(rawURL string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blurLocked()
	return r.addLocked(rawURL, true)
}

// Unregister 移除窗口，返回移除前是否存在。
func (r *WindowRegistry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	delete(r.seq, id)
	return true
}

// MatchAll 按打开顺序返回全部窗口。
func (r *WindowRegistry) MatchAll() []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.seq[out[i].ID] < r.seq[out[j].ID]
	})
	return out
}

// Focus 聚焦指定窗口，其余窗口失焦。
func (r *WindowRegistry) Focus(id string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	if !ok {
		return Client{}, ErrClientNotFound
	}
	r.blurLocked()
	c.Focused = true
	c.FocusedAt = r.now().UTC()
	return *c, nil
}

func (r *WindowRegistry) addLocked(rawURL string, focused bool) Client {
	now := r.now().UTC()
	c := &Client{ID: uuid.NewString(), URL: rawURL, Focused: focused, OpenedAt: now}
	if focused {
		c.FocusedAt = now
	}
	r.next++
	r.clients[c.ID] = c
	r.seq[c.ID] = r.next
	return *c
}

func (r *WindowRegistry) blurLocked() {
	for _, c := range r.clients {
		c.Focused = false
	}
}
