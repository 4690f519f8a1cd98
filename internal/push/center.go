package push

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotificationNotFound 表示通知不存在或已被历史上限淘汰。
var ErrNotificationNotFound = errors.New("notification not found")

// Center 在内存中保存已展示的通知，超过 limit 时淘汰最早的记录。limit<=0 表示不保留历史。
type Center struct {
	mu    sync.Mutex
	limit int
	items []Notification
	now   func() time.Time
}

func NewCenter(limit int) *Center {
	return &Center{limit: limit, now: time.Now}
}

// Show 为通知分配 ID 与时间戳并记录。
func (c *Center) Show(n Notification) Notification {
	n.ID = uuid.NewString()
	n.CreatedAt = c.now().UTC()
	n.Closed = false

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.limit <= 0 {
		return n
	}
	c.items = append(c.items, n)
	if over := len(c.items) - c.limit; over > 0 {
		c.items = append([]Notification(nil), c.items[over:]...)
	}
	return n
}

// List 按展示顺序返回通知副本。
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.items...)
}

// Close 关闭通知并返回其最新状态，重复关闭无副作用。
func (c *Center) Close(id string) (Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Closed = true
			return c.items[i], nil
		}
	}
	return Notification{}, ErrNotificationNotFound
}
