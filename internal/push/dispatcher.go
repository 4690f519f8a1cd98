package push

import (
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
)

// 点击通知后的动作。
const (
	ActionFocus = "focus"
	ActionOpen  = "open"
)

// ClickResult 描述一次通知点击的处理结果。
type ClickResult struct {
	Action       string       `json:"action"`
	URL          string       `json:"url"`
	Client       Client       `json:"client"`
	Notification Notification `json:"notification"`
}

// Dispatcher 把推送事件与点击事件分别交给通知中心和窗口注册表。
type Dispatcher struct {
	center  *Center
	windows *WindowRegistry
	origin  *url.URL
	logger  *logrus.Logger
}

// NewDispatcher 以源站地址构建分发器，相对 URL 会基于 origin 解析后再比较。
func NewDispatcher(origin string, center *Center, windows *WindowRegistry, logger *logrus.Logger) (*Dispatcher, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Dispatcher{center: center, windows: windows, origin: base, logger: logger}, nil
}

func (d *Dispatcher) Center() *Center { return d.center }

func (d *Dispatcher) Windows() *WindowRegistry { return d.windows }

// HandlePush 解析负载并展示通知。
func (d *Dispatcher) HandlePush(data []byte) Notification {
	n := d.center.Show(BuildNotification(ParsePayload(data)))
	d.logger.WithFields(logrus.Fields{
		"action":          "push",
		"notification_id": n.ID,
		"url":             n.URL,
	}).Info("notification_shown")
	return n
}

// HandleClick 关闭通知；若已有窗口的 URL 与目标一致则聚焦它，否则新开窗口。
func (d *Dispatcher) HandleClick(id string) (ClickResult, error) {
	n, err := d.center.Close(id)
	if err != nil {
		return ClickResult{}, err
	}
	target := n.URL
	if target == "" {
		target = DefaultURL
	}
	want := d.resolve(target)

	for _, c := range d.windows.MatchAll() {
		if d.resolve(c.URL) != want {
			continue
		}
		focused, err := d.windows.Focus(c.ID)
		if err != nil {
			// 窗口在遍历期间被关闭
			continue
		}
		d.logClick(n, ActionFocus, focused.ID)
		return ClickResult{Action: ActionFocus, URL: target, Client: focused, Notification: n}, nil
	}

	opened := d.windows.OpenWindow(target)
	d.logClick(n, ActionOpen, opened.ID)
	return ClickResult{Action: ActionOpen, URL: target, Client: opened, Notification: n}, nil
}

func (d *Dispatcher) resolve(raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return d.origin.ResolveReference(ref).String()
}

func (d *Dispatcher) logClick(n Notification, action, clientID string) {
	d.logger.WithFields(logrus.Fields{
		"action":          "notification_click",
		"notification_id": n.ID,
		"url":             n.URL,
		"result":          action,
		"client_id":       clientID,
	}).Info("notification_clicked")
}
