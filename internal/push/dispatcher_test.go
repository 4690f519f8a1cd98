package push

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestDispatcher(t *testing.T, limit int) *Dispatcher {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	d, err := NewDispatcher("https://sho.rt", NewCenter(limit), NewWindowRegistry(), logger)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestPushThenClickOpensWindow(t *testing.T) {
	d := newTestDispatcher(t, 10)

	n := d.HandlePush([]byte(`{"title":"Hi","url":"/x"}`))
	if n.Title != "Hi" || n.ID == "" {
		t.Fatalf("unexpected notification: %+v", n)
	}

	res, err := d.HandleClick(n.ID)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.Action != ActionOpen || res.URL != "/x" {
		t.Fatalf("expected open /x, got %+v", res)
	}
	if !res.Notification.Closed {
		t.Fatalf("notification should be closed after click")
	}
	windows := d.Windows().MatchAll()
	if len(windows) != 1 || windows[0].URL != "/x" || !windows[0].Focused {
		t.Fatalf("expected one focused window at /x, got %+v", windows)
	}
}

func TestClickFocusesMatchingWindow(t *testing.T) {
	d := newTestDispatcher(t, 10)
	other := d.Windows().Register("https://sho.rt/")
	match := d.Windows().Register("https://sho.rt/stats/abc/")

	n := d.HandlePush([]byte(`{"url":"/stats/abc/"}`))
	res, err := d.HandleClick(n.ID)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if res.Action != ActionFocus || res.Client.ID != match.ID {
		t.Fatalf("expected focus on %s, got %+v", match.ID, res)
	}
	for _, w := range d.Windows().MatchAll() {
		if w.ID == other.ID && w.Focused {
			t.Fatalf("non-matching window must not be focused")
		}
	}
	if len(d.Windows().MatchAll()) != 2 {
		t.Fatalf("focus must not open a new window")
	}
}

func TestClickUnknownNotification(t *testing.T) {
	d := newTestDispatcher(t, 10)
	if _, err := d.HandleClick("missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestCenterHistoryLimit(t *testing.T) {
	d := newTestDispatcher(t, 2)
	first := d.HandlePush(nil)
	d.HandlePush(nil)
	d.HandlePush(nil)

	if got := len(d.Center().List()); got != 2 {
		t.Fatalf("expected 2 notifications retained, got %d", got)
	}
	if _, err := d.HandleClick(first.ID); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("evicted notification should not be clickable, got %v", err)
	}
}

func TestWindowRegistryUnregister(t *testing.T) {
	r := NewWindowRegistry()
	c := r.Register("/")
	if !r.Unregister(c.ID) {
		t.Fatalf("expected unregister to succeed")
	}
	if r.Unregister(c.ID) {
		t.Fatalf("second unregister should report missing")
	}
	if _, err := r.Focus(c.ID); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}
