package notify

import (
	"context"
	"sync"
	"time"
)

// Toast is one entry in the in-process notification feed.
type Toast struct {
	Payload Payload
	At      time.Time
}

// ToastSink keeps a bounded in-memory feed of recent notifications for an
// in-app surface to read. Oldest entries are dropped once the bound is
// reached.
type ToastSink struct {
	mu     sync.Mutex
	toasts []Toast
	limit  int
}

// NewToastSink creates a toast sink holding at most limit entries.
func NewToastSink(limit int) *ToastSink {
	if limit <= 0 {
		limit = 50
	}
	return &ToastSink{limit: limit}
}

func (t *ToastSink) Name() string { return "toast" }

func (t *ToastSink) Send(_ context.Context, p Payload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts = append(t.toasts, Toast{Payload: p, At: time.Now()})
	if len(t.toasts) > t.limit {
		t.toasts = t.toasts[len(t.toasts)-t.limit:]
	}
	return nil
}

// Recent returns a copy of the current feed, newest last.
func (t *ToastSink) Recent() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Toast, len(t.toasts))
	copy(out, t.toasts)
	return out
}
