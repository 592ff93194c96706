// Package notify queues toasts for browser sessions until the browser
// collects them.
package notify

import (
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/tablewise/portal/pkg/service"
)

// DefaultMaxQueued is the number of toasts kept per session, older ones are
// dropped first.
const DefaultMaxQueued = 20

var _ service.Notifier = &Queue{}

type Queue struct {
	mu        sync.Mutex
	maxQueued int
	toasts    map[string][]service.Toast
}

func (q *Queue) Notify(key string, toast service.Toast) {
	if toast.ID == "" {
		toast.ID = shortuuid.New()
	}

	if toast.Variant == "" {
		toast.Variant = service.ToastVariantDefault
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	queued := append(q.toasts[key], toast)
	if len(queued) > q.maxQueued {
		queued = queued[len(queued)-q.maxQueued:]
	}

	q.toasts[key] = queued
}

func (q *Queue) Drain(key string) []service.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	toasts := q.toasts[key]
	delete(q.toasts, key)

	if toasts == nil {
		return []service.Toast{}
	}

	return toasts
}

// Forget drops everything queued for key.
func (q *Queue) Forget(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.toasts, key)
}

func New(maxQueued int) *Queue {
	if maxQueued <= 0 {
		maxQueued = DefaultMaxQueued
	}

	return &Queue{
		maxQueued: maxQueued,
		toasts:    map[string][]service.Toast{},
	}
}
