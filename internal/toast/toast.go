// Package toast holds ephemeral user-facing feedback messages. Toasts stack
// in insertion order and expire individually after a fixed duration unless
// dismissed first.
package toast

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
)

const DefaultTTL = 5 * time.Second

type Toast struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

type Center struct {
	mu     sync.Mutex
	ttl    time.Duration
	toasts []Toast
	timers map[string]*time.Timer
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

// Push adds a toast and arms its expiry timer. Each toast expires on its own
// clock; removing one leaves the others untouched.
func (c *Center) Push(title, message string, severity Severity) string {
	id := uuid.Must(uuid.NewV4()).String()

	c.mu.Lock()
	c.toasts = append(c.toasts, Toast{
		ID:        id,
		Title:     title,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	})
	c.timers[id] = time.AfterFunc(c.ttl, func() { c.remove(id) })
	c.mu.Unlock()

	return id
}

// Dismiss removes a toast early. Reports whether the toast was still active.
func (c *Center) Dismiss(id string) bool {
	return c.remove(id)
}

// Active returns the live toasts in insertion order.
func (c *Center) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.toasts))
	copy(out, c.toasts)
	return out
}

// Notify lets the center act as an alert sink.
func (c *Center) Notify(title, body string) {
	c.Push(title, body, SeverityInfo)
}

// Close stops all pending expiry timers.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.toasts = nil
}

func (c *Center) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			return true
		}
	}
	return false
}
