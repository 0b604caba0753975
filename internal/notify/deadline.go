// Package notify watches task deadlines and raises alerts shortly before and
// after they pass.
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"liquid-tasks/internal/models"
)

// Sink receives deadline alerts. The toast center satisfies it directly; the
// job queue wraps it for out-of-process delivery.
type Sink interface {
	Notify(title, body string)
}

const (
	// DefaultInterval is how often the watcher re-scans the task list.
	DefaultInterval = 10 * time.Second

	warningWindow = 5 * time.Minute

	kindWarning = "5min"
	kindOverdue = "overdue"
)

// TaskSource yields the current task list on each scan.
type TaskSource func() []models.Task

// Watcher scans tasks on a fixed interval and alerts once per kind per task:
// a warning when a deadline is at most five minutes away, and an overdue
// alert once it has passed. Fired markers are held in memory only, so a
// process restart re-alerts on still-pending tasks.
type Watcher struct {
	source   TaskSource
	sink     Sink
	interval time.Duration

	mu    sync.Mutex
	fired map[string]bool
}

func NewWatcher(source TaskSource, sink Sink, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		source:   source,
		sink:     sink,
		interval: interval,
		fired:    make(map[string]bool),
	}
}

// Run scans until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("⏰ Deadline watcher started (every %s)", w.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Deadline watcher stopped")
			return
		case now := <-ticker.C:
			w.Check(now)
		}
	}
}

// Check runs a single scan against the given instant.
func (w *Watcher) Check(now time.Time) {
	for _, task := range w.source() {
		if task.Completed {
			continue
		}
		deadline, ok := task.Deadline()
		if !ok {
			continue
		}

		remaining := deadline.Sub(now)
		switch {
		case remaining < 0:
			w.fire(kindOverdue, task, "Time's Up! ⏰",
				fmt.Sprintf("%q is overdue", task.Title))
		case remaining <= warningWindow:
			w.fire(kindWarning, task, "Hurry Up! ⏳",
				fmt.Sprintf("%q is due in %d min", task.Title, int(remaining.Minutes())+1))
		}
	}
}

func (w *Watcher) fire(kind string, task models.Task, title, body string) {
	key := kind + ":" + task.ID
	w.mu.Lock()
	if w.fired[key] {
		w.mu.Unlock()
		return
	}
	w.fired[key] = true
	w.mu.Unlock()

	w.sink.Notify(title, body)
}
