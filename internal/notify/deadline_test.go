package notify

import (
	"sync"
	"testing"
	"time"

	"liquid-tasks/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	titles []string
}

func (s *recordingSink) Notify(title, _ string) {
	s.mu.Lock()
	s.titles = append(s.titles, title)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.titles)
}

func taskDueAt(id string, deadline time.Time, completed bool) models.Task {
	return models.Task{
		ID:        id,
		Title:     "task " + id,
		Completed: completed,
		DueDate:   deadline.Format("2006-01-02"),
		DueTime:   deadline.Format("15:04"),
	}
}

func TestWatcherFiresWarningThenOverdueOnce(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	tasks := []models.Task{taskDueAt("t1", now.Add(3*time.Minute), false)}

	sink := &recordingSink{}
	w := NewWatcher(func() []models.Task { return tasks }, sink, 0)

	// Inside the five-minute window: one warning, repeated scans stay quiet.
	w.Check(now)
	w.Check(now.Add(10 * time.Second))
	if sink.count() != 1 {
		t.Fatalf("Expected exactly one warning, got %d", sink.count())
	}

	// Past the deadline: one overdue alert, again only once.
	w.Check(now.Add(10 * time.Minute))
	w.Check(now.Add(11 * time.Minute))
	if sink.count() != 2 {
		t.Fatalf("Expected warning + overdue, got %d alerts", sink.count())
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.titles[0] != "Hurry Up! ⏳" || sink.titles[1] != "Time's Up! ⏰" {
		t.Errorf("Unexpected alert titles: %v", sink.titles)
	}
}

func TestWatcherSkipsCompletedAndUndatedTasks(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	tasks := []models.Task{
		taskDueAt("done", now.Add(-time.Hour), true),
		{ID: "no-deadline", Title: "someday"},
		{ID: "date-only", Title: "date only", DueDate: now.Format("2006-01-02")},
	}

	sink := &recordingSink{}
	w := NewWatcher(func() []models.Task { return tasks }, sink, 0)
	w.Check(now)

	if sink.count() != 0 {
		t.Errorf("Completed and deadline-less tasks must not alert, got %d", sink.count())
	}
}

func TestWatcherRefiresAfterRestart(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	tasks := []models.Task{taskDueAt("t1", now.Add(-time.Minute), false)}
	source := func() []models.Task { return tasks }

	first := &recordingSink{}
	NewWatcher(source, first, 0).Check(now)
	if first.count() != 1 {
		t.Fatalf("Expected one overdue alert, got %d", first.count())
	}

	// Markers are process-scoped: a fresh watcher alerts again.
	second := &recordingSink{}
	NewWatcher(source, second, 0).Check(now)
	if second.count() != 1 {
		t.Errorf("Fresh watcher should re-alert on pending overdue tasks, got %d", second.count())
	}
}
