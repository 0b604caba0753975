package remote

import (
	"sync"

	"liquid-tasks/internal/models"
)

// hub fans task-list snapshots out to the live subscribers of each owner.
type hub struct {
	mu   sync.Mutex
	next int64
	subs map[string]map[int64]func([]models.Task)
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int64]func([]models.Task))}
}

func (h *hub) add(ownerID string, fn func([]models.Task)) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[int64]func([]models.Task))
	}
	h.subs[ownerID][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if owner := h.subs[ownerID]; owner != nil {
			delete(owner, id)
			if len(owner) == 0 {
				delete(h.subs, ownerID)
			}
		}
	}
}

// emit delivers a snapshot to every subscriber of the owner. Each subscriber
// gets its own copy so none can corrupt another's view.
func (h *hub) emit(ownerID string, tasks []models.Task) {
	h.mu.Lock()
	fns := make([]func([]models.Task), 0, len(h.subs[ownerID]))
	for _, fn := range h.subs[ownerID] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		snapshot := make([]models.Task, len(tasks))
		copy(snapshot, tasks)
		fn(snapshot)
	}
}

func (h *hub) count(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}
